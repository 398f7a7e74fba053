package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimiterPerClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 3, time.Minute)
	r := gin.New()
	r.GET("/", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if code := hit("10.0.0.1"); code != http.StatusNoContent {
			t.Fatalf("request %d within burst: status %d", i, code)
		}
	}
	if code := hit("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("request over burst: status %d", code)
	}
	if code := hit("10.0.0.2"); code != http.StatusNoContent {
		t.Fatalf("other client was throttled: status %d", code)
	}
}

func TestRateLimiterCleanupDropsIdleVisitors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 1, time.Second)
	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")
	rl.visitors["10.0.0.1"].lastSeen = time.Now().Add(-2 * rl.expiry)

	rl.cleanup()
	if _, ok := rl.visitors["10.0.0.1"]; ok {
		t.Fatal("idle visitor survived cleanup")
	}
	if _, ok := rl.visitors["10.0.0.2"]; !ok {
		t.Fatal("recent visitor was dropped")
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name   string
		claims *service.Claims
		want   int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"plain admin", &service.Claims{Role: model.AdminRoleAdmin}, http.StatusForbidden},
		{"super admin", &service.Claims{Role: model.AdminRoleSuperAdmin}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/",
				func(c *gin.Context) {
					if tt.claims != nil {
						c.Set(ContextKeyClaims, tt.claims)
					}
					c.Next()
				},
				RequireRole(model.AdminRoleSuperAdmin),
				func(c *gin.Context) { c.Status(http.StatusOK) },
			)

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestExtractTokenPrecedence(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		query  string
		want   string
	}{
		{name: "bearer header wins", header: "Bearer from-header", cookie: "from-cookie", query: "from-query", want: "from-header"},
		{name: "scheme is case insensitive", header: "bearer lower", want: "lower"},
		{name: "cookie before query", cookie: "from-cookie", query: "from-query", want: "from-cookie"},
		{name: "query fallback", query: "from-query", want: "from-query"},
		{name: "basic auth ignored", header: "Basic abc", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/"
			if tt.query != "" {
				path += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AdminSessionCookie, Value: tt.cookie})
			}

			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = req
			if got := extractToken(c); got != tt.want {
				t.Fatalf("extractToken = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.GET("/", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control = %q", got)
	}
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	large := strings.Repeat(`{"level":1,"correct":true},`, 200)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("large body not compressed, headers %v", rec.Header())
	}
	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(rec.Body.Bytes())))
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if string(plain) != large {
		t.Fatalf("round trip lost data: got %d bytes, want %d", len(plain), len(large))
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") != "" || rec.Body.String() != "ok" {
		t.Fatalf("small body: encoding %q body %q", rec.Header().Get("Content-Encoding"), rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/large", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get("Content-Encoding") != "" || rec.Body.String() != large {
		t.Fatal("client without br support received a compressed body")
	}
}
