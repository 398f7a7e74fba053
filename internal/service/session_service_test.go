package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(_ context.Context, evt Event) {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func newSessionFixture(t *testing.T) (*SessionService, *memory.DB, *recordingPublisher) {
	t.Helper()
	db := memory.New()
	pub := &recordingPublisher{}
	return NewSessionService(db.Students(), db.Sessions(), pub, 1, zerolog.Nop()), db, pub
}

func TestResolveCreatesStudentAndSession(t *testing.T) {
	svc, _, pub := newSessionFixture(t)

	res, err := svc.Resolve(context.Background(), ResolveInput{
		Name: " Budi Santoso ", Class: "XII IPA 1", School: "SMA 1", IPAddress: "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if !res.IsNewStudent || res.Continued {
		t.Fatalf("flags = (new %t, continued %t), want (true, false)", res.IsNewStudent, res.Continued)
	}
	if res.Student.FullName != "Budi Santoso" {
		t.Fatalf("name was not trimmed: %q", res.Student.FullName)
	}
	sess := res.Session
	if sess.CurrentLevel != 1 || sess.CurrentQuestion != 0 || sess.WrongCount != 0 || sess.Status != model.SessionStatusActive {
		t.Fatalf("unexpected initial session: %+v", sess)
	}
	if sess.SessionToken == "" || sess.TokenUsed != nil {
		t.Fatalf("anonymous session token = %q, token_used = %v", sess.SessionToken, sess.TokenUsed)
	}
	if sess.IPAddress == nil || *sess.IPAddress != "10.0.0.1" {
		t.Fatalf("ip address not recorded: %v", sess.IPAddress)
	}

	if got := pub.types(); len(got) != 1 || got[0] != EventSessionStarted {
		t.Fatalf("published events = %v, want [session_started]", got)
	}
}

func TestResolveReusesStudentForSameIdentity(t *testing.T) {
	svc, _, _ := newSessionFixture(t)
	ctx := context.Background()
	in := ResolveInput{Name: "Siti", Class: "XI", School: "SMA 2"}

	first, err := svc.Resolve(ctx, in)
	if err != nil {
		t.Fatalf("first Resolve returned error: %v", err)
	}
	second, err := svc.Resolve(ctx, in)
	if err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}

	if second.IsNewStudent {
		t.Fatalf("second Resolve created a new student")
	}
	if second.Student.ID != first.Student.ID {
		t.Fatalf("student id = %d, want %d", second.Student.ID, first.Student.ID)
	}
	if second.Session.ID == first.Session.ID {
		t.Fatalf("anonymous requests shared session %d", first.Session.ID)
	}
}

func TestResolveContinuesSessionBoundToToken(t *testing.T) {
	svc, db, pub := newSessionFixture(t)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, ResolveInput{Name: "Andi", Class: "X", School: "SMA 3", Token: "ABC123"})
	if err != nil {
		t.Fatalf("first Resolve returned error: %v", err)
	}
	if first.Session.SessionToken != "ABC123" || first.Session.TokenUsed == nil || *first.Session.TokenUsed != "ABC123" {
		t.Fatalf("token not bound to session: %+v", first.Session)
	}

	// Progress made on the session must be visible to the continuation.
	if _, _, err := NewAnswerService(db.Sessions(), nil, zerolog.Nop()).Submit(ctx, SubmitInput{
		SessionID: first.Session.ID, Level: 3, QuestionID: "q1", SelectedAnswer: "A", CorrectAnswer: "A",
	}); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	// Identity fields are ignored once the token resolves.
	second, err := svc.Resolve(ctx, ResolveInput{Name: "Someone Else", Class: "Y", School: "Z", Token: "ABC123"})
	if err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}
	if !second.Continued || second.IsNewStudent {
		t.Fatalf("flags = (new %t, continued %t), want (false, true)", second.IsNewStudent, second.Continued)
	}
	if second.Session.ID != first.Session.ID || second.Student.ID != first.Student.ID {
		t.Fatalf("continuation returned session %d student %d", second.Session.ID, second.Student.ID)
	}
	if second.Session.CurrentLevel != 3 || second.Session.CurrentQuestion != 1 {
		t.Fatalf("continued session lost progress: %+v", second.Session)
	}
	if got := pub.types(); len(got) != 1 {
		t.Fatalf("continuation published events: %v", got)
	}
}

func TestResolveRequiresIdentityWithoutBoundToken(t *testing.T) {
	svc, _, _ := newSessionFixture(t)

	for _, in := range []ResolveInput{
		{Class: "X", School: "S"},
		{Name: "A", School: "S"},
		{Name: "A", Class: "X", School: "   "},
		{Token: "NEWTOK"},
	} {
		if _, err := svc.Resolve(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Fatalf("Resolve(%+v) error = %v, want ErrValidation", in, err)
		}
	}
}

func TestResolveConcurrentSameTokenSharesOneSession(t *testing.T) {
	svc, _, _ := newSessionFixture(t)
	ctx := context.Background()

	const n = 10
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Resolve(ctx, ResolveInput{Name: "Rina", Class: "XII", School: "SMK 1", Token: "SHARED"})
			if err != nil {
				t.Errorf("Resolve returned error: %v", err)
				return
			}
			ids[i] = res.Session.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("token bound to more than one session: %v", ids)
		}
	}
}

func TestResolveRequireAccess(t *testing.T) {
	svc, db, _ := newSessionFixture(t)
	db.Tokens().Seed(model.Token{TokenCode: "KLS001", MaxUsage: 1, UsageCount: 1, IsActive: true})
	svc.RequireAccess(NewTokenService(db.Tokens(), zerolog.Nop()))
	ctx := context.Background()
	in := ResolveInput{Name: "Dina", Class: "XI", School: "SMA 4"}

	if _, err := svc.Resolve(ctx, in); !errors.Is(err, ErrAccessTokenRequired) {
		t.Fatalf("missing token error = %v, want ErrAccessTokenRequired", err)
	}
	in.Token = "ZZZZZZ"
	if _, err := svc.Resolve(ctx, in); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unissued token error = %v, want ErrInvalidToken", err)
	}

	in.Token = "KLS001"
	first, err := svc.Resolve(ctx, in)
	if err != nil {
		t.Fatalf("issued token returned error: %v", err)
	}

	// Continuing needs only the bound session, even if the token is later revoked.
	if err := db.Tokens().Update(ctx, &model.Token{TokenCode: "KLS001", MaxUsage: 1}); err != nil {
		t.Fatalf("deactivate token: %v", err)
	}
	again, err := svc.Resolve(ctx, in)
	if err != nil || !again.Continued || again.Session.ID != first.Session.ID {
		t.Fatalf("continue = %+v, %v", again, err)
	}
}
