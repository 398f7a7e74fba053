package database

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
)

func TestConnectRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	rdb, err := ConnectRedis(context.Background(), "redis://"+mr.Addr()+"/0", zerolog.Nop())
	if err != nil {
		t.Fatalf("ConnectRedis: %v", err)
	}
	defer rdb.Close()

	if rdb.Options().ClientName != redisClientName {
		t.Fatalf("client name = %q", rdb.Options().ClientName)
	}
	if err := rdb.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
}

func TestConnectRedisErrors(t *testing.T) {
	if _, err := ConnectRedis(context.Background(), "not-a-url", zerolog.Nop()); err == nil {
		t.Fatal("expected a parse error")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()

	if _, err := ConnectRedis(context.Background(), "redis://"+addr, zerolog.Nop()); err == nil {
		t.Fatal("expected a ping error against a stopped server")
	}
}
