package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/config"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/repository/memory"
)

func TestAuditRecordQueuesOnRedis(t *testing.T) {
	mr, rdb := newTestRedis(t)
	db := memory.New()
	svc := NewAuditService(rdb, db.AdminLogs(), zerolog.Nop())

	adminID := int64(3)
	svc.Record(context.Background(), model.AdminLog{AdminID: &adminID, Action: model.AuditCreateToken})

	items, err := mr.List(config.WorkerKey.PersistAuditLogQueue)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("queued entries = %d, want 1", len(items))
	}

	var entry model.AdminLog
	if err := json.Unmarshal([]byte(items[0]), &entry); err != nil {
		t.Fatalf("queued entry is not JSON: %v", err)
	}
	if entry.Action != model.AuditCreateToken || entry.CreatedAt.IsZero() {
		t.Fatalf("queued entry = %+v", entry)
	}

	if _, total, _ := svc.List(context.Background(), 1, 10); total != 0 {
		t.Fatalf("entry was written directly while Redis was up")
	}
}

func TestAuditRecordFallsBackToDirectWrite(t *testing.T) {
	mr, rdb := newTestRedis(t)
	db := memory.New()
	svc := NewAuditService(rdb, db.AdminLogs(), zerolog.Nop())
	mr.Close()

	svc.Record(context.Background(), model.AdminLog{Action: model.AuditLogin})

	logs, total, err := svc.List(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 1 || logs[0].Action != model.AuditLogin {
		t.Fatalf("direct write missing: total %d, logs %+v", total, logs)
	}
}

func TestAuditListPaginates(t *testing.T) {
	_, rdb := newTestRedis(t)
	db := memory.New()
	svc := NewAuditService(rdb, db.AdminLogs(), zerolog.Nop())

	for _, action := range []string{model.AuditLogin, model.AuditCreateToken, model.AuditLogout} {
		if err := db.AdminLogs().Insert(context.Background(), &model.AdminLog{Action: action}); err != nil {
			t.Fatalf("Insert returned error: %v", err)
		}
	}

	page, total, err := svc.List(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 3 || len(page) != 1 {
		t.Fatalf("page 2 = %d entries of %d, want 1 of 3", len(page), total)
	}
	if page[0].Action != model.AuditLogin {
		t.Fatalf("oldest entry should be last, got %q", page[0].Action)
	}
}
