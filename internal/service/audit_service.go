package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/config"
	"github.com/ump-quiz/quiz-backend/internal/model"
)

// AuditService queues admin audit entries on Redis for the audit worker and
// reads them back for the admin log view.
type AuditService struct {
	rdb  *redis.Client
	logs AdminLogStore
	log  zerolog.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(rdb *redis.Client, logs AdminLogStore, log zerolog.Logger) *AuditService {
	return &AuditService{
		rdb:  rdb,
		logs: logs,
		log:  log.With().Str("component", "audit_service").Logger(),
	}
}

// Record enqueues one entry. If Redis is unavailable the entry is written
// directly so the audit trail is not lost.
func (s *AuditService) Record(ctx context.Context, entry model.AdminLog) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(entry)
	if err == nil {
		err = s.rdb.RPush(ctx, config.WorkerKey.PersistAuditLogQueue, payload).Err()
	}
	if err == nil {
		return
	}

	s.log.Warn().Err(err).Str("action", entry.Action).Msg("Audit queue unavailable, writing directly")
	if err := s.logs.Insert(ctx, &entry); err != nil {
		s.log.Error().Err(err).Str("action", entry.Action).Msg("Failed to persist audit entry")
	}
}

// List returns one page of audit entries, newest first.
func (s *AuditService) List(ctx context.Context, page, perPage int) ([]model.AdminLog, int, error) {
	return s.logs.ListPaginated(ctx, perPage, (page-1)*perPage)
}
