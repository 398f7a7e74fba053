package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/ump-quiz/quiz-backend/internal/config"
	"github.com/ump-quiz/quiz-backend/internal/metrics"
	"github.com/ump-quiz/quiz-backend/internal/model"
	"github.com/ump-quiz/quiz-backend/internal/service"
)

const (
	AuditBatchSize    = 50
	AuditBatchTimeout = 2 * time.Second
	AuditPollTimeout  = 1 * time.Second
)

// AuditWorker moves queued admin audit entries from Redis into admin_logs.
type AuditWorker struct {
	logs service.AdminLogStore
	rdb  *redis.Client
	log  zerolog.Logger

	batchSize    int
	batchTimeout time.Duration
	pollTimeout  time.Duration
}

func NewAuditWorker(logs service.AdminLogStore, rdb *redis.Client, log zerolog.Logger) *AuditWorker {
	return &AuditWorker{
		logs:         logs,
		rdb:          rdb,
		log:          log.With().Str("component", "audit_worker").Logger(),
		batchSize:    AuditBatchSize,
		batchTimeout: AuditBatchTimeout,
		pollTimeout:  AuditPollTimeout,
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start blocks until ctx is cancelled, then flushes what it holds.
func (w *AuditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AuditWorker started")

	batch := make([]model.AdminLog, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, w.pollTimeout, config.WorkerKey.PersistAuditLogQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
					// Back off so a dead Redis does not spin the loop.
					sleepCtx(ctx, w.pollTimeout)
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var entry model.AdminLog
			if err := json.Unmarshal([]byte(item[1]), &entry); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, entry)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with per-row fallback
// ----------------------------------------------------------------

func (w *AuditWorker) flushSafe(ctx context.Context, batch []model.AdminLog) {
	if len(batch) == 0 {
		return
	}

	n, err := w.logs.BulkInsert(ctx, batch)
	if err == nil {
		metrics.AuditLogsPersisted.Add(float64(n))
		w.log.Debug().Int64("rows", n).Msg("Audit batch persisted")
		return
	}

	w.log.Warn().Err(err).Int("size", len(batch)).Msg("bulk audit insert failed, using fallback")

	for i := range batch {
		if err := w.logs.Insert(ctx, &batch[i]); err != nil {
			w.log.Error().Err(err).Str("action", batch[i].Action).Msg("Insert failed, requeueing")
			raw, _ := json.Marshal(batch[i])
			w.rdb.RPush(ctx, config.WorkerKey.PersistAuditLogQueue, raw)
			continue
		}
		metrics.AuditLogsPersisted.Inc()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
