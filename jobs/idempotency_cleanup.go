package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-books/internal/jobs"
)

// KeyPurger deletes idempotency keys older than a retention window.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob purges expired Idempotency-Key records.
type IdempotencyCleanupJob struct {
	purger  KeyPurger
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

func NewIdempotencyCleanupJob(purger KeyPurger, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{purger: purger, logger: logger, metrics: metrics}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("idempotency cleanup payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.metrics.Track("idempotency_cleanup")
	removed, err := j.purger.Cleanup(ctx, payload.Retention())
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddCleaned(removed)
	j.logger.Info("idempotency keys purged", slog.String("job", "idempotency_cleanup"), slog.Int64("removed", removed))
	return tracker.End(nil)
}
