package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGLIntegrity replays posted journal lines against stored balances.
	TaskGLIntegrity = "ledger:gl_integrity"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "ledger:idempotency_cleanup"
)

// GLIntegrityPayload selects the company to check; zero checks every company.
type GLIntegrityPayload struct {
	CompanyID int64 `json:"company_id,omitempty"`
}

// NewGLIntegrityTask constructs the integrity replay task.
func NewGLIntegrityTask(companyID int64) (*asynq.Task, error) {
	data, err := json.Marshal(GLIntegrityPayload{CompanyID: companyID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3), asynq.Timeout(30*time.Minute)), nil
}

// IdempotencyCleanupPayload carries the retention window in seconds.
type IdempotencyCleanupPayload struct {
	RetentionSeconds int64 `json:"retention_seconds"`
}

// Retention returns the payload window, falling back to 24h.
func (p IdempotencyCleanupPayload) Retention() time.Duration {
	if p.RetentionSeconds <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(p.RetentionSeconds) * time.Second
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionSeconds: int64(retention / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
