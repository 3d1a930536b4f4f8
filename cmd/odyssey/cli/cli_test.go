package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-books/internal/auth"
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
	"github.com/odyssey-erp/odyssey-books/jobs"
)

type stubProvisioner struct {
	keyID uuid.UUID
}

func (s stubProvisioner) CreateCompany(ctx context.Context, name string) (auth.Company, error) {
	if name == "" {
		return auth.Company{}, fmt.Errorf("%w: company name required", shared.ErrValidation)
	}
	return auth.Company{ID: 3, Name: name}, nil
}

func (s stubProvisioner) IssueKey(ctx context.Context, companyID int64, label string) (auth.IssuedKey, error) {
	key := auth.APIKey{ID: s.keyID, CompanyID: companyID, Label: label}
	return auth.IssuedKey{Key: key, Token: s.keyID.String() + ".secret"}, nil
}

func TestCompanyCreateCommand(t *testing.T) {
	admin := NewAdminCLI(stubProvisioner{})
	var stdout, stderr bytes.Buffer

	code := admin.CompanyCreateCommand(context.Background(), "Acme", Output{Stdout: &stdout, Stderr: &stderr})
	require.Equal(t, 0, code, stderr.String())
	assert.Equal(t, "company 3 created: Acme\n", stdout.String())

	stdout.Reset()
	code = admin.CompanyCreateCommand(context.Background(), "", Output{Stdout: &stdout, Stderr: &stderr})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "company name required")
}

func TestAPIKeyCreateCommandPrintsTokenOnce(t *testing.T) {
	id := uuid.MustParse("0b6b7f5e-4c1f-4b55-9f0a-0c4a3c1c2f11")
	admin := NewAdminCLI(stubProvisioner{keyID: id})
	var stdout, stderr bytes.Buffer

	code := admin.APIKeyCreateCommand(context.Background(), 3, "ci", Output{JSONOutput: true, Stdout: &stdout, Stderr: &stderr})
	require.Equal(t, 0, code, stderr.String())
	var body issuedKeyJSON
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &body))
	assert.Equal(t, issuedKeyJSON{ID: id.String(), CompanyID: 3, Label: "ci", Token: id.String() + ".secret"}, body)

	stdout.Reset()
	code = admin.APIKeyCreateCommand(context.Background(), 0, "ci", Output{Stdout: &stdout, Stderr: &stderr})
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
}

func TestMigrateCommand(t *testing.T) {
	var calls []db.MigrateDirection
	run := func(dsn string, direction db.MigrateDirection) (bool, error) {
		calls = append(calls, direction)
		if direction == db.MigrateDown {
			return false, errors.New("dirty database")
		}
		return len(calls) == 1, nil
	}
	var stdout, stderr bytes.Buffer
	out := Output{Stdout: &stdout, Stderr: &stderr}

	assert.Equal(t, 0, MigrateCommand(run, "dsn", "up", out))
	assert.Equal(t, 0, MigrateCommand(run, "dsn", "up", out))
	assert.Equal(t, "migrate up: applied\nmigrate up: no change\n", stdout.String())
	assert.Equal(t, 1, MigrateCommand(run, "dsn", "down", out))
	assert.Contains(t, stderr.String(), "dirty database")
	assert.Equal(t, 2, MigrateCommand(run, "dsn", "sideways", out))
	assert.Len(t, calls, 3)
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{ID: fmt.Sprintf("t%d", len(r.tasks)), Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

type stubInspector struct{}

func (stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return &asynq.QueueInfo{Queue: queue, Pending: 2, Scheduled: 1}, nil
}

func TestJobsTrigger(t *testing.T) {
	enqueuer := &recordingEnqueuer{}
	c := NewJobsCLIWith(enqueuer, stubInspector{})
	ctx := context.Background()

	info, err := c.Trigger(ctx, "gl-integrity", TriggerOptions{CompanyID: 9})
	require.NoError(t, err)
	assert.Equal(t, jobs.TaskGLIntegrity, info.Type)
	var integrity jobs.GLIntegrityPayload
	require.NoError(t, json.Unmarshal(enqueuer.tasks[0].Payload(), &integrity))
	assert.Equal(t, int64(9), integrity.CompanyID)

	_, err = c.Trigger(ctx, jobs.TaskIdempotencyCleanup, TriggerOptions{Retention: time.Hour})
	require.NoError(t, err)
	var cleanup jobs.IdempotencyCleanupPayload
	require.NoError(t, json.Unmarshal(enqueuer.tasks[1].Payload(), &cleanup))
	assert.Equal(t, time.Hour, cleanup.Retention())

	_, err = c.Trigger(ctx, "fx-backfill", TriggerOptions{})
	require.Error(t, err)

	stats, err := c.InspectQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, QueueStats{Queue: jobs.QueueDefault, Pending: 2, Scheduled: 1}, stats)
	require.NoError(t, c.Close())
}
