// Package jobs defines the background tasks processed by the worker.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeremyHixon/rwp-creator-suite-sub007/internal/consent"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeWelcomeEmail is enqueued after a successful registration.
	TaskTypeWelcomeEmail = "mail:welcome"
	// TaskTypeAuditPurge trims old audit log records.
	TaskTypeAuditPurge = "audit:purge"
	// TaskTypeConsentStatsWarmup refreshes the cached consent aggregates.
	TaskTypeConsentStatsWarmup = "consent:stats_warmup"
)

// WelcomeEmailPayload describes the information required for the welcome mail.
type WelcomeEmailPayload struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// NewWelcomeEmailTask constructs an Asynq task.
func NewWelcomeEmailTask(payload WelcomeEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeWelcomeEmail, data), nil
}

// HandleWelcomeEmailTask processes TaskTypeWelcomeEmail tasks.
func HandleWelcomeEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: SMTP delivery is handled by a separate notification
	// pipeline; the worker only records the intent for now.
	fmt.Printf("[jobs] welcome email to %s (user %d)\n", payload.Email, payload.UserID)
	return nil
}

// NewAuditPurgeTask constructs the scheduled purge task.
func NewAuditPurgeTask() *asynq.Task {
	return asynq.NewTask(TaskTypeAuditPurge, nil)
}

// NewConsentStatsWarmupTask constructs the scheduled warmup task.
func NewConsentStatsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeConsentStatsWarmup, nil)
}

// AuditPurgeJob deletes audit records older than the retention window.
type AuditPurgeJob struct {
	pool      *pgxpool.Pool
	logger    *slog.Logger
	retention time.Duration
}

// NewAuditPurgeJob constructs the purge job.
func NewAuditPurgeJob(pool *pgxpool.Pool, logger *slog.Logger, retention time.Duration) *AuditPurgeJob {
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditPurgeJob{pool: pool, logger: logger, retention: retention}
}

// Handle processes TaskTypeAuditPurge tasks.
func (j *AuditPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-j.retention)
	tag, err := j.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("jobs: audit purge: %w", err)
	}
	j.logger.Info("audit purge complete",
		slog.Int64("deleted", tag.RowsAffected()),
		slog.Time("cutoff", cutoff))
	return nil
}

// StatsWarmer is the part of the consent service the warmup task needs.
type StatsWarmer interface {
	Statistics(ctx context.Context) (consent.Statistics, error)
}

// ConsentStatsWarmupJob keeps the cached consent aggregates fresh.
type ConsentStatsWarmupJob struct {
	warmer StatsWarmer
	logger *slog.Logger
}

// NewConsentStatsWarmupJob constructs the warmup job.
func NewConsentStatsWarmupJob(warmer StatsWarmer, logger *slog.Logger) *ConsentStatsWarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsentStatsWarmupJob{warmer: warmer, logger: logger}
}

// Handle processes TaskTypeConsentStatsWarmup tasks.
func (j *ConsentStatsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if _, err := j.warmer.Statistics(ctx); err != nil {
		return fmt.Errorf("jobs: consent stats warmup: %w", err)
	}
	j.logger.Debug("consent stats warmed")
	return nil
}
