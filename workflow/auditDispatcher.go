package workflow

import (
	"context"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/models"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditDispatcher drains the activity-log outbox into Pub/Sub. Audit
// correctness never depends on it: entries are committed with their
// mutation, and this loop only flips publishing bookkeeping.
type AuditDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewAuditDispatcher(db *gorm.DB, logger *logrus.Logger) *AuditDispatcher {
	return &AuditDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
	}
}

// Run polls until the context ends. When a topic is not configured the loop
// exits immediately so deployments without Pub/Sub run clean.
func (d *AuditDispatcher) Run(ctx context.Context) {
	if os.Getenv("AUDIT_TOPIC") == "" {
		if d.Logger != nil {
			d.Logger.Warn("AUDIT_TOPIC not set; audit dispatcher disabled")
		}
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.withLeaderLock(ctx, func() { d.dispatchOnce(ctx) })
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// withLeaderLock keeps replicas from polling the same rows at once. The
// SKIP LOCKED claim stays correct without it, so a lost or unavailable lock
// degrades to best effort rather than stopping dispatch.
func (d *AuditDispatcher) withLeaderLock(ctx context.Context, fn func()) {
	locker := config.GetRedisLock()
	if locker == nil {
		fn()
		return
	}
	lock, err := locker.Obtain(ctx, "AuditDispatcherLeader", d.LockTimeout, nil)
	if err != nil {
		if err != redislock.ErrNotObtained && d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field": "AuditDispatcher",
			}).Error("leader lock: " + err.Error())
		}
		if err == redislock.ErrNotObtained {
			return
		}
		fn()
		return
	}
	defer lock.Release(ctx)
	fn()
}

func (d *AuditDispatcher) dispatchOnce(ctx context.Context) {
	now := time.Now().UTC()
	staleBefore := now.Add(-d.LockTimeout)
	db := d.DB
	if db == nil {
		return
	}

	var claimed []models.LogEntry
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Eligible:
		// - PENDING / FAILED and ready to retry
		// - PROCESSING but lock is stale (dispatcher crashed mid-batch), reclaim after LockTimeout
		q := tx.
			Where(`
				(
					publish_status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
				)
				OR
				(
					publish_status = ? AND locked_at IS NOT NULL AND locked_at <= ?
				)
			`, []string{string(models.OutboxPublishStatusPending), string(models.OutboxPublishStatusFailed)}, now, models.OutboxPublishStatusProcessing, staleBefore).
			Order("id ASC").
			Limit(d.BatchSize).
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		if err := q.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		for i := range claimed {
			// Enforce max attempts: poison entries go terminal (DLQ equivalent).
			if d.MaxAttempts > 0 && claimed[i].PublishAttempts >= d.MaxAttempts {
				msg := fmt.Sprintf("max publish attempts exceeded (%d)", d.MaxAttempts)
				claimed[i].PublishStatus = models.OutboxPublishStatusDead
				if err := tx.Model(&models.LogEntry{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
					"publish_status":     models.OutboxPublishStatusDead,
					"last_publish_error": msg,
					"next_attempt_at":    nil,
					"locked_at":          nil,
					"locked_by":          nil,
				}).Error; err != nil {
					return err
				}
				continue
			}

			// Claim for publishing.
			claimed[i].PublishStatus = models.OutboxPublishStatusProcessing
			claimed[i].PublishAttempts = claimed[i].PublishAttempts + 1
			if err := tx.Model(&models.LogEntry{}).Where("id = ?", claimed[i].ID).Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusProcessing,
				"locked_at":          &now,
				"locked_by":          d.DispatcherID,
				"publish_attempts":   gorm.Expr("publish_attempts + 1"),
				"last_publish_error": "",
				"next_attempt_at":    nil,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || len(claimed) == 0 {
		return
	}

	for _, entry := range claimed {
		// Skip terminal rows that were marked DEAD in the claim transaction.
		if entry.PublishStatus == models.OutboxPublishStatusDead {
			continue
		}
		msg := toAuditEventMessage(entry)
		if _, pubErr := config.PublishAuditEventWithResult(ctx, msg); pubErr != nil {
			d.markPublishFailed(ctx, entry.ID, pubErr, entry.PublishAttempts)
			continue
		}
		d.markPublishSent(ctx, entry.ID, now)
	}
}

func toAuditEventMessage(entry models.LogEntry) config.AuditEventMessage {
	return config.AuditEventMessage{
		ID:            entry.ID,
		LoggedAt:      entry.CreatedAt,
		Actor:         entry.UsernameCache,
		Action:        string(entry.Action),
		EntityType:    string(entry.EntityType),
		EntityId:      entry.EntityId,
		Details:       entry.Details,
		CorrelationId: entry.CorrelationId,
	}
}

func (d *AuditDispatcher) markPublishSent(ctx context.Context, entryID int, now time.Time) {
	db := d.DB.WithContext(ctx)
	_ = db.Model(&models.LogEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]interface{}{
			"publish_status":  models.OutboxPublishStatusPublished,
			"published_at":    &now,
			"locked_at":       nil,
			"locked_by":       nil,
			"next_attempt_at": nil,
		}).Error
}

func (d *AuditDispatcher) markPublishFailed(ctx context.Context, entryID int, err error, attempt int) {
	db := d.DB.WithContext(ctx)
	now := time.Now().UTC()
	msg := err.Error()

	// Terminal after MaxAttempts (DLQ equivalent).
	if d.MaxAttempts > 0 && attempt >= d.MaxAttempts {
		_ = db.Model(&models.LogEntry{}).
			Where("id = ?", entryID).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusDead,
				"last_publish_error": msg,
				"next_attempt_at":    nil,
				"locked_at":          nil,
				"locked_by":          nil,
			}).Error

		if d.Logger != nil {
			d.Logger.WithFields(logrus.Fields{
				"field":    "AuditDispatcher",
				"entry_id": entryID,
				"attempt":  attempt,
			}).Error("audit publish moved to DEAD after max attempts: " + fmt.Sprintf("%v", err))
		}
		return
	}

	backoff := d.InitialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > time.Minute*10 {
			backoff = time.Minute * 10
			break
		}
	}
	next := now.Add(backoff)
	_ = db.Model(&models.LogEntry{}).
		Where("id = ?", entryID).
		Updates(map[string]interface{}{
			"publish_status":     models.OutboxPublishStatusFailed,
			"last_publish_error": msg,
			"next_attempt_at":    &next,
			"locked_at":          nil,
			"locked_by":          nil,
		}).Error

	if d.Logger != nil {
		d.Logger.WithFields(logrus.Fields{
			"field":           "AuditDispatcher",
			"entry_id":        entryID,
			"attempt":         attempt,
			"next_attempt_at": next.Format(time.RFC3339Nano),
		}).Error("audit publish failed: " + fmt.Sprintf("%v", err))
	}
}
