package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/invoices_backend/config"
	"bitbucket.org/mmdatafocus/invoices_backend/utils"
	"gorm.io/gorm"
)

// LogEntry is an append-only activity record. The application never updates
// or deletes rows; the outbox columns are dispatcher bookkeeping only and
// do not touch the audit payload.
type LogEntry struct {
	ID            int           `gorm:"primary_key" json:"id"`
	UserId        *int          `gorm:"index" json:"user_id"`
	User          *User         `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	UsernameCache string        `gorm:"size:100" json:"username"`
	Action        LogAction     `gorm:"size:30;index;not null" json:"action"`
	EntityType    LogEntityType `gorm:"size:10;not null" json:"entity_type"`
	EntityId      *int          `json:"entity_id"`
	EntityLabel   string        `gorm:"size:255" json:"entity_label"`
	Details       string        `gorm:"type:text" json:"details"`
	CorrelationId string        `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time     `gorm:"autoCreateTime;index" json:"created_at"`

	// outbox bookkeeping
	PublishStatus    OutboxPublishStatus `gorm:"size:12;default:PENDING;index" json:"-"`
	PublishAttempts  int                 `gorm:"default:0" json:"-"`
	NextAttemptAt    *time.Time          `gorm:"index" json:"-"`
	LockedAt         *time.Time          `json:"-"`
	LockedBy         string              `gorm:"size:100" json:"-"`
	LastPublishError string              `gorm:"size:1024" json:"-"`
	PublishedAt      *time.Time          `json:"-"`
}

// RecordLog appends one activity entry inside the caller's transaction.
// Actor identity comes from the request context; an anonymous actor (no
// session on the context) is recorded with a nil user and empty username
// rather than failing the mutation.
func RecordLog(tx *gorm.DB, ctx context.Context, action LogAction, entityType LogEntityType, entityId *int, entityLabel string, details string) error {

	var userId *int
	if id, ok := utils.GetUserIdFromContext(ctx); ok && id != 0 {
		userId = &id
	}
	username, _ := utils.GetUsernameFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	entry := LogEntry{
		UserId:        userId,
		UsernameCache: username,
		Action:        action,
		EntityType:    entityType,
		EntityId:      entityId,
		EntityLabel:   entityLabel,
		Details:       details,
		CorrelationId: correlationId,
		PublishStatus: OutboxPublishStatusPending,
	}
	return tx.WithContext(ctx).Create(&entry).Error
}

type LogFilter struct {
	User      string
	Action    string
	Query     string
	DateRange string
	Limit     int
	Offset    int
}

// ApplyTo narrows the query. Substring matches are case-insensitive; the
// daterange uses the same silent parser as the invoice filter.
func (f *LogFilter) ApplyTo(dbCtx *gorm.DB) *gorm.DB {
	if f.User != "" {
		needle := "%" + strings.ToLower(f.User) + "%"
		dbCtx = dbCtx.Where(
			"LOWER(username_cache) LIKE ? OR user_id IN (SELECT id FROM users WHERE LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?)",
			needle, needle, needle,
		)
	}
	if action, ok := ParseLogAction(f.Action); ok {
		dbCtx = dbCtx.Where("action = ?", action)
	}
	if f.Query != "" {
		dbCtx = dbCtx.Where("LOWER(details) LIKE ?", "%"+strings.ToLower(f.Query)+"%")
	}
	if start, end, ok := utils.ParseDateRange(f.DateRange); ok {
		dbCtx = dbCtx.Where("DATE(created_at) BETWEEN ? AND ?",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return dbCtx
}

type LogPage struct {
	Entries []*LogEntry `json:"entries"`
	Total   int64       `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

// ListLogEntries returns one window of matching entries, newest first.
// Total always counts the full match regardless of the window.
func ListLogEntries(ctx context.Context, filter *LogFilter) (*LogPage, error) {

	db := config.GetDB()

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := filter.ApplyTo(db.WithContext(ctx).Model(&LogEntry{})).Count(&total).Error; err != nil {
		return nil, err
	}

	var entries []*LogEntry
	if err := filter.ApplyTo(db.WithContext(ctx).Model(&LogEntry{})).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, err
	}

	return &LogPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// FetchLogEntriesForExport returns the full match for the excel download,
// same order as the listing.
func FetchLogEntriesForExport(ctx context.Context, filter *LogFilter) ([]*LogEntry, error) {
	db := config.GetDB()
	var entries []*LogEntry
	if err := filter.ApplyTo(db.WithContext(ctx).Model(&LogEntry{})).
		Order("created_at DESC, id DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
