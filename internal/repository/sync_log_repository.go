package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/inboxdesk/inboxdesk/internal/models"
)

// SyncLogRepository appends and reads sync run records. The log is
// append-only: no update or delete operations exist here, retention is
// external housekeeping.
type SyncLogRepository struct {
	db *sqlx.DB
}

func NewSyncLogRepository(db *sqlx.DB) *SyncLogRepository {
	return &SyncLogRepository{db: db}
}

// LogSync appends one entry describing a finished run. lastUID may be
// empty when the run had no resume marker to record.
func (r *SyncLogRepository) LogSync(emailsFetched int, status, errorMessage, lastUID string, duration time.Duration) (*models.SyncLog, error) {
	entry := &models.SyncLog{
		SyncTime:        time.Now().UTC(),
		EmailsFetched:   emailsFetched,
		Status:          status,
		ErrorMessage:    sql.NullString{String: errorMessage, Valid: errorMessage != ""},
		LastUID:         sql.NullString{String: lastUID, Valid: lastUID != ""},
		DurationSeconds: sql.NullFloat64{Float64: duration.Seconds(), Valid: true},
	}
	query := rebind(r.db, `
		INSERT INTO email_sync_logs (
			sync_time, emails_fetched, status, error_message, last_uid,
			duration_seconds
		) VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.Exec(query,
		entry.SyncTime,
		entry.EmailsFetched,
		entry.Status,
		entry.ErrorMessage,
		entry.LastUID,
		entry.DurationSeconds,
	); err != nil {
		return nil, fmt.Errorf("log sync: %w", err)
	}
	return entry, nil
}

// LastSuccessfulSync returns the most recent success entry, or nil when
// no sync has succeeded yet.
func (r *SyncLogRepository) LastSuccessfulSync() (*models.SyncLog, error) {
	query := rebind(r.db, `
		SELECT id, sync_time, emails_fetched, status, error_message,
			last_uid, duration_seconds
		FROM email_sync_logs
		WHERE status = ?
		ORDER BY sync_time DESC, id DESC
		LIMIT 1`)
	entry := &models.SyncLog{}
	err := r.db.Get(entry, query, models.SyncStatusSuccess)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last successful sync: %w", err)
	}
	return entry, nil
}

// LastUID returns the resume marker from the most recent successful
// sync. ok is false when there is no marker, meaning the next run must
// search the whole mailbox.
func (r *SyncLogRepository) LastUID() (string, bool, error) {
	entry, err := r.LastSuccessfulSync()
	if err != nil {
		return "", false, err
	}
	if entry == nil || !entry.LastUID.Valid || entry.LastUID.String == "" {
		return "", false, nil
	}
	return entry.LastUID.String, true, nil
}

// Recent returns the latest n entries, newest first.
func (r *SyncLogRepository) Recent(n int) ([]models.SyncLog, error) {
	if n <= 0 {
		n = 20
	}
	query := rebind(r.db, `
		SELECT id, sync_time, emails_fetched, status, error_message,
			last_uid, duration_seconds
		FROM email_sync_logs
		ORDER BY sync_time DESC, id DESC
		LIMIT ?`)
	var entries []models.SyncLog
	if err := r.db.Select(&entries, query, n); err != nil {
		return nil, fmt.Errorf("recent sync logs: %w", err)
	}
	return entries, nil
}
