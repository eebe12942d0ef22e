package models

import (
	"database/sql"
	"time"
)

// Sync outcome values recorded in the sync log.
const (
	SyncStatusSuccess = "success"
	SyncStatusFailure = "failure"
)

// SyncLog is one append-only record per sync run. The most recent
// success entry's LastUID is the exclusive lower bound for the next
// run's search window; entries are never updated after creation.
type SyncLog struct {
	ID              int64           `db:"id"`
	SyncTime        time.Time       `db:"sync_time"`
	EmailsFetched   int             `db:"emails_fetched"`
	Status          string          `db:"status"`
	ErrorMessage    sql.NullString  `db:"error_message"`
	LastUID         sql.NullString  `db:"last_uid"`
	DurationSeconds sql.NullFloat64 `db:"duration_seconds"`
}
