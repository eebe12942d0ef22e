package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/inboxdesk/inboxdesk/internal/models"
)

func TestLogSyncAppendsEntry(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSyncLogRepository(db)

	mock.ExpectExec(`INSERT INTO email_sync_logs`).
		WithArgs(sqlmock.AnyArg(), 3, models.SyncStatusSuccess, nil, "42", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry, err := repo.LogSync(3, models.SyncStatusSuccess, "", "42", 1500*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 3, entry.EmailsFetched)
	require.True(t, entry.LastUID.Valid)
	require.Equal(t, "42", entry.LastUID.String)
	require.InDelta(t, 1.5, entry.DurationSeconds.Float64, 0.001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogSyncFailureRecordsError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSyncLogRepository(db)

	mock.ExpectExec(`INSERT INTO email_sync_logs`).
		WithArgs(sqlmock.AnyArg(), 0, models.SyncStatusFailure, "imap dial: refused", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))

	entry, err := repo.LogSync(0, models.SyncStatusFailure, "imap dial: refused", "", time.Second)
	require.NoError(t, err)
	require.True(t, entry.ErrorMessage.Valid)
	require.False(t, entry.LastUID.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastUIDFromMostRecentSuccess(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSyncLogRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "sync_time", "emails_fetched", "status", "error_message",
		"last_uid", "duration_seconds",
	}).AddRow(8, time.Now().UTC(), 5, models.SyncStatusSuccess, nil, "77", 2.0)
	mock.ExpectQuery(`FROM email_sync_logs`).
		WithArgs(models.SyncStatusSuccess).
		WillReturnRows(rows)

	uid, ok, err := repo.LastUID()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "77", uid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastUIDNoSuccessfulSync(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSyncLogRepository(db)

	mock.ExpectQuery(`FROM email_sync_logs`).
		WithArgs(models.SyncStatusSuccess).
		WillReturnError(sql.ErrNoRows)

	_, ok, err := repo.LastUID()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastUIDIgnoresEmptyMarker(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSyncLogRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "sync_time", "emails_fetched", "status", "error_message",
		"last_uid", "duration_seconds",
	}).AddRow(8, time.Now().UTC(), 0, models.SyncStatusSuccess, nil, nil, 2.0)
	mock.ExpectQuery(`FROM email_sync_logs`).
		WithArgs(models.SyncStatusSuccess).
		WillReturnRows(rows)

	_, ok, err := repo.LastUID()
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentReturnsNewestFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSyncLogRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "sync_time", "emails_fetched", "status", "error_message",
		"last_uid", "duration_seconds",
	}).
		AddRow(3, time.Now().UTC(), 2, models.SyncStatusSuccess, nil, "90", 1.0).
		AddRow(2, time.Now().UTC().Add(-time.Hour), 0, models.SyncStatusFailure, "boom", nil, 0.5)
	mock.ExpectQuery(`FROM email_sync_logs`).
		WithArgs(2).
		WillReturnRows(rows)

	entries, err := repo.Recent(2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(3), entries[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
