package repository

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestSettingsGetReturnsStoredValue(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(`SELECT value FROM settings WHERE setting_key =`).
		WithArgs(SettingIMAPServer).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("imap.example.com"))

	value, err := repo.Get(SettingIMAPServer, "fallback")
	require.NoError(t, err)
	require.Equal(t, "imap.example.com", value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsGetFallsBackToDefault(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(`SELECT value FROM settings WHERE setting_key =`).
		WithArgs(SettingIMAPFolder).
		WillReturnError(sql.ErrNoRows)

	value, err := repo.Get(SettingIMAPFolder, "INBOX")
	require.NoError(t, err)
	require.Equal(t, "INBOX", value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsGetTreatsEmptyAsDefault(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(`SELECT value FROM settings WHERE setting_key =`).
		WithArgs(SettingIMAPUsername).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(""))

	value, err := repo.Get(SettingIMAPUsername, "agent")
	require.NoError(t, err)
	require.Equal(t, "agent", value)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsSetUpdatesExistingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectExec(`UPDATE settings SET value = \?, updated_at = \? WHERE setting_key =`).
		WithArgs("993", sqlmock.AnyArg(), SettingIMAPPort).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(SettingIMAPPort, "993", "", "email"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsSetInsertsWhenMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectExec(`UPDATE settings SET value = \?, updated_at = \? WHERE setting_key =`).
		WithArgs("993", sqlmock.AnyArg(), SettingIMAPPort).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO settings \(setting_key,`).
		WithArgs(SettingIMAPPort, "993", "", "email", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Set(SettingIMAPPort, "993", "", "email"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDefaultsSkipsExistingKeys(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM settings WHERE setting_key =`).
		WithArgs(SettingIMAPServer).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	require.NoError(t, repo.EnsureDefaults(map[string]string{
		SettingIMAPServer: "imap.example.com",
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureDefaultsInsertsMissingKeys(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM settings WHERE setting_key =`).
		WithArgs(SettingIMAPFolder).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE settings SET value = \?, updated_at = \? WHERE setting_key =`).
		WithArgs("INBOX", sqlmock.AnyArg(), SettingIMAPFolder).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO settings \(setting_key,`).
		WithArgs(SettingIMAPFolder, "INBOX", "", "email", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.EnsureDefaults(map[string]string{
		SettingIMAPFolder: "INBOX",
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}
