package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Setting keys understood by the mailbox settings loader.
const (
	SettingIMAPServer        = "IMAP_SERVER"
	SettingIMAPPort          = "IMAP_PORT"
	SettingIMAPUsername      = "IMAP_USERNAME"
	SettingIMAPPassword      = "IMAP_PASSWORD"
	SettingIMAPUseSSL        = "IMAP_USE_SSL"
	SettingIMAPFolder        = "IMAP_FOLDER"
	SettingMaxEmailsPerSync  = "MAX_EMAILS_PER_SYNC"
	SettingAttachmentPath    = "ATTACHMENT_STORAGE_PATH"
	SettingAttachmentMaxSize = "ATTACHMENT_MAX_SIZE"
)

// SettingsRepository reads and writes the key/value settings table.
// Values stored here override the config-file defaults at run time.
type SettingsRepository struct {
	db *sqlx.DB
}

func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the stored value for key, or def when the key is absent.
func (r *SettingsRepository) Get(key, def string) (string, error) {
	query := rebind(r.db, `SELECT value FROM settings WHERE setting_key = ?`)
	var value sql.NullString
	err := r.db.Get(&value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("get setting %s: %w", key, err)
	}
	if !value.Valid || value.String == "" {
		return def, nil
	}
	return value.String, nil
}

// Set stores a value, inserting or updating as needed.
func (r *SettingsRepository) Set(key, value, description, category string) error {
	now := time.Now().UTC()
	if category == "" {
		category = "general"
	}
	update := rebind(r.db, `
		UPDATE settings SET value = ?, updated_at = ? WHERE setting_key = ?`)
	res, err := r.db.Exec(update, value, now, key)
	if err != nil {
		return fmt.Errorf("update setting %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	insert := rebind(r.db, `
		INSERT INTO settings (setting_key, value, description, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := r.db.Exec(insert, key, value, description, category, now, now); err != nil {
		return fmt.Errorf("insert setting %s: %w", key, err)
	}
	return nil
}

// EnsureDefaults seeds the settings table with the given key/value
// pairs, leaving existing rows untouched.
func (r *SettingsRepository) EnsureDefaults(defaults map[string]string) error {
	for key, value := range defaults {
		query := rebind(r.db, `SELECT COUNT(1) FROM settings WHERE setting_key = ?`)
		var count int
		if err := r.db.Get(&count, query, key); err != nil {
			return fmt.Errorf("check setting %s: %w", key, err)
		}
		if count > 0 {
			continue
		}
		if err := r.Set(key, value, "", "email"); err != nil {
			return err
		}
	}
	return nil
}
