package models

import "time"

// Setting is a single key/value row in the runtime settings store.
// Mailbox credentials and sync tuning live here so they can change
// without a process restart.
type Setting struct {
	ID          int64     `db:"id"`
	Key         string    `db:"setting_key"`
	Value       string    `db:"value"`
	Description string    `db:"description"`
	Category    string    `db:"category"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
