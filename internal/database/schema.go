package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Migrate creates the ingestion tables when they do not exist yet.
// Statements are written against the lowest common SQL denominator;
// only the autoincrement primary key differs per driver.
func Migrate(db *sqlx.DB) error {
	for _, stmt := range schemaStatements(db.DriverName()) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func schemaStatements(driver string) []string {
	pk := primaryKeyClause(driver)
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tickets (
			id ` + pk + `,
			ticket_number VARCHAR(20) NOT NULL,
			source VARCHAR(20) NOT NULL DEFAULT 'email',
			source_id VARCHAR(255) NOT NULL,
			subject TEXT NOT NULL,
			content_text TEXT,
			content_html TEXT,
			sender_email VARCHAR(255) NOT NULL,
			sender_name VARCHAR(255),
			recipient_email VARCHAR(255),
			cc_emails TEXT,
			priority INTEGER NOT NULL DEFAULT 3,
			status VARCHAR(20) NOT NULL DEFAULT 'new',
			raw_headers TEXT,
			created_at TIMESTAMP NOT NULL,
			received_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			CONSTRAINT uq_tickets_ticket_number UNIQUE (ticket_number),
			CONSTRAINT uq_tickets_source UNIQUE (source, source_id)
		)`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id ` + pk + `,
			ticket_id INTEGER NOT NULL,
			filename VARCHAR(255) NOT NULL,
			content_type VARCHAR(100),
			size INTEGER,
			storage_path VARCHAR(500) NOT NULL,
			checksum VARCHAR(64),
			content_id VARCHAR(255),
			is_embedded BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL,
			CONSTRAINT fk_attachments_ticket FOREIGN KEY (ticket_id)
				REFERENCES tickets (id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS settings (
			id ` + pk + `,
			setting_key VARCHAR(100) NOT NULL,
			value TEXT,
			description TEXT,
			category VARCHAR(50) NOT NULL DEFAULT 'general',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			CONSTRAINT uq_settings_key UNIQUE (setting_key)
		)`,
		`CREATE TABLE IF NOT EXISTS email_sync_logs (
			id ` + pk + `,
			sync_time TIMESTAMP NOT NULL,
			emails_fetched INTEGER NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL,
			error_message TEXT,
			last_uid VARCHAR(50),
			duration_seconds DOUBLE PRECISION
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_source_id ON tickets (source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets (status)`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_ticket_id ON attachments (ticket_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_logs_sync_time ON email_sync_logs (sync_time)`,
	}
	return statements
}

func primaryKeyClause(driver string) string {
	switch strings.ToLower(driver) {
	case "postgres":
		return "BIGSERIAL PRIMARY KEY"
	case "mysql":
		return "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}
