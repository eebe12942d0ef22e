package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrimaryKeyClausePerDriver(t *testing.T) {
	require.Equal(t, "BIGSERIAL PRIMARY KEY", primaryKeyClause("postgres"))
	require.Equal(t, "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY", primaryKeyClause("mysql"))
	require.Equal(t, "INTEGER PRIMARY KEY AUTOINCREMENT", primaryKeyClause("sqlite3"))
	require.Equal(t, "INTEGER PRIMARY KEY AUTOINCREMENT", primaryKeyClause("unknown"))
}

func TestSchemaStatementsCoverAllTables(t *testing.T) {
	statements := schemaStatements("sqlite3")
	joined := strings.Join(statements, "\n")

	for _, table := range []string{"tickets", "attachments", "settings", "email_sync_logs"} {
		require.Contains(t, joined, "CREATE TABLE IF NOT EXISTS "+table)
	}
	require.Contains(t, joined, "uq_tickets_ticket_number UNIQUE (ticket_number)")
	require.Contains(t, joined, "uq_tickets_source UNIQUE (source, source_id)")
}

// Column names must stay valid as bare identifiers on every supported
// driver. "key" is reserved in MySQL, so the settings table names its
// lookup column setting_key.
func TestSchemaStatementsAvoidReservedIdentifiers(t *testing.T) {
	for _, driver := range []string{"sqlite3", "postgres", "mysql"} {
		joined := strings.Join(schemaStatements(driver), "\n")
		require.Contains(t, joined, "setting_key VARCHAR(100) NOT NULL", driver)
		require.Contains(t, joined, "UNIQUE (setting_key)", driver)
		require.NotContains(t, joined, "\tkey ", driver)
	}
}

func TestSchemaStatementsMySQLAutoIncrement(t *testing.T) {
	statements := schemaStatements("mysql")
	require.Contains(t, statements[0], "id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY")
	require.NotContains(t, strings.Join(statements, "\n"), "AUTOINCREMENT")
}
