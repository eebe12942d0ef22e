package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/inboxdesk/inboxdesk/internal/models"
)

// ErrTicketNotFound is returned by lookups that match no row.
var ErrTicketNotFound = errors.New("ticket not found")

// TicketRepository persists tickets and their attachment rows. Methods
// take a sqlx.Ext so callers can scope writes to a run transaction.
type TicketRepository struct {
	db *sqlx.DB
}

func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// DB returns the underlying handle, for callers that open transactions.
func (r *TicketRepository) DB() *sqlx.DB {
	return r.db
}

// Insert stores a new ticket and fills in its generated id.
func (r *TicketRepository) Insert(ext sqlx.Ext, ticket *models.Ticket) error {
	now := time.Now().UTC()
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = now
	}
	ticket.UpdatedAt = now

	query := `
		INSERT INTO tickets (
			ticket_number, source, source_id, subject, content_text,
			content_html, sender_email, sender_name, recipient_email,
			cc_emails, priority, status, raw_headers, created_at,
			received_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{
		ticket.TicketNumber,
		ticket.Source,
		ticket.SourceID,
		ticket.Subject,
		ticket.ContentText,
		ticket.ContentHTML,
		ticket.SenderEmail,
		ticket.SenderName,
		ticket.RecipientEmail,
		ticket.CCEmails,
		ticket.Priority,
		ticket.Status,
		ticket.RawHeaders,
		ticket.CreatedAt,
		ticket.ReceivedAt,
		ticket.UpdatedAt,
	}

	if isPostgres(ext) {
		row := ext.QueryRowx(rebind(ext, query+" RETURNING id"), args...)
		if err := row.Scan(&ticket.ID); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		return nil
	}
	res, err := ext.Exec(rebind(ext, query), args...)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert ticket id: %w", err)
	}
	ticket.ID = id
	return nil
}

// FindBySourceID looks a ticket up by its dedup natural key. Returns
// ErrTicketNotFound when no ticket matches.
func (r *TicketRepository) FindBySourceID(ext sqlx.Ext, source, sourceID string) (*models.Ticket, error) {
	query := rebind(ext, `
		SELECT id, ticket_number, source, source_id, subject, content_text,
			content_html, sender_email, sender_name, recipient_email,
			cc_emails, priority, status, raw_headers, created_at,
			received_at, updated_at
		FROM tickets
		WHERE source = ? AND source_id = ?`)

	ticket := &models.Ticket{}
	err := sqlx.Get(ext, ticket, query, source, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find ticket by source id: %w", err)
	}
	return ticket, nil
}

// TicketNumberExists reports whether a generated number is already taken.
func (r *TicketRepository) TicketNumberExists(ext sqlx.Ext, number string) (bool, error) {
	query := rebind(ext, `SELECT COUNT(1) FROM tickets WHERE ticket_number = ?`)
	var count int
	if err := sqlx.Get(ext, &count, query, number); err != nil {
		return false, fmt.Errorf("check ticket number: %w", err)
	}
	return count > 0, nil
}

// UpdateContentHTML overwrites the HTML body, used after cid rewriting.
func (r *TicketRepository) UpdateContentHTML(ext sqlx.Ext, ticketID int64, html string) error {
	query := rebind(ext, `UPDATE tickets SET content_html = ?, updated_at = ? WHERE id = ?`)
	if _, err := ext.Exec(query, html, time.Now().UTC(), ticketID); err != nil {
		return fmt.Errorf("update ticket html: %w", err)
	}
	return nil
}

// InsertAttachment stores an attachment row and fills in its id.
func (r *TicketRepository) InsertAttachment(ext sqlx.Ext, att *models.Attachment) error {
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO attachments (
			ticket_id, filename, content_type, size, storage_path,
			checksum, content_id, is_embedded, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{
		att.TicketID,
		att.Filename,
		att.ContentType,
		att.Size,
		att.StoragePath,
		att.Checksum,
		att.ContentID,
		att.IsEmbedded,
		att.CreatedAt,
	}

	if isPostgres(ext) {
		row := ext.QueryRowx(rebind(ext, query+" RETURNING id"), args...)
		if err := row.Scan(&att.ID); err != nil {
			return fmt.Errorf("insert attachment: %w", err)
		}
		return nil
	}
	res, err := ext.Exec(rebind(ext, query), args...)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert attachment id: %w", err)
	}
	att.ID = id
	return nil
}

// Delete removes a ticket and its attachment rows, returning the
// storage paths of the removed attachments so the caller can clean up
// the backing files best-effort. File cleanup must never block the row
// deletion, so it is left to the caller.
func (r *TicketRepository) Delete(ticketID int64) ([]string, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var paths []string
	query := rebind(tx, `SELECT storage_path FROM attachments WHERE ticket_id = ?`)
	if err := tx.Select(&paths, query, ticketID); err != nil {
		return nil, fmt.Errorf("list attachment paths: %w", err)
	}
	if _, err := tx.Exec(rebind(tx, `DELETE FROM attachments WHERE ticket_id = ?`), ticketID); err != nil {
		return nil, fmt.Errorf("delete attachments: %w", err)
	}
	res, err := tx.Exec(rebind(tx, `DELETE FROM tickets WHERE id = ?`), ticketID)
	if err != nil {
		return nil, fmt.Errorf("delete ticket: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrTicketNotFound
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete: %w", err)
	}
	return paths, nil
}
