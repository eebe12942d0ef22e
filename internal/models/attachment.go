package models

import "time"

// Attachment is a binary payload extracted from an email and owned by
// exactly one ticket. Embedded attachments carry the MIME Content-ID
// their HTML body referenced via cid:.
type Attachment struct {
	ID          int64     `db:"id"`
	TicketID    int64     `db:"ticket_id"`
	Filename    string    `db:"filename"`
	ContentType string    `db:"content_type"`
	Size        int64     `db:"size"`
	StoragePath string    `db:"storage_path"`
	Checksum    string    `db:"checksum"`
	ContentID   string    `db:"content_id"`
	IsEmbedded  bool      `db:"is_embedded"`
	CreatedAt   time.Time `db:"created_at"`
}
