package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// TicketStatusNew is the initial status for every ingested ticket.
	// Later lifecycle transitions belong to whatever consumes the
	// tickets, not to this pipeline.
	TicketStatusNew = "new"

	// TicketSourceEmail is the only source this pipeline produces.
	TicketSourceEmail = "email"
)

// Ticket is one inbound support request persisted from an email message.
// SourceID holds the email Message-ID (or a synthesized fallback) and is
// the natural key for deduplication: (source, source_id) is unique.
type Ticket struct {
	ID             int64      `db:"id"`
	TicketNumber   string     `db:"ticket_number"`
	Source         string     `db:"source"`
	SourceID       string     `db:"source_id"`
	Subject        string     `db:"subject"`
	ContentText    string     `db:"content_text"`
	ContentHTML    string     `db:"content_html"`
	SenderEmail    string     `db:"sender_email"`
	SenderName     string     `db:"sender_name"`
	RecipientEmail string     `db:"recipient_email"`
	CCEmails       StringList `db:"cc_emails"`
	Priority       int        `db:"priority"`
	Status         string     `db:"status"`
	RawHeaders     HeaderMap  `db:"raw_headers"`
	CreatedAt      time.Time  `db:"created_at"`
	ReceivedAt     time.Time  `db:"received_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// StringList stores an ordered list of strings as a JSON text column.
type StringList []string

// Value implements driver.Valuer. An empty list is stored as NULL.
func (l StringList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	data, ok := normalizeJSONColumn(src)
	if !ok {
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if len(data) == 0 {
		*l = nil
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal string list: %w", err)
	}
	*l = out
	return nil
}

// HeaderMap stores free-form header key/value pairs as a JSON text column.
type HeaderMap map[string]string

// Value implements driver.Valuer. An empty map is stored as NULL.
func (m HeaderMap) Value() (driver.Value, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, fmt.Errorf("marshal header map: %w", err)
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (m *HeaderMap) Scan(src any) error {
	data, ok := normalizeJSONColumn(src)
	if !ok {
		return fmt.Errorf("cannot scan %T into HeaderMap", src)
	}
	if len(data) == 0 {
		*m = nil
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal header map: %w", err)
	}
	*m = out
	return nil
}

func normalizeJSONColumn(src any) ([]byte, bool) {
	switch v := src.(type) {
	case nil:
		return nil, true
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	default:
		return nil, false
	}
}
