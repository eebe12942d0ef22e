// Package translator turns one raw inbound message into a persisted
// ticket with attachments, or decides it is a duplicate and does
// nothing.
package translator

import (
	"errors"
	"fmt"
	"log"
	"math/rand"
	stdmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/jmoiron/sqlx"

	"github.com/inboxdesk/inboxdesk/internal/mail/inbound/decoder"
	"github.com/inboxdesk/inboxdesk/internal/mail/inbound/rewrite"
	"github.com/inboxdesk/inboxdesk/internal/models"
	"github.com/inboxdesk/inboxdesk/internal/repository"
)

// ErrDuplicate reports that a message was already converted to a
// ticket. It is an expected outcome on re-poll, not a failure.
var ErrDuplicate = errors.New("message already ingested")

const ticketNumberAttempts = 10

type ticketStore interface {
	FindBySourceID(ext sqlx.Ext, source, sourceID string) (*models.Ticket, error)
	TicketNumberExists(ext sqlx.Ext, number string) (bool, error)
	Insert(ext sqlx.Ext, ticket *models.Ticket) error
	UpdateContentHTML(ext sqlx.Ext, ticketID int64, html string) error
}

type attachmentExtractor interface {
	Extract(ext sqlx.Ext, ticketID int64, parts []decoder.Part) []*models.Attachment
}

// Translator assembles tickets from decoded messages. All writes go
// through the sqlx.Ext handed to Translate, so the caller owns the
// commit boundary.
type Translator struct {
	tickets    ticketStore
	extractor  attachmentExtractor
	decoder    *decoder.Decoder
	logger     *log.Logger
	now        func() time.Time
	randDigits func() string
}

// Option customizes a Translator.
type Option func(*Translator)

// WithLogger overrides the logger used for diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithClock overrides the wall clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) {
		if now != nil {
			t.now = now
		}
	}
}

// WithNumberSuffix overrides the random ticket-number suffix source,
// primarily for collision tests.
func WithNumberSuffix(fn func() string) Option {
	return func(t *Translator) {
		if fn != nil {
			t.randDigits = fn
		}
	}
}

func New(tickets ticketStore, extractor attachmentExtractor, opts ...Option) *Translator {
	t := &Translator{
		tickets:    tickets,
		extractor:  extractor,
		decoder:    decoder.New(),
		logger:     log.Default(),
		now:        func() time.Time { return time.Now().UTC() },
		randDigits: func() string { return fmt.Sprintf("%04d", rand.Intn(10000)) },
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate converts one raw message into a pending ticket within ext.
// seen tracks external identifiers already handled in the current run.
// Returns ErrDuplicate when the message was ingested before.
func (t *Translator) Translate(ext sqlx.Ext, raw []byte, uid imap.UID, seen map[string]struct{}) (*models.Ticket, error) {
	msg, err := t.decoder.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}

	sourceID := msg.MessageID
	if sourceID == "" {
		sourceID = fmt.Sprintf("no-id-%d-%d", uid, t.now().Unix())
	}

	if seen != nil {
		if _, ok := seen[sourceID]; ok {
			return nil, ErrDuplicate
		}
	}
	if _, err := t.tickets.FindBySourceID(ext, models.TicketSourceEmail, sourceID); err == nil {
		return nil, ErrDuplicate
	} else if !errors.Is(err, repository.ErrTicketNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	senderName, senderEmail := ParseSender(msg.From)
	number, err := t.uniqueTicketNumber(ext)
	if err != nil {
		return nil, err
	}

	subject := msg.Subject
	if subject == "" {
		subject = "No Subject"
	}

	ticket := &models.Ticket{
		TicketNumber:   number,
		Source:         models.TicketSourceEmail,
		SourceID:       sourceID,
		Subject:        subject,
		ContentText:    msg.PlainText,
		ContentHTML:    msg.HTMLText,
		SenderEmail:    senderEmail,
		SenderName:     senderName,
		RecipientEmail: msg.To,
		CCEmails:       models.StringList(msg.CC),
		Priority:       3,
		Status:         models.TicketStatusNew,
		RawHeaders:     models.HeaderMap(msg.Headers),
		ReceivedAt:     t.receivedAt(msg.Date),
	}

	// Insert before extraction so attachment rows can reference the id.
	if err := t.tickets.Insert(ext, ticket); err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}

	attachments := t.extractor.Extract(ext, ticket.ID, msg.Parts)
	if ticket.ContentHTML != "" && len(attachments) > 0 {
		rewritten := rewrite.ReplaceCIDReferences(ticket.ContentHTML, attachments)
		if rewritten != ticket.ContentHTML {
			if err := t.tickets.UpdateContentHTML(ext, ticket.ID, rewritten); err != nil {
				return nil, fmt.Errorf("rewrite html: %w", err)
			}
			ticket.ContentHTML = rewritten
		}
	}

	if seen != nil {
		seen[sourceID] = struct{}{}
	}
	t.logger.Printf("translator: created ticket %s from message %s", ticket.TicketNumber, sourceID)
	return ticket, nil
}

// receivedAt parses the Date header into a UTC-naive timestamp,
// falling back to ingestion time when the header is absent or broken.
func (t *Translator) receivedAt(date string) time.Time {
	if date == "" {
		return t.now()
	}
	parsed, err := stdmail.ParseDate(date)
	if err != nil {
		t.logger.Printf("translator: unparseable date %q: %v", date, err)
		return t.now()
	}
	return parsed.UTC()
}

// uniqueTicketNumber generates a TKT-YYYYMMDD-NNNN number, retrying a
// bounded number of times against the store's uniqueness check and
// falling back to a timestamp suffix when every attempt collides.
func (t *Translator) uniqueTicketNumber(ext sqlx.Ext) (string, error) {
	datePart := t.now().Format("20060102")
	for i := 0; i < ticketNumberAttempts; i++ {
		number := fmt.Sprintf("TKT-%s-%s", datePart, t.randDigits())
		exists, err := t.tickets.TicketNumberExists(ext, number)
		if err != nil {
			return "", fmt.Errorf("check ticket number: %w", err)
		}
		if !exists {
			return number, nil
		}
	}
	stamp := fmt.Sprintf("%d", t.now().Unix())
	if len(stamp) > 6 {
		stamp = stamp[len(stamp)-6:]
	}
	return fmt.Sprintf("TKT-%s-%s", datePart, stamp), nil
}

// ParseSender splits a From header into display name and address,
// handling both "Name <addr>" and bare-address forms.
func ParseSender(from string) (name, email string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}
	if open := strings.Index(from, "<"); open >= 0 {
		if end := strings.Index(from[open:], ">"); end > 0 {
			name = strings.Trim(strings.TrimSpace(from[:open]), `"`)
			email = strings.TrimSpace(from[open+1 : open+end])
			return name, email
		}
	}
	return "", from
}
