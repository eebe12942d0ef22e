// Package attachment persists the binary parts of an inbound message:
// filename sanitization, integrity checksums, size gating, blob-store
// writes, and the attachment rows that describe them.
package attachment

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/inboxdesk/inboxdesk/internal/mail/inbound/decoder"
	"github.com/inboxdesk/inboxdesk/internal/metrics"
	"github.com/inboxdesk/inboxdesk/internal/models"
)

// BlobStore is where payload bytes end up.
type BlobStore interface {
	Write(name string, data []byte) (string, error)
}

// RecordStore persists attachment metadata rows.
type RecordStore interface {
	InsertAttachment(ext sqlx.Ext, att *models.Attachment) error
}

// Extractor turns candidate parts into stored attachments. A rejected
// or failing part is logged and skipped; extraction never fails the
// owning ticket.
type Extractor struct {
	blobs   BlobStore
	records RecordStore
	maxSize int64
	logger  *log.Logger
	now     func() time.Time
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithLogger overrides the logger used for skip/failure diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock overrides the wall clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExtractor builds an extractor bound to a blob store and a record
// store. maxSize caps accepted payloads in bytes; payloads over the cap
// are discarded, never truncated.
func NewExtractor(blobs BlobStore, records RecordStore, maxSize int64, opts ...Option) *Extractor {
	e := &Extractor{
		blobs:   blobs,
		records: records,
		maxSize: maxSize,
		logger:  log.Default(),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract stores every acceptable candidate part for the given ticket,
// in part-encounter order, and returns the created records.
func (e *Extractor) Extract(ext sqlx.Ext, ticketID int64, parts []decoder.Part) []*models.Attachment {
	var out []*models.Attachment
	for _, part := range parts {
		att, err := e.extractOne(ext, ticketID, part)
		if err != nil {
			metrics.AttachmentsRejected.Inc()
			e.logger.Printf("attachment: skipping %q for ticket %d: %v", part.Filename, ticketID, err)
			continue
		}
		if att != nil {
			metrics.AttachmentsStored.Inc()
			out = append(out, att)
		}
	}
	return out
}

func (e *Extractor) extractOne(ext sqlx.Ext, ticketID int64, part decoder.Part) (*models.Attachment, error) {
	filename := e.resolveFilename(part)
	if filename == "" {
		// No filename and no content-id leaves nothing to store under.
		return nil, nil
	}

	if len(part.Data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	size := int64(len(part.Data))
	if e.maxSize > 0 && size > e.maxSize {
		return nil, fmt.Errorf("payload %d bytes exceeds limit %d", size, e.maxSize)
	}

	sum := sha256.Sum256(part.Data)
	storageName := fmt.Sprintf("%d_%d_%s", ticketID, e.now().Unix(), filename)
	path, err := e.blobs.Write(storageName, part.Data)
	if err != nil {
		return nil, fmt.Errorf("store payload: %w", err)
	}

	att := &models.Attachment{
		TicketID:    ticketID,
		Filename:    filename,
		ContentType: part.ContentType,
		Size:        size,
		StoragePath: path,
		Checksum:    hex.EncodeToString(sum[:]),
		ContentID:   part.ContentID,
		IsEmbedded:  part.Embedded,
		CreatedAt:   e.now(),
	}
	if err := e.records.InsertAttachment(ext, att); err != nil {
		return nil, fmt.Errorf("record attachment: %w", err)
	}
	return att, nil
}

// resolveFilename sanitizes the part's declared filename, synthesizes
// one for cid-only embedded images, and substitutes a generated name
// when sanitization leaves nothing usable.
func (e *Extractor) resolveFilename(part decoder.Part) string {
	name := part.Filename
	if name == "" && part.ContentID != "" {
		name = fmt.Sprintf("embedded_image_%s.%s", part.ContentID, subtype(part.ContentType))
	}
	if name == "" {
		return ""
	}
	name = Sanitize(name)
	if name == "" {
		name = "attachment_" + uuid.NewString()
	}
	return name
}

func subtype(contentType string) string {
	if i := strings.LastIndex(contentType, "/"); i >= 0 && i < len(contentType)-1 {
		return contentType[i+1:]
	}
	return "bin"
}
