// Package mail orchestrates mailbox sync runs: session lifecycle,
// incremental search windows, per-message error isolation, the
// commit-at-end transaction boundary, and sync-outcome logging.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/jmoiron/sqlx"

	"github.com/inboxdesk/inboxdesk/internal/config"
	"github.com/inboxdesk/inboxdesk/internal/mail/inbound/attachment"
	"github.com/inboxdesk/inboxdesk/internal/mail/inbound/connector"
	"github.com/inboxdesk/inboxdesk/internal/mail/inbound/translator"
	"github.com/inboxdesk/inboxdesk/internal/metrics"
	"github.com/inboxdesk/inboxdesk/internal/models"
	"github.com/inboxdesk/inboxdesk/internal/repository"
	"github.com/inboxdesk/inboxdesk/internal/storage"
)

// SyncResult summarizes one finished run. Failed counts messages that
// were isolated and skipped; callers surface it alongside the fetched
// count so a run cannot silently succeed with nothing ingested.
type SyncResult struct {
	EmailsFetched int
	Duplicates    int
	Failed        int
	LastUID       string
	Duration      time.Duration
	Status        string
}

// TestResult reports a connection probe.
type TestResult struct {
	Status   string
	Message  string
	Messages uint32
}

// imapSession is the slice of connector.Session the orchestrator uses.
type imapSession interface {
	SelectFolder(mailbox string) (uint32, error)
	SearchAfter(marker uint32, hasMarker bool) ([]imap.UID, error)
	FetchPeek(uids []imap.UID) ([]connector.RawMessage, error)
	Folders() ([]string, error)
	Logout() error
	Close()
}

// Fetcher drives mailbox sync runs against one database.
type Fetcher struct {
	db       *sqlx.DB
	tickets  *repository.TicketRepository
	syncLogs *repository.SyncLogRepository
	settings settingsReader
	mailCfg  config.MailConfig
	dial     func(connector.Account) (imapSession, error)
	logger   *log.Logger
	now      func() time.Time

	newBlobStore func(dir string) (attachment.BlobStore, error)
}

// FetcherOption customizes a Fetcher.
type FetcherOption func(*Fetcher)

// WithLogger overrides the logger used for run diagnostics.
func WithLogger(logger *log.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithDialer overrides the IMAP dialer.
func WithDialer(dialer *connector.Dialer) FetcherOption {
	return func(f *Fetcher) {
		if dialer != nil {
			f.dial = func(account connector.Account) (imapSession, error) {
				return dialer.Dial(account)
			}
		}
	}
}

func withSessionFactory(dial func(connector.Account) (imapSession, error)) FetcherOption {
	return func(f *Fetcher) {
		f.dial = dial
	}
}

// WithClock overrides the wall clock, primarily for tests.
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// WithBlobStoreFactory overrides how the attachment blob store is
// opened, primarily for tests.
func WithBlobStoreFactory(factory func(dir string) (attachment.BlobStore, error)) FetcherOption {
	return func(f *Fetcher) {
		if factory != nil {
			f.newBlobStore = factory
		}
	}
}

// NewFetcher wires a fetcher over the given stores. Mailbox settings
// come from the settings table with mailCfg as fallback defaults,
// re-resolved at the start of every run.
func NewFetcher(
	db *sqlx.DB,
	tickets *repository.TicketRepository,
	syncLogs *repository.SyncLogRepository,
	settings settingsReader,
	mailCfg config.MailConfig,
	opts ...FetcherOption,
) *Fetcher {
	f := &Fetcher{
		db:       db,
		tickets:  tickets,
		syncLogs: syncLogs,
		settings: settings,
		mailCfg:  mailCfg,
		logger:   log.Default(),
		now:      func() time.Time { return time.Now().UTC() },
		newBlobStore: func(dir string) (attachment.BlobStore, error) {
			return storage.NewLocalStore(dir)
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.dial == nil {
		dialer := connector.NewDialer(
			connector.WithDialTimeout(mailCfg.DialTimeout),
			connector.WithCommandTimeout(mailCfg.CommandTimeout),
			connector.WithLogger(f.logger),
		)
		f.dial = func(account connector.Account) (imapSession, error) {
			return dialer.Dial(account)
		}
	}
	return f
}

// FetchNewEmails performs one sync run. Stage-level failures (connect,
// select, search, fetch, commit) abort the run, are recorded as a
// failure in the sync log, and surface as the returned error.
// Per-message failures are logged, counted in the result, and never
// abort the batch.
func (f *Fetcher) FetchNewEmails(ctx context.Context) (*SyncResult, error) {
	start := f.now()

	rs, err := resolveRunSettings(f.settings, f.mailCfg, f.logger)
	if err != nil {
		return nil, f.fail(start, "", fmt.Errorf("resolve settings: %w", err))
	}

	session, err := f.dial(rs.Account)
	if err != nil {
		return nil, f.fail(start, "", &ConnectionError{Stage: "dial", Err: err})
	}
	defer session.Close()

	if _, err := session.SelectFolder(rs.Account.Mailbox()); err != nil {
		return nil, f.fail(start, "", &ConnectionError{Stage: "select", Err: err})
	}

	markerStr, hasMarker, err := f.syncLogs.LastUID()
	if err != nil {
		return nil, f.fail(start, "", fmt.Errorf("read resume marker: %w", err))
	}
	var marker uint32
	if hasMarker {
		parsed, err := strconv.ParseUint(markerStr, 10, 32)
		if err != nil {
			f.logger.Printf("sync: unusable resume marker %q, searching whole mailbox", markerStr)
			hasMarker = false
		} else {
			marker = uint32(parsed)
		}
	}

	uids, err := session.SearchAfter(marker, hasMarker)
	if err != nil {
		return nil, f.fail(start, markerStr, &ConnectionError{Stage: "search", Err: err})
	}

	if len(uids) == 0 {
		// Nothing new. Carry the marker forward so the window stays
		// incremental on the next run.
		f.logout(session)
		return f.succeed(start, &SyncResult{LastUID: markerStr})
	}

	if rs.MaxEmails > 0 && len(uids) > rs.MaxEmails {
		f.logger.Printf("sync: %d candidates exceed cap %d, keeping newest", len(uids), rs.MaxEmails)
		uids = uids[len(uids)-rs.MaxEmails:]
	}
	highest := uids[len(uids)-1]

	msgs, err := session.FetchPeek(uids)
	if err != nil {
		return nil, f.fail(start, markerStr, &ConnectionError{Stage: "fetch", Err: err})
	}
	// Bodies are in memory now; log out before the translate/commit
	// phase so the connection never sits idle against its command
	// deadline while the database work runs.
	f.logout(session)

	blobs, err := f.newBlobStore(rs.AttachmentDir)
	if err != nil {
		return nil, f.fail(start, markerStr, fmt.Errorf("open attachment store: %w", err))
	}
	extractor := attachment.NewExtractor(blobs, f.tickets, rs.AttachmentMaxSize,
		attachment.WithLogger(f.logger))
	trans := translator.New(f.tickets, extractor,
		translator.WithLogger(f.logger))

	tx, err := f.db.Beginx()
	if err != nil {
		return nil, f.fail(start, markerStr, fmt.Errorf("begin sync transaction: %w", err))
	}

	result := &SyncResult{LastUID: fmt.Sprintf("%d", highest)}
	seen := make(map[string]struct{})
	for _, msg := range msgs {
		if ctx.Err() != nil {
			// Roll back everything so the sync log never claims counts
			// that were not committed.
			f.rollback(tx)
			return nil, f.fail(start, markerStr, fmt.Errorf("sync cancelled: %w", ctx.Err()))
		}
		ticket, err := trans.Translate(tx, msg.Raw, msg.UID, seen)
		switch {
		case errors.Is(err, translator.ErrDuplicate):
			result.Duplicates++
		case err != nil:
			result.Failed++
			metrics.MessageFailures.Inc()
			f.logger.Printf("sync: message uid %d failed: %v", msg.UID, err)
		default:
			result.EmailsFetched++
			metrics.EmailsFetched.Inc()
			f.logger.Printf("sync: uid %d -> ticket %s", msg.UID, ticket.TicketNumber)
		}
	}

	if err := tx.Commit(); err != nil {
		f.rollback(tx)
		return nil, f.fail(start, markerStr, &CommitError{Err: err})
	}

	return f.succeed(start, result)
}

// TestConnection probes connect, select and logout without searching
// or fetching anything.
func (f *Fetcher) TestConnection(ctx context.Context) (*TestResult, error) {
	rs, err := resolveRunSettings(f.settings, f.mailCfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("resolve settings: %w", err)
	}
	session, err := f.dial(rs.Account)
	if err != nil {
		return &TestResult{Status: "error", Message: err.Error()}, nil
	}
	defer session.Close()

	count, err := session.SelectFolder(rs.Account.Mailbox())
	if err != nil {
		return &TestResult{Status: "error", Message: err.Error()}, nil
	}
	f.logout(session)
	return &TestResult{
		Status:   "success",
		Message:  fmt.Sprintf("connected to %s, folder %s has %d messages", rs.Account.Address(), rs.Account.Mailbox(), count),
		Messages: count,
	}, nil
}

// Folders lists the mailbox folders visible to the configured account.
func (f *Fetcher) Folders(ctx context.Context) ([]string, error) {
	rs, err := resolveRunSettings(f.settings, f.mailCfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("resolve settings: %w", err)
	}
	session, err := f.dial(rs.Account)
	if err != nil {
		return nil, &ConnectionError{Stage: "dial", Err: err}
	}
	defer session.Close()

	folders, err := session.Folders()
	if err != nil {
		return nil, &ConnectionError{Stage: "list", Err: err}
	}
	f.logout(session)
	return folders, nil
}

// SeedSettings populates the settings table from the config-file
// defaults without overwriting existing rows.
func (f *Fetcher) SeedSettings(settings *repository.SettingsRepository) error {
	return settings.EnsureDefaults(defaultSettings(f.mailCfg))
}

func (f *Fetcher) succeed(start time.Time, result *SyncResult) (*SyncResult, error) {
	result.Duration = f.now().Sub(start)
	result.Status = models.SyncStatusSuccess
	if _, err := f.syncLogs.LogSync(result.EmailsFetched, models.SyncStatusSuccess, "", result.LastUID, result.Duration); err != nil {
		f.logger.Printf("sync: recording sync log failed: %v", err)
	}
	metrics.SyncRuns.WithLabelValues(models.SyncStatusSuccess).Inc()
	f.logger.Printf("sync: done, fetched=%d duplicates=%d failed=%d duration=%s",
		result.EmailsFetched, result.Duplicates, result.Failed, result.Duration)
	return result, nil
}

// fail records a failure entry and returns the causing error. The
// marker recorded on failure is informational only; resume windows are
// computed from successful entries exclusively.
func (f *Fetcher) fail(start time.Time, marker string, cause error) error {
	duration := f.now().Sub(start)
	if _, err := f.syncLogs.LogSync(0, models.SyncStatusFailure, cause.Error(), marker, duration); err != nil {
		f.logger.Printf("sync: recording failure log failed: %v", err)
	}
	metrics.SyncRuns.WithLabelValues(models.SyncStatusFailure).Inc()
	f.logger.Printf("sync: failed after %s: %v", duration, cause)
	return cause
}

func (f *Fetcher) logout(session imapSession) {
	if err := session.Logout(); err != nil {
		f.logger.Printf("sync: logout failed: %v", err)
	}
}

func (f *Fetcher) rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil {
		f.logger.Printf("sync: rollback failed: %v", err)
	}
}
