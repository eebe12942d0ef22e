// Package tasks holds the concrete background tasks the runner
// schedules.
package tasks

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/inboxdesk/inboxdesk/internal/mail"
	"github.com/inboxdesk/inboxdesk/internal/runner"
)

// syncRunner is the slice of mail.Fetcher this task drives.
type syncRunner interface {
	FetchNewEmails(ctx context.Context) (*mail.SyncResult, error)
}

// MailSyncTask polls the configured mailbox on a schedule. Overlapping
// runs against the same mailbox would double-process the search window
// before the sync log advances, so an iteration that fires while the
// previous one is still running is skipped.
type MailSyncTask struct {
	fetcher  syncRunner
	schedule string
	timeout  time.Duration
	logger   *log.Logger
	running  atomic.Bool
}

func NewMailSyncTask(fetcher syncRunner, schedule string, timeout time.Duration) runner.Task {
	if schedule == "" {
		schedule = "0 */5 * * * *"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &MailSyncTask{
		fetcher:  fetcher,
		schedule: schedule,
		timeout:  timeout,
		logger:   log.New(log.Writer(), "[MAIL-SYNC] ", log.LstdFlags),
	}
}

func (t *MailSyncTask) Name() string { return "mail-sync" }

func (t *MailSyncTask) Schedule() string { return t.schedule }

func (t *MailSyncTask) Timeout() time.Duration { return t.timeout }

// Run performs one sync run unless one is already in flight.
func (t *MailSyncTask) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		t.logger.Println("previous sync still running, skipping this iteration")
		return nil
	}
	defer t.running.Store(false)

	result, err := t.fetcher.FetchNewEmails(ctx)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		t.logger.Printf("sync completed with %d message failure(s), fetched %d", result.Failed, result.EmailsFetched)
	}
	return nil
}
