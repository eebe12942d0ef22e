package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/inboxdesk/inboxdesk/internal/config"
	"github.com/inboxdesk/inboxdesk/internal/database"
	"github.com/inboxdesk/inboxdesk/internal/mail"
	"github.com/inboxdesk/inboxdesk/internal/metrics"
	"github.com/inboxdesk/inboxdesk/internal/repository"
	"github.com/inboxdesk/inboxdesk/internal/runner"
	"github.com/inboxdesk/inboxdesk/internal/runner/tasks"
	"github.com/inboxdesk/inboxdesk/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var configPathFlag string

var rootCmd = &cobra.Command{
	Use:   "inboxdesk",
	Short: "InboxDesk - turn mailbox traffic into support tickets",
	Long: `InboxDesk polls an IMAP mailbox and converts new messages into
support tickets with attachments, incrementally and without mutating
mailbox state.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one mailbox sync now",
	RunE:  runSync,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the mailbox on the configured schedule until interrupted",
	RunE:  runWatch,
}

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Verify IMAP connectivity: connect, select the folder, log out",
	RunE:  runTestConnection,
}

var foldersCmd = &cobra.Command{
	Use:   "folders",
	Short: "List the folders visible to the configured account",
	RunE:  runFolders,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync runs",
	RunE:  runHistory,
}

var deleteTicketCmd = &cobra.Command{
	Use:   "delete-ticket <id>",
	Short: "Delete a ticket, its attachment rows, and their stored files",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteTicket,
}

var historyLimitFlag int

func init() {
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "Path to config.yaml (defaults to ./config.yaml)")
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Number of entries to show")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(testConnectionCmd)
	rootCmd.AddCommand(foldersCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(deleteTicketCmd)
}

// app bundles everything a command needs after bootstrap.
type app struct {
	cfg      *config.Config
	db       *sqlx.DB
	tickets  *repository.TicketRepository
	syncLogs *repository.SyncLogRepository
	settings *repository.SettingsRepository
	fetcher  *mail.Fetcher
	logger   *log.Logger
}

func bootstrap() (*app, error) {
	cfg, err := config.Load(configPathFlag)
	if err != nil {
		return nil, err
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	logger := log.New(os.Stdout, "[INBOXDESK] ", log.LstdFlags)
	tickets := repository.NewTicketRepository(db)
	syncLogs := repository.NewSyncLogRepository(db)
	settings := repository.NewSettingsRepository(db)
	fetcher := mail.NewFetcher(db, tickets, syncLogs, settings, cfg.Mail,
		mail.WithLogger(logger))
	if err := fetcher.SeedSettings(settings); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed settings: %w", err)
	}

	return &app{
		cfg:      cfg,
		db:       db,
		tickets:  tickets,
		syncLogs: syncLogs,
		settings: settings,
		fetcher:  fetcher,
		logger:   logger,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Printf("closing database: %v", err)
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.fetcher.FetchNewEmails(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("fetched %d, duplicates %d, failed %d in %s\n",
		result.EmailsFetched, result.Duplicates, result.Failed, result.Duration)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			a.logger.Printf("metrics listening on %s", a.cfg.Metrics.Addr)
			if err := http.ListenAndServe(a.cfg.Metrics.Addr, mux); err != nil {
				a.logger.Printf("metrics server: %v", err)
			}
		}()
	}

	registry := runner.NewTaskRegistry()
	task := tasks.NewMailSyncTask(a.fetcher, a.cfg.Sync.Schedule, a.cfg.Sync.Timeout)
	if err := registry.Register(task); err != nil {
		return err
	}
	return runner.NewRunner(registry).Start(context.Background())
}

func runTestConnection(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.fetcher.TestConnection(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", result.Status, result.Message)
	if result.Status != "success" {
		// Returning the error lets deferred cleanup run before the
		// process exits nonzero.
		return errors.New("connection test failed")
	}
	return nil
}

func runFolders(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	folders, err := a.fetcher.Folders(cmd.Context())
	if err != nil {
		return err
	}
	for _, folder := range folders {
		fmt.Println(folder)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	entries, err := a.syncLogs.Recent(historyLimitFlag)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no sync runs recorded")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-7s  fetched=%d", e.SyncTime.Format("2006-01-02 15:04:05"), e.Status, e.EmailsFetched)
		if e.LastUID.Valid {
			line += "  uid=" + e.LastUID.String
		}
		if e.DurationSeconds.Valid {
			line += fmt.Sprintf("  %.2fs", e.DurationSeconds.Float64)
		}
		if e.ErrorMessage.Valid {
			line += "  error: " + e.ErrorMessage.String
		}
		fmt.Println(line)
	}
	return nil
}

func runDeleteTicket(cmd *cobra.Command, args []string) error {
	ticketID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid ticket id %q", args[0])
	}
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	paths, err := a.tickets.Delete(ticketID)
	if err != nil {
		return err
	}
	// Best effort on the backing files; row deletion already committed.
	store, err := storage.NewLocalStore(a.cfg.Mail.AttachmentDir)
	if err == nil {
		for _, path := range paths {
			if err := store.Remove(path); err != nil {
				a.logger.Printf("delete ticket %d: %v", ticketID, err)
			}
		}
	}
	fmt.Printf("deleted ticket %d and %d attachment file(s)\n", ticketID, len(paths))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
