package connector

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

type imapClient interface {
	Login(username, password string) commandWaiter
	Logout() commandWaiter
	Close() error
	Select(mailbox string, options *imap.SelectOptions) selectWaiter
	UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter
	Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter
	List(ref, pattern string, options *imap.ListOptions) listWaiter
}

type commandWaiter interface{ Wait() error }
type selectWaiter interface {
	Wait() (*imap.SelectData, error)
}
type searchWaiter interface {
	Wait() (*imap.SearchData, error)
}
type fetchWaiter interface {
	Collect() ([]*imapclient.FetchMessageBuffer, error)
	Close() error
}
type listWaiter interface {
	Collect() ([]*imap.ListData, error)
}

// Dialer opens authenticated IMAP sessions.
type Dialer struct {
	dialTimeout    time.Duration
	commandTimeout time.Duration
	logger         *log.Logger
	newClient      func(Account) (imapClient, error)
}

// DialerOption customizes a Dialer.
type DialerOption func(*Dialer)

// NewDialer returns a dialer ready to open sessions.
func NewDialer(opts ...DialerOption) *Dialer {
	d := &Dialer{
		dialTimeout:    30 * time.Second,
		commandTimeout: 60 * time.Second,
		logger:         log.Default(),
	}
	d.newClient = d.defaultClientFactory
	for _, opt := range opts {
		opt(d)
	}
	if d.newClient == nil {
		d.newClient = d.defaultClientFactory
	}
	return d
}

// WithDialTimeout overrides the socket dial timeout.
func WithDialTimeout(timeout time.Duration) DialerOption {
	return func(d *Dialer) {
		if timeout > 0 {
			d.dialTimeout = timeout
		}
	}
}

// WithCommandTimeout bounds every read and write on the connection, so
// a stalled server fails the in-flight command instead of hanging it.
// Zero disables the bound.
func WithCommandTimeout(timeout time.Duration) DialerOption {
	return func(d *Dialer) {
		if timeout >= 0 {
			d.commandTimeout = timeout
		}
	}
}

// WithLogger overrides the logger used for connector diagnostics.
func WithLogger(logger *log.Logger) DialerOption {
	return func(d *Dialer) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClientFactory overrides how raw IMAP clients are created,
// primarily for tests.
func WithClientFactory(factory func(Account) (imapClient, error)) DialerOption {
	return func(d *Dialer) {
		d.newClient = factory
	}
}

// Dial connects and authenticates, returning a live session. The
// caller must Close the session when done.
func (d *Dialer) Dial(account Account) (*Session, error) {
	if err := validateAccount(account); err != nil {
		return nil, err
	}
	client, err := d.newClient(account)
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", account.Address(), err)
	}
	if err := client.Login(account.Username, account.Password).Wait(); err != nil {
		d.safeClose(client)
		return nil, fmt.Errorf("imap auth %s: %w", account.Username, err)
	}
	return &Session{client: client, logger: d.logger}, nil
}

func (d *Dialer) safeClose(client imapClient) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil && d.logger != nil {
		d.logger.Printf("imap close error: %v", err)
	}
}

func (d *Dialer) defaultClientFactory(account Account) (imapClient, error) {
	dialer := &net.Dialer{Timeout: d.dialTimeout}
	var conn net.Conn
	var err error
	if account.UseSSL {
		conn, err = tls.DialWithDialer(dialer, "tcp", account.Address(),
			&tls.Config{ServerName: account.Host})
	} else {
		conn, err = dialer.Dial("tcp", account.Address())
	}
	if err != nil {
		return nil, err
	}
	if d.commandTimeout > 0 {
		conn = &deadlineConn{Conn: conn, timeout: d.commandTimeout}
	}
	return &imapClientWrapper{Client: imapclient.New(conn, &imapclient.Options{})}, nil
}

// deadlineConn pushes the connection deadline forward on every read and
// write, so no single stalled command can block past timeout.
type deadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(p)
}

// Session is an authenticated IMAP connection.
type Session struct {
	client imapClient
	logger *log.Logger
}

// SelectFolder opens a mailbox and reports how many messages it holds.
func (s *Session) SelectFolder(mailbox string) (uint32, error) {
	data, err := s.client.Select(mailbox, nil).Wait()
	if err != nil {
		return 0, fmt.Errorf("imap select %s: %w", mailbox, err)
	}
	return data.NumMessages, nil
}

// SearchAfter returns the UIDs strictly greater than marker, ascending.
// With hasMarker false it returns every UID in the selected mailbox.
func (s *Session) SearchAfter(marker uint32, hasMarker bool) ([]imap.UID, error) {
	criteria := &imap.SearchCriteria{}
	if hasMarker {
		criteria.UID = []imap.UIDSet{
			{imap.UIDRange{Start: imap.UID(marker + 1), Stop: 0}},
		}
	}
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	uids := data.AllUIDs()
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	return uids, nil
}

// FetchPeek retrieves the full raw bodies of the given UIDs without
// setting the \Seen flag.
func (s *Session) FetchPeek(uids []imap.UID) ([]RawMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{bodySection},
	}
	buffers, err := s.client.Fetch(imap.UIDSetNum(uids...), fetchOpts).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}
	out := make([]RawMessage, 0, len(buffers))
	for _, buf := range buffers {
		body := buf.FindBodySection(bodySection)
		if body == nil {
			s.logger.Printf("imap fetch: uid %d returned no body section", buf.UID)
			continue
		}
		out = append(out, RawMessage{
			UID:          buf.UID,
			InternalDate: buf.InternalDate,
			Raw:          append([]byte(nil), body...),
		})
	}
	return out, nil
}

// Folders lists the mailbox names visible to the account.
func (s *Session) Folders() ([]string, error) {
	data, err := s.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap list: %w", err)
	}
	names := make([]string, 0, len(data))
	for _, mbox := range data {
		names = append(names, mbox.Mailbox)
	}
	sort.Strings(names)
	return names, nil
}

// Logout ends the session cleanly.
func (s *Session) Logout() error {
	if err := s.client.Logout().Wait(); err != nil {
		return fmt.Errorf("imap logout: %w", err)
	}
	return nil
}

// Close tears down the connection, logging rather than returning any
// error since it runs on already-failing paths.
func (s *Session) Close() {
	if err := s.client.Close(); err != nil && s.logger != nil {
		s.logger.Printf("imap close error: %v", err)
	}
}

type imapClientWrapper struct{ *imapclient.Client }

func (w *imapClientWrapper) Login(username, password string) commandWaiter {
	return w.Client.Login(username, password)
}
func (w *imapClientWrapper) Logout() commandWaiter { return w.Client.Logout() }
func (w *imapClientWrapper) Select(mailbox string, options *imap.SelectOptions) selectWaiter {
	return w.Client.Select(mailbox, options)
}
func (w *imapClientWrapper) UIDSearch(criteria *imap.SearchCriteria, options *imap.SearchOptions) searchWaiter {
	return w.Client.UIDSearch(criteria, options)
}
func (w *imapClientWrapper) Fetch(numSet imap.NumSet, options *imap.FetchOptions) fetchWaiter {
	return w.Client.Fetch(numSet, options)
}
func (w *imapClientWrapper) List(ref, pattern string, options *imap.ListOptions) listWaiter {
	return w.Client.List(ref, pattern, options)
}

func validateAccount(account Account) error {
	if account.Host == "" {
		return errors.New("imap account missing host")
	}
	if account.Username == "" {
		return errors.New("imap account missing username")
	}
	if account.Password == "" {
		return errors.New("imap account missing password")
	}
	return nil
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}
