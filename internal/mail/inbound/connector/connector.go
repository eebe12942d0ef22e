// Package connector opens IMAP mailboxes for the inbound pipeline. It
// never mutates server state: fetches peek, nothing is flagged or
// expunged, so the mailbox is readable by other clients throughout.
package connector

import (
	"time"

	"github.com/emersion/go-imap/v2"
)

// Account carries the connection settings a dial needs.
type Account struct {
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
	Folder   string
}

// Address returns the host:port dial target, defaulting the port from
// the TLS mode when unset.
func (a Account) Address() string {
	port := a.Port
	if port == 0 {
		if a.UseSSL {
			port = 993
		} else {
			port = 143
		}
	}
	return joinHostPort(a.Host, port)
}

// Mailbox returns the folder to operate on, defaulting to INBOX.
func (a Account) Mailbox() string {
	if a.Folder == "" {
		return "INBOX"
	}
	return a.Folder
}

// RawMessage is one fetched message as it sits on the server.
type RawMessage struct {
	UID          imap.UID
	InternalDate time.Time
	Raw          []byte
}
