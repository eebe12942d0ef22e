package mail

import "fmt"

// ConnectionError marks failures reaching or speaking to the IMAP
// server, as opposed to failures in local processing or persistence.
type ConnectionError struct {
	Stage string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("imap %s: %v", e.Stage, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommitError marks a failed transaction commit: no tickets from the
// run were persisted even though individual messages converted cleanly.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit sync transaction: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
