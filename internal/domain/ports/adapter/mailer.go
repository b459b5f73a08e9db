package adapter

import "context"

// Email is a single outbound message.
type Email struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
	Tag      string
}

// Mailer is the hex port for transactional email. Implementations must be
// safe for concurrent use; callers treat every error as non-fatal.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}
