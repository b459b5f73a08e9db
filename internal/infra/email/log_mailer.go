package email

import (
	"context"

	"github.com/rs/zerolog"

	"briefly60-subscription/internal/domain/ports/adapter"
)

var _ adapter.Mailer = (*LogMailer)(nil)

// LogMailer writes the message to the log instead of sending it. Used in
// development when no Postmark token is configured.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log.With().Str("component", "log_mailer").Logger()}
}

func (m *LogMailer) Send(_ context.Context, e adapter.Email) error {
	m.log.Info().
		Str("to", e.To).
		Str("subject", e.Subject).
		Str("tag", e.Tag).
		Msg("email suppressed (dev mode)")
	return nil
}
