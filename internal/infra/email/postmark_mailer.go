package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"

	"briefly60-subscription/internal/domain/ports/adapter"
)

var ErrFailedToSend = errors.New("failed to send email")

var _ adapter.Mailer = (*PostmarkMailer)(nil)

// PostmarkMailer sends transactional mail through Postmark.
type PostmarkMailer struct {
	client *postmark.Client
	from   string
}

func NewPostmarkMailer(serverToken, accountToken, from string) (*PostmarkMailer, error) {
	if serverToken == "" {
		return nil, errors.New("postmark server token is required")
	}
	if from == "" {
		return nil, errors.New("sender address is required")
	}
	return &PostmarkMailer{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}, nil
}

func (m *PostmarkMailer) Send(ctx context.Context, e adapter.Email) error {
	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:       m.from,
		To:         e.To,
		Subject:    e.Subject,
		Tag:        e.Tag,
		HTMLBody:   e.HTMLBody,
		TextBody:   e.TextBody,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrFailedToSend, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSend,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
