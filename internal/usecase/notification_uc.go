package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/domain/ports/adapter"
	"briefly60-subscription/internal/domain/ports/repository"
	"briefly60-subscription/internal/infra/metrics"
)

// NotificationUseCase drains the outbox and sends email. Send failures are
// logged and retried on the next pass; they never propagate to whoever
// triggered the notification.
type NotificationUseCase struct {
	outbox repository.OutboxRepository
	users  repository.UserRepository
	mailer adapter.Mailer
	log    *zerolog.Logger
}

func NewNotificationUseCase(
	outbox repository.OutboxRepository,
	users repository.UserRepository,
	mailer adapter.Mailer,
	logger *zerolog.Logger,
) *NotificationUseCase {
	l := logger.With().Str("component", "NotificationUC").Logger()
	return &NotificationUseCase{outbox: outbox, users: users, mailer: mailer, log: &l}
}

// DispatchPending sends up to limit queued notifications and returns how
// many went out. Only listing errors are returned; per-event errors are
// absorbed.
func (uc *NotificationUseCase) DispatchPending(ctx context.Context, limit int) (int, error) {
	events, err := uc.outbox.ListUnsent(ctx, repository.NoTX, limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, ev := range events {
		if err := uc.dispatch(ctx, ev); err != nil {
			metrics.IncNotification(string(ev.Kind), "error")
			uc.log.Warn().Err(err).Str("event_id", ev.ID).Str("kind", string(ev.Kind)).
				Msg("notification send failed")
			if err := uc.outbox.IncAttempts(ctx, repository.NoTX, ev.ID); err != nil {
				uc.log.Error().Err(err).Str("event_id", ev.ID).Msg("attempt bump failed")
			}
			continue
		}
		metrics.IncNotification(string(ev.Kind), "sent")
		if err := uc.outbox.MarkSent(ctx, repository.NoTX, ev.ID, time.Now()); err != nil {
			uc.log.Error().Err(err).Str("event_id", ev.ID).Msg("mark sent failed")
			continue
		}
		sent++
	}
	return sent, nil
}

func (uc *NotificationUseCase) dispatch(ctx context.Context, ev *model.OutboxEvent) error {
	user, err := uc.users.FindByID(ctx, repository.NoTX, ev.UserID)
	if err != nil {
		return fmt.Errorf("load recipient: %w", err)
	}
	var email adapter.Email
	switch ev.Kind {
	case model.NotificationKindConfirmation:
		email = confirmationEmail(user, ev.Payload)
	case model.NotificationKindExpiryReminder:
		email = expiryReminderEmail(user, ev.Payload)
	default:
		return fmt.Errorf("unknown notification kind %q", ev.Kind)
	}
	return uc.mailer.Send(ctx, email)
}

func confirmationEmail(user *model.User, payload map[string]any) adapter.Email {
	planName, _ := payload["plan_name"].(string)
	tranID, _ := payload["transaction_id"].(string)
	amount := payloadInt64(payload, "amount")
	currency, _ := payload["currency"].(string)
	start := payloadTime(payload, "start_date")
	end := payloadTime(payload, "end_date")

	subject := fmt.Sprintf("Briefly60 - %s subscription confirmed", planName)
	html := fmt.Sprintf(`<h2>Thank you, %s!</h2>
<p>Your <strong>%s</strong> subscription is now active.</p>
<table>
<tr><td>Amount paid</td><td>%d %s</td></tr>
<tr><td>Start date</td><td>%s</td></tr>
<tr><td>End date</td><td>%s</td></tr>
<tr><td>Transaction</td><td>%s</td></tr>
</table>
<p>Enjoy unlimited, ad-free news summaries.</p>`,
		user.Name, planName, amount, currency,
		start.Format("January 2, 2006"), end.Format("January 2, 2006"), tranID)
	text := fmt.Sprintf("Thank you, %s! Your %s subscription is active until %s. Amount paid: %d %s. Transaction: %s.",
		user.Name, planName, end.Format("January 2, 2006"), amount, currency, tranID)

	return adapter.Email{
		To:       user.Email,
		Subject:  subject,
		HTMLBody: html,
		TextBody: text,
		Tag:      "subscription-confirmation",
	}
}

func expiryReminderEmail(user *model.User, payload map[string]any) adapter.Email {
	planName, _ := payload["plan_name"].(string)
	end := payloadTime(payload, "end_date")
	days := model.DaysRemaining(end, time.Now())

	subject := fmt.Sprintf("Briefly60 - your %s subscription ends in %d day(s)", planName, days)
	html := fmt.Sprintf(`<p>Hi %s,</p>
<p>Your <strong>%s</strong> subscription ends on %s. Renew to keep unlimited access.</p>`,
		user.Name, planName, end.Format("January 2, 2006"))
	text := fmt.Sprintf("Hi %s, your %s subscription ends on %s. Renew to keep unlimited access.",
		user.Name, planName, end.Format("January 2, 2006"))

	return adapter.Email{
		To:       user.Email,
		Subject:  subject,
		HTMLBody: html,
		TextBody: text,
		Tag:      "expiry-reminder",
	}
}

// Outbox payloads round-trip through JSONB, so numbers may come back as
// float64 and times as RFC3339 strings.
func payloadInt64(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func payloadTime(payload map[string]any, key string) time.Time {
	switch v := payload[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
