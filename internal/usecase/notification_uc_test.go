//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/domain/ports/adapter"
	"briefly60-subscription/internal/domain/ports/repository"
	"briefly60-subscription/internal/usecase"
)

func seedRecipient(ctx context.Context, users *mockUserRepo) {
	_ = users.Save(ctx, repository.NoTX, &model.User{
		ID:    "user-1",
		Email: "reader@example.com",
		Name:  "Reader",
		Role:  model.UserRoleUser,
	})
}

// Payload values mirror what a JSONB round trip produces: numbers as
// float64, times as RFC3339 strings.
func confirmationEvent(id string) *model.OutboxEvent {
	return &model.OutboxEvent{
		ID:             id,
		Kind:           model.NotificationKindConfirmation,
		UserID:         "user-1",
		SubscriptionID: "sub-1",
		Payload: map[string]any{
			"plan_id":        "monthly",
			"plan_name":      "Monthly Plan",
			"amount":         float64(50),
			"currency":       "BDT",
			"start_date":     time.Now().Format(time.RFC3339),
			"end_date":       time.Now().AddDate(0, 1, 0).Format(time.RFC3339),
			"transaction_id": "SUB-T1",
		},
		CreatedAt: time.Now(),
	}
}

func TestNotificationUseCase_DispatchPending(t *testing.T) {
	ctx := context.Background()

	t.Run("should send the confirmation email and mark the event sent", func(t *testing.T) {
		// --- Arrange ---
		outbox := newMockOutboxRepo()
		users := newMockUserRepo()
		mailer := &mockMailer{}
		seedRecipient(ctx, users)
		_ = outbox.Enqueue(ctx, repository.NoTX, confirmationEvent("ev-1"))

		uc := usecase.NewNotificationUseCase(outbox, users, mailer, newTestLogger())

		// --- Act ---
		sent, err := uc.DispatchPending(ctx, 10)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if sent != 1 || mailer.count() != 1 {
			t.Fatalf("expected 1 email sent, got sent=%d mailed=%d", sent, mailer.count())
		}
		email := mailer.sent[0]
		if email.To != "reader@example.com" {
			t.Errorf("unexpected recipient %q", email.To)
		}
		if !strings.Contains(email.Subject, "Monthly Plan") {
			t.Errorf("subject should name the plan, got %q", email.Subject)
		}
		if !strings.Contains(email.TextBody, "50 BDT") {
			t.Errorf("body should state the amount, got %q", email.TextBody)
		}
		if events := outbox.all(); events[0].SentAt == nil {
			t.Error("dispatched event must be marked sent")
		}
	})

	t.Run("should send the expiry reminder", func(t *testing.T) {
		// --- Arrange ---
		outbox := newMockOutboxRepo()
		users := newMockUserRepo()
		mailer := &mockMailer{}
		seedRecipient(ctx, users)
		_ = outbox.Enqueue(ctx, repository.NoTX, &model.OutboxEvent{
			ID:             "ev-1",
			Kind:           model.NotificationKindExpiryReminder,
			UserID:         "user-1",
			SubscriptionID: "sub-1",
			Payload: map[string]any{
				"plan_name": "Monthly Plan",
				"end_date":  time.Now().Add(48 * time.Hour).Format(time.RFC3339),
			},
			CreatedAt: time.Now(),
		})

		uc := usecase.NewNotificationUseCase(outbox, users, mailer, newTestLogger())

		// --- Act ---
		sent, err := uc.DispatchPending(ctx, 10)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if sent != 1 || mailer.count() != 1 {
			t.Fatalf("expected 1 email sent, got sent=%d mailed=%d", sent, mailer.count())
		}
		if tag := mailer.sent[0].Tag; tag != "expiry-reminder" {
			t.Errorf("unexpected tag %q", tag)
		}
	})

	t.Run("should bump attempts and retry later when sending fails", func(t *testing.T) {
		// --- Arrange ---
		outbox := newMockOutboxRepo()
		users := newMockUserRepo()
		mailer := &mockMailer{}
		seedRecipient(ctx, users)
		_ = outbox.Enqueue(ctx, repository.NoTX, confirmationEvent("ev-1"))
		mailer.SendFunc = func(context.Context, adapter.Email) error {
			return errors.New("postmark: 503")
		}

		uc := usecase.NewNotificationUseCase(outbox, users, mailer, newTestLogger())

		// --- Act: first pass fails ---
		sent, err := uc.DispatchPending(ctx, 10)
		if err != nil {
			t.Fatalf("per-event errors must be absorbed, got: %v", err)
		}
		if sent != 0 {
			t.Fatalf("expected nothing sent, got %d", sent)
		}
		ev := outbox.all()[0]
		if ev.Attempts != 1 || ev.SentAt != nil {
			t.Errorf("expected attempts=1 and unsent, got attempts=%d sent_at=%v", ev.Attempts, ev.SentAt)
		}

		// --- Act: mailer recovers, the event goes out on the next pass ---
		mailer.SendFunc = nil
		sent, err = uc.DispatchPending(ctx, 10)
		if err != nil || sent != 1 {
			t.Fatalf("expected the retry to deliver, got sent=%d err=%v", sent, err)
		}
		if outbox.all()[0].SentAt == nil {
			t.Error("retried event must be marked sent")
		}
	})

	t.Run("should absorb an event of unknown kind without blocking others", func(t *testing.T) {
		// --- Arrange ---
		outbox := newMockOutboxRepo()
		users := newMockUserRepo()
		mailer := &mockMailer{}
		seedRecipient(ctx, users)
		_ = outbox.Enqueue(ctx, repository.NoTX, &model.OutboxEvent{
			ID:             "ev-bad",
			Kind:           model.NotificationKind("carrier_pigeon"),
			UserID:         "user-1",
			SubscriptionID: "sub-1",
			CreatedAt:      time.Now(),
		})
		good := confirmationEvent("ev-good")
		good.SubscriptionID = "sub-2"
		_ = outbox.Enqueue(ctx, repository.NoTX, good)

		uc := usecase.NewNotificationUseCase(outbox, users, mailer, newTestLogger())

		// --- Act ---
		sent, err := uc.DispatchPending(ctx, 10)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if sent != 1 || mailer.count() != 1 {
			t.Fatalf("expected the valid event to go out, got sent=%d mailed=%d", sent, mailer.count())
		}
	})
}
