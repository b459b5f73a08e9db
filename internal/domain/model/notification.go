package model

import "time"

type NotificationKind string

const (
	NotificationKindConfirmation   NotificationKind = "subscription_confirmation"
	NotificationKindExpiryReminder NotificationKind = "expiry_reminder"
)

// OutboxEvent is a pending notification, written in the same transaction as
// the state change it announces. A dedicated worker drains the outbox; send
// failures bump Attempts and are retried, they never roll anything back.
type OutboxEvent struct {
	ID             string // ULID
	Kind           NotificationKind
	UserID         string
	SubscriptionID string
	Payload        map[string]any
	Attempts       int
	CreatedAt      time.Time
	SentAt         *time.Time
}
