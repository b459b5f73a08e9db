package model

import (
	"time"

	"briefly60-subscription/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Terminal reports whether no further payment transition is allowed.
// A completed payment is terminal for Fail but not for refunds.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusFailed    SubscriptionStatus = "failed"
)

// PaymentInfo holds the gateway-side details of the purchase.
type PaymentInfo struct {
	Gateway       string        `json:"gateway"`
	TransactionID string        `json:"transaction_id"`
	AmountPaid    int64         `json:"amount_paid"`
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"payment_status"`
	ValID         string        `json:"val_id,omitempty"`
	CardType      string        `json:"card_type,omitempty"`
	CardBrand     string        `json:"card_brand,omitempty"`
	CardIssuer    string        `json:"card_issuer,omitempty"`
	BankTranID    string        `json:"bank_tran_id,omitempty"`
	StoreAmount   int64         `json:"store_amount,omitempty"`
	PaymentDate   *time.Time    `json:"payment_date,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// Subscription is one purchase of a plan by one user. The plan terms are
// snapshotted at purchase time; at most one subscription per user may be
// active at once.
type Subscription struct {
	ID                 string // UUID
	UserID             string // UUID
	PlanID             string // plan slug at purchase time
	Plan               PlanSnapshot
	StartDate          time.Time
	EndDate            time.Time
	IsActive           bool
	AutoRenew          bool
	CancelledAt        *time.Time
	CancellationReason string
	Payment            PaymentInfo
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewPendingSubscription builds the initial inactive record for a checkout.
// EndDate is derived from the plan duration with end-of-month clamping.
func NewPendingSubscription(id, userID string, plan *Plan, transactionID string, amount int64, autoRenew bool) (*Subscription, error) {
	if id == "" || userID == "" || transactionID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:        id,
		UserID:    userID,
		PlanID:    plan.ID,
		Plan:      plan.Snapshot(),
		StartDate: now,
		EndDate:   AddMonths(now, plan.DurationMonths),
		IsActive:  false,
		AutoRenew: autoRenew,
		Payment: PaymentInfo{
			Gateway:       "sslcommerz",
			TransactionID: transactionID,
			AmountPaid:    amount,
			Currency:      plan.Currency,
			Status:        PaymentStatusPending,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Status derives the lifecycle state from the persisted fields.
func (s *Subscription) Status(now time.Time) SubscriptionStatus {
	switch s.Payment.Status {
	case PaymentStatusPending:
		return SubscriptionStatusPending
	case PaymentStatusFailed:
		return SubscriptionStatusFailed
	case PaymentStatusCancelled, PaymentStatusRefunded:
		return SubscriptionStatusCancelled
	}
	// payment completed
	if s.IsActive && now.Before(s.EndDate) {
		return SubscriptionStatusActive
	}
	if s.CancelledAt != nil && s.CancellationReason != "Subscription expired" && now.Before(s.EndDate) {
		return SubscriptionStatusCancelled
	}
	return SubscriptionStatusExpired
}

// AddMonths advances t by the given number of calendar months, clamping to
// the last valid day of the target month. Jan 31 + 1 month is Feb 28 (or 29),
// never a normalized date in March.
func AddMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := daysIn(target.Year(), target.Month())
	if d > last {
		d = last
	}
	return time.Date(target.Year(), target.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysRemaining is the whole number of days until end, rounded up and
// clamped at zero. It reaches 0 the instant end passes and is never
// negative.
func DaysRemaining(end, now time.Time) int {
	diff := end.Sub(now)
	if diff <= 0 {
		return 0
	}
	days := int(diff / (24 * time.Hour))
	if diff%(24*time.Hour) != 0 {
		days++
	}
	return days
}

// StatusView is the read projection served by the status API.
type StatusView struct {
	HasActiveSubscription bool             `json:"has_active_subscription"`
	Subscription          *StatusViewEntry `json:"subscription,omitempty"`
}

type StatusViewEntry struct {
	ID            string        `json:"id"`
	Plan          string        `json:"plan"`
	PlanName      string        `json:"plan_name"`
	StartDate     time.Time     `json:"start_date"`
	EndDate       time.Time     `json:"end_date"`
	IsActive      bool          `json:"is_active"`
	AutoRenew     bool          `json:"auto_renew"`
	DaysRemaining int           `json:"days_remaining"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Amount        int64         `json:"amount"`
}
