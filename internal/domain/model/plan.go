package model

import (
	"time"

	"briefly60-subscription/internal/domain"
)

// Plan is a purchasable subscription plan. The ID is a stable slug
// ("monthly", "half_yearly", "yearly") referenced by subscriptions;
// plans are never hard-deleted so that historical snapshots stay
// interpretable.
type Plan struct {
	ID             string   // stable slug, e.g. "monthly"
	Name           string
	Price          int64    // BDT, whole taka
	OriginalPrice  int64    // pre-discount price shown to users; 0 means same as Price
	Currency       string   // "BDT"
	DurationMonths int
	Features       []string
	Popular        bool
	IsActive       bool
	Version        int // incremented on every price change
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs an active plan at version 1.
func NewPlan(id, name string, price, originalPrice int64, currency string, durationMonths int, features []string, popular bool) (*Plan, error) {
	if id == "" || name == "" || price < 0 || durationMonths <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = "BDT"
	}
	if originalPrice == 0 {
		originalPrice = price
	}
	now := time.Now()
	return &Plan{
		ID:             id,
		Name:           name,
		Price:          price,
		OriginalPrice:  originalPrice,
		Currency:       currency,
		DurationMonths: durationMonths,
		Features:       features,
		Popular:        popular,
		IsActive:       true,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Snapshot copies the plan's commercial terms for embedding into a
// subscription at purchase time. The copy is immutable by construction:
// later plan edits never touch it.
func (p *Plan) Snapshot() PlanSnapshot {
	features := make([]string, len(p.Features))
	copy(features, p.Features)
	return PlanSnapshot{
		PlanID:         p.ID,
		Name:           p.Name,
		Price:          p.Price,
		OriginalPrice:  p.OriginalPrice,
		Currency:       p.Currency,
		DurationMonths: p.DurationMonths,
		Features:       features,
	}
}

// PlanSnapshot is the immutable copy of a plan's terms stored inside a
// subscription.
type PlanSnapshot struct {
	PlanID         string   `json:"plan_id"`
	Name           string   `json:"name"`
	Price          int64    `json:"price"`
	OriginalPrice  int64    `json:"original_price"`
	Currency       string   `json:"currency"`
	DurationMonths int      `json:"duration_months"`
	Features       []string `json:"features"`
}
