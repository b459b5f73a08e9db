package repository

import (
	"context"

	"briefly60-subscription/internal/domain/model"
)

// PlanRepository is the port for the plan catalog.
type PlanRepository interface {
	// Save upserts a plan by slug.
	Save(ctx context.Context, tx Tx, plan *model.Plan) error
	// FindByID returns the plan regardless of its active flag.
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	// FindActiveByID returns the plan only while it is active.
	FindActiveByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	// ListActive returns active plans ordered by duration ascending.
	ListActive(ctx context.Context, tx Tx) ([]*model.Plan, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Plan, error)
}
