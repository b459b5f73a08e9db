package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"briefly60-subscription/internal/domain"
	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/domain/ports/repository"
)

// PlanUseCase manages the plan catalog. Plans are soft-archived, never
// deleted, so subscription snapshots stay interpretable.
type PlanUseCase struct {
	repo repository.PlanRepository
	log  *zerolog.Logger
}

func NewPlanUseCase(repo repository.PlanRepository, logger *zerolog.Logger) *PlanUseCase {
	l := logger.With().Str("component", "PlanUC").Logger()
	return &PlanUseCase{repo: repo, log: &l}
}

// ListActive returns active plans ordered by duration; an empty catalog is
// a valid result.
func (uc *PlanUseCase) ListActive(ctx context.Context) ([]*model.Plan, error) {
	plans, err := uc.repo.ListActive(ctx, repository.NoTX)
	if err != nil && err != domain.ErrNotFound {
		return nil, err
	}
	return plans, nil
}

// ListPopular returns the active plans flagged popular.
func (uc *PlanUseCase) ListPopular(ctx context.Context) ([]*model.Plan, error) {
	plans, err := uc.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.Plan
	for _, p := range plans {
		if p.Popular {
			out = append(out, p)
		}
	}
	return out, nil
}

func (uc *PlanUseCase) ListAll(ctx context.Context) ([]*model.Plan, error) {
	return uc.repo.ListAll(ctx, repository.NoTX)
}

// GetActive returns a single active plan or ErrNotFound.
func (uc *PlanUseCase) GetActive(ctx context.Context, id string) (*model.Plan, error) {
	return uc.repo.FindActiveByID(ctx, repository.NoTX, id)
}

// Create adds a new plan under a fresh slug.
func (uc *PlanUseCase) Create(ctx context.Context, id, name string, price, originalPrice int64, currency string, durationMonths int, features []string, popular bool) (*model.Plan, error) {
	if existing, err := uc.repo.FindByID(ctx, repository.NoTX, id); err == nil && !existing.IsZero() {
		return nil, domain.ErrAlreadyExists
	}
	plan, err := model.NewPlan(id, name, price, originalPrice, currency, durationMonths, features, popular)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.Save(ctx, repository.NoTX, plan); err != nil {
		return nil, err
	}
	uc.log.Info().Str("plan_id", plan.ID).Msg("plan created")
	return plan, nil
}

// UpdateInput carries the editable plan fields. Nil pointers mean "leave
// unchanged".
type UpdateInput struct {
	Name           *string
	Price          *int64
	OriginalPrice  *int64
	DurationMonths *int
	Features       []string
}

// Update edits a plan. The version is bumped only when the price actually
// changes; cosmetic edits keep the version, so version history tracks
// pricing specifically.
func (uc *PlanUseCase) Update(ctx context.Context, id string, in UpdateInput) (*model.Plan, error) {
	plan, err := uc.repo.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		plan.Name = *in.Name
	}
	if in.Price != nil && *in.Price != plan.Price {
		plan.Price = *in.Price
		plan.Version++
	}
	if in.OriginalPrice != nil {
		plan.OriginalPrice = *in.OriginalPrice
	}
	if in.DurationMonths != nil {
		if *in.DurationMonths <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		plan.DurationMonths = *in.DurationMonths
	}
	if in.Features != nil {
		plan.Features = in.Features
	}
	plan.UpdatedAt = time.Now()
	if err := uc.repo.Save(ctx, repository.NoTX, plan); err != nil {
		return nil, err
	}
	uc.log.Info().Str("plan_id", id).Int("version", plan.Version).Msg("plan updated")
	return plan, nil
}

// Archive retires a plan from sale. Existing subscriptions keep their
// snapshots; the row itself survives.
func (uc *PlanUseCase) Archive(ctx context.Context, id string) error {
	return uc.setActive(ctx, id, false)
}

// Reactivate puts an archived plan back on sale.
func (uc *PlanUseCase) Reactivate(ctx context.Context, id string) error {
	return uc.setActive(ctx, id, true)
}

func (uc *PlanUseCase) setActive(ctx context.Context, id string, active bool) error {
	plan, err := uc.repo.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return err
	}
	if plan.IsActive == active {
		return nil
	}
	plan.IsActive = active
	plan.UpdatedAt = time.Now()
	if err := uc.repo.Save(ctx, repository.NoTX, plan); err != nil {
		return err
	}
	uc.log.Info().Str("plan_id", id).Bool("is_active", active).Msg("plan availability changed")
	return nil
}

// TogglePopular flips the popular badge and returns the new value.
func (uc *PlanUseCase) TogglePopular(ctx context.Context, id string) (bool, error) {
	plan, err := uc.repo.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return false, err
	}
	plan.Popular = !plan.Popular
	plan.UpdatedAt = time.Now()
	if err := uc.repo.Save(ctx, repository.NoTX, plan); err != nil {
		return false, err
	}
	return plan.Popular, nil
}
