//go:build !integration

package usecase_test

import (
	"context"
	"testing"

	"briefly60-subscription/internal/domain"
	"briefly60-subscription/internal/domain/ports/repository"
	"briefly60-subscription/internal/usecase"
)

func TestPlanUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("should create an active plan at version 1", func(t *testing.T) {
		repo := newMockPlanRepo()
		uc := usecase.NewPlanUseCase(repo, newTestLogger())

		plan, err := uc.Create(ctx, "monthly", "Monthly Plan", 50, 50, "BDT", 1, []string{"Ad-free"}, false)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if !plan.IsActive || plan.Version != 1 {
			t.Errorf("expected active plan at version 1, got active=%t version=%d", plan.IsActive, plan.Version)
		}
	})

	t.Run("should reject a duplicate slug", func(t *testing.T) {
		repo := newMockPlanRepo()
		uc := usecase.NewPlanUseCase(repo, newTestLogger())
		if _, err := uc.Create(ctx, "monthly", "Monthly Plan", 50, 50, "BDT", 1, nil, false); err != nil {
			t.Fatalf("seed create failed: %v", err)
		}

		_, err := uc.Create(ctx, "monthly", "Another Monthly", 60, 60, "BDT", 1, nil, false)
		if err != domain.ErrAlreadyExists {
			t.Fatalf("expected ErrAlreadyExists, got: %v", err)
		}
	})

	t.Run("should reject invalid terms", func(t *testing.T) {
		uc := usecase.NewPlanUseCase(newMockPlanRepo(), newTestLogger())

		if _, err := uc.Create(ctx, "bad", "Bad Plan", 50, 50, "BDT", 0, nil, false); err != domain.ErrInvalidArgument {
			t.Errorf("zero duration: expected ErrInvalidArgument, got: %v", err)
		}
		if _, err := uc.Create(ctx, "bad", "Bad Plan", -1, 0, "BDT", 1, nil, false); err != domain.ErrInvalidArgument {
			t.Errorf("negative price: expected ErrInvalidArgument, got: %v", err)
		}
	})
}

func TestPlanUseCase_Update(t *testing.T) {
	ctx := context.Background()

	newUC := func(t *testing.T) (*usecase.PlanUseCase, *mockPlanRepo) {
		t.Helper()
		repo := newMockPlanRepo()
		uc := usecase.NewPlanUseCase(repo, newTestLogger())
		if _, err := uc.Create(ctx, "monthly", "Monthly Plan", 50, 50, "BDT", 1, []string{"Ad-free"}, false); err != nil {
			t.Fatalf("seed create failed: %v", err)
		}
		return uc, repo
	}

	t.Run("should bump the version only on a price change", func(t *testing.T) {
		uc, _ := newUC(t)
		price := int64(60)

		plan, err := uc.Update(ctx, "monthly", usecase.UpdateInput{Price: &price})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if plan.Price != 60 || plan.Version != 2 {
			t.Errorf("expected price 60 at version 2, got price=%d version=%d", plan.Price, plan.Version)
		}
	})

	t.Run("should keep the version on cosmetic edits", func(t *testing.T) {
		uc, _ := newUC(t)
		name := "Monthly Premium"

		plan, err := uc.Update(ctx, "monthly", usecase.UpdateInput{
			Name:     &name,
			Features: []string{"Ad-free", "Bookmarks"},
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if plan.Version != 1 {
			t.Errorf("cosmetic edit must not bump the version, got %d", plan.Version)
		}
		if plan.Name != "Monthly Premium" || len(plan.Features) != 2 {
			t.Errorf("edits not applied: name=%q features=%v", plan.Name, plan.Features)
		}
	})

	t.Run("should keep the version when the price is unchanged", func(t *testing.T) {
		uc, _ := newUC(t)
		price := int64(50)

		plan, err := uc.Update(ctx, "monthly", usecase.UpdateInput{Price: &price})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if plan.Version != 1 {
			t.Errorf("same-price update must not bump the version, got %d", plan.Version)
		}
	})

	t.Run("should reject a non-positive duration", func(t *testing.T) {
		uc, _ := newUC(t)
		months := 0

		_, err := uc.Update(ctx, "monthly", usecase.UpdateInput{DurationMonths: &months})
		if err != domain.ErrInvalidArgument {
			t.Fatalf("expected ErrInvalidArgument, got: %v", err)
		}
	})
}

func TestPlanUseCase_Archive(t *testing.T) {
	ctx := context.Background()
	repo := newMockPlanRepo()
	uc := usecase.NewPlanUseCase(repo, newTestLogger())
	if _, err := uc.Create(ctx, "monthly", "Monthly Plan", 50, 50, "BDT", 1, nil, false); err != nil {
		t.Fatalf("seed create failed: %v", err)
	}

	// --- Act ---
	if err := uc.Archive(ctx, "monthly"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// --- Assert: row survives, only the active flag flips ---
	if _, err := uc.GetActive(ctx, "monthly"); err != domain.ErrNotFound {
		t.Errorf("archived plan must not be purchasable, got: %v", err)
	}
	plan, err := repo.FindByID(ctx, repository.NoTX, "monthly")
	if err != nil {
		t.Fatalf("archived plan row must survive, got: %v", err)
	}
	if plan.IsActive {
		t.Error("archived plan must be inactive")
	}

	// reactivation puts it back on sale
	if err := uc.Reactivate(ctx, "monthly"); err != nil {
		t.Fatalf("reactivate failed: %v", err)
	}
	if _, err := uc.GetActive(ctx, "monthly"); err != nil {
		t.Errorf("reactivated plan must be purchasable, got: %v", err)
	}
}

func TestPlanUseCase_TogglePopular(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewPlanUseCase(newMockPlanRepo(), newTestLogger())
	if _, err := uc.Create(ctx, "half_yearly", "Six-Month Plan", 250, 300, "BDT", 6, nil, false); err != nil {
		t.Fatalf("seed create failed: %v", err)
	}

	on, err := uc.TogglePopular(ctx, "half_yearly")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !on {
		t.Error("expected popular to flip on")
	}

	popular, err := uc.ListPopular(ctx)
	if err != nil {
		t.Fatalf("list popular failed: %v", err)
	}
	if len(popular) != 1 || popular[0].ID != "half_yearly" {
		t.Errorf("expected the toggled plan in the popular list, got %+v", popular)
	}

	off, err := uc.TogglePopular(ctx, "half_yearly")
	if err != nil || off {
		t.Errorf("expected popular to flip back off, got on=%t err=%v", off, err)
	}
}
