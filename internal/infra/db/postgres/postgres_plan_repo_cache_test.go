//go:build !integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"briefly60-subscription/internal/domain"
	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/domain/ports/repository"
)

type fakePlanStore struct {
	ops     *[]string
	saveErr error
	plans   map[string]*model.Plan
}

func (f *fakePlanStore) Save(_ context.Context, _ repository.Tx, p *model.Plan) error {
	*f.ops = append(*f.ops, "db.save")
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *p
	f.plans[p.ID] = &cp
	return nil
}

func (f *fakePlanStore) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Plan, error) {
	*f.ops = append(*f.ops, "db.find")
	p, ok := f.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePlanStore) FindActiveByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	p, err := f.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePlanStore) ListActive(_ context.Context, _ repository.Tx) ([]*model.Plan, error) {
	*f.ops = append(*f.ops, "db.list")
	var out []*model.Plan
	for _, p := range f.plans {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakePlanStore) ListAll(_ context.Context, _ repository.Tx) ([]*model.Plan, error) {
	*f.ops = append(*f.ops, "db.list")
	var out []*model.Plan
	for _, p := range f.plans {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

type fakeRedis struct {
	ops  *[]string
	data map[string]string
}

func (f *fakeRedis) Ping(context.Context) error { return nil }

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	*f.ops = append(*f.ops, "redis.set")
	if b, ok := value.([]byte); ok {
		f.data[key] = string(b)
	}
	return nil
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	*f.ops = append(*f.ops, "redis.get")
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Incr(context.Context, string) (int64, error) { return 0, nil }

func (f *fakeRedis) Expire(context.Context, string, time.Duration) error { return nil }

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	*f.ops = append(*f.ops, "redis.del")
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeRedis) Close() error { return nil }

func newCacheFixture() (*fakePlanStore, *fakeRedis, repository.PlanRepository, *[]string) {
	ops := &[]string{}
	store := &fakePlanStore{ops: ops, plans: map[string]*model.Plan{}}
	cache := &fakeRedis{ops: ops, data: map[string]string{}}
	return store, cache, NewPlanRepoCacheDecorator(store, cache), ops
}

func seedPlan(id string) *model.Plan {
	now := time.Now()
	return &model.Plan{
		ID:             id,
		Name:           "Plan " + id,
		Price:          50,
		OriginalPrice:  50,
		Currency:       "BDT",
		DurationMonths: 1,
		IsActive:       true,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestPlanRepoCacheDecorator_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("should invalidate only after the database write lands", func(t *testing.T) {
		_, _, repo, ops := newCacheFixture()

		if err := repo.Save(ctx, repository.NoTX, seedPlan("monthly")); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(*ops) != 2 || (*ops)[0] != "db.save" || (*ops)[1] != "redis.del" {
			t.Errorf("expected [db.save redis.del], got %v", *ops)
		}
	})

	t.Run("should leave the cache untouched when the write fails", func(t *testing.T) {
		store, cache, repo, ops := newCacheFixture()
		cache.data["plan:monthly"] = `{"ID":"monthly"}`
		store.saveErr = errors.New("connection reset")

		if err := repo.Save(ctx, repository.NoTX, seedPlan("monthly")); err == nil {
			t.Fatal("expected the write error to surface")
		}
		for _, op := range *ops {
			if op == "redis.del" {
				t.Errorf("failed write must not invalidate, ops: %v", *ops)
			}
		}
		if _, ok := cache.data["plan:monthly"]; !ok {
			t.Error("cached entry should survive a failed write")
		}
	})

	t.Run("a read after a save must come from the database, not the old cache", func(t *testing.T) {
		_, _, repo, _ := newCacheFixture()
		if err := repo.Save(ctx, repository.NoTX, seedPlan("monthly")); err != nil {
			t.Fatalf("seed save failed: %v", err)
		}
		// populate the cache
		if _, err := repo.FindByID(ctx, repository.NoTX, "monthly"); err != nil {
			t.Fatalf("warm read failed: %v", err)
		}

		updated := seedPlan("monthly")
		updated.Price = 60
		updated.Version = 2
		if err := repo.Save(ctx, repository.NoTX, updated); err != nil {
			t.Fatalf("update save failed: %v", err)
		}

		got, err := repo.FindByID(ctx, repository.NoTX, "monthly")
		if err != nil {
			t.Fatalf("read after update failed: %v", err)
		}
		if got.Price != 60 || got.Version != 2 {
			t.Errorf("stale plan served from cache: price=%d version=%d", got.Price, got.Version)
		}
	})
}
