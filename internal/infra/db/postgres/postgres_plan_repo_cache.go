package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"briefly60-subscription/internal/domain"
	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/domain/ports/repository"
	"briefly60-subscription/internal/infra/metrics"
	red "briefly60-subscription/internal/infra/redis"
)

var _ repository.PlanRepository = (*planRepoCacheDecorator)(nil)

// planRepoCacheDecorator caches plan reads in Redis. The catalog is small and
// read on every pricing-page hit, so a blunt key-per-plan plus whole-list
// cache with write-through invalidation is enough.
type planRepoCacheDecorator struct {
	inner repository.PlanRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPlanRepoCacheDecorator(inner repository.PlanRepository, cache red.RedisClient) repository.PlanRepository {
	return &planRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func (d *planRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	if err := d.inner.Save(ctx, tx, plan); err != nil {
		return err
	}
	// invalidate only after the row is written; a read racing an
	// invalidate-first ordering could re-cache the old version for a full TTL
	d.invalidate(ctx, plan.ID)
	return nil
}

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	key := fmt.Sprintf("plan:%s", id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("plan", "hit")
		var plan model.Plan
		if json.Unmarshal([]byte(val), &plan) == nil {
			return &plan, nil
		}
	}

	metrics.IncCacheRequest("plan", "miss")
	plan, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		bytes, _ := json.Marshal(plan)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return plan, nil
}

// FindActiveByID is not cached separately; it reads through FindByID and
// applies the active check here so a stale "archived" flag cannot outlive
// the invalidation on Save.
func (d *planRepoCacheDecorator) FindActiveByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	plan, err := d.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (d *planRepoCacheDecorator) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return d.cachedList(ctx, tx, "plans:active", d.inner.ListActive)
}

func (d *planRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	return d.cachedList(ctx, tx, "plans:all", d.inner.ListAll)
}

func (d *planRepoCacheDecorator) cachedList(ctx context.Context, tx repository.Tx, key string,
	load func(context.Context, repository.Tx) ([]*model.Plan, error)) ([]*model.Plan, error) {

	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("plan_list", "hit")
		var plans []*model.Plan
		if json.Unmarshal([]byte(val), &plans) == nil {
			return plans, nil
		}
	}
	if err != nil && err != redis.Nil {
		// Redis trouble; fall through to the database.
		metrics.IncCacheRequest("plan_list", "error")
	} else {
		metrics.IncCacheRequest("plan_list", "miss")
	}

	plans, err := load(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		bytes, _ := json.Marshal(plans)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return plans, nil
}

func (d *planRepoCacheDecorator) invalidate(ctx context.Context, id string) {
	d.cache.Del(ctx, fmt.Sprintf("plan:%s", id), "plans:active", "plans:all")
}
