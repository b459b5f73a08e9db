package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"briefly60-subscription/internal/domain"
	"briefly60-subscription/internal/domain/model"
	"briefly60-subscription/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, price, original_price, currency, duration_months, features, popular, is_active, version, created_at, updated_at`

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, p *model.Plan) error {
	const q = `
INSERT INTO plans (id, name, price, original_price, currency, duration_months, features, popular, is_active, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
  name            = EXCLUDED.name,
  price           = EXCLUDED.price,
  original_price  = EXCLUDED.original_price,
  currency        = EXCLUDED.currency,
  duration_months = EXCLUDED.duration_months,
  features        = EXCLUDED.features,
  popular         = EXCLUDED.popular,
  is_active       = EXCLUDED.is_active,
  version         = EXCLUDED.version,
  updated_at      = EXCLUDED.updated_at;`

	features, err := json.Marshal(p.Features)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	if _, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.Name, p.Price, p.OriginalPrice, p.Currency, p.DurationMonths,
		features, p.Popular, p.IsActive, p.Version, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *planRepo) FindActiveByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE id=$1 AND is_active;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *planRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans WHERE is_active ORDER BY duration_months ASC;`
	return r.queryMany(ctx, tx, q)
}

func (r *planRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	const q = `SELECT ` + planColumns + ` FROM plans ORDER BY duration_months ASC;`
	return r.queryMany(ctx, tx, q)
}

func (r *planRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Plan, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanPlan(row)
}

func (r *planRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...any) ([]*model.Plan, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()
	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func scanPlan(row pgx.Row) (*model.Plan, error) {
	p := &model.Plan{}
	var features []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.OriginalPrice, &p.Currency,
		&p.DurationMonths, &features, &p.Popular, &p.IsActive, &p.Version,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(features) > 0 {
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return p, nil
}
