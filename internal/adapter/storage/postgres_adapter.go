package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

var postgresOrdersSchema = []string{`
CREATE TABLE IF NOT EXISTS orders (
	id                TEXT           PRIMARY KEY,
	business_id       TEXT           NOT NULL,
	quote_id          TEXT           NOT NULL DEFAULT '',
	ingredient_id     TEXT           NOT NULL,
	quantity          NUMERIC(18, 3) NOT NULL,
	unit_price        NUMERIC(18, 2) NOT NULL,
	total_price       NUMERIC(18, 2) NOT NULL,
	use_by            BIGINT         NOT NULL,
	total_cost        NUMERIC(18, 2) NOT NULL,
	placed_at         BIGINT         NOT NULL,
	expected_delivery BIGINT         NOT NULL,
	status            TEXT           NOT NULL,
	failure_reason    TEXT           NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_business ON orders (business_id, placed_at)`,
}

const postgresSelectOrder = `
	SELECT id, business_id, quote_id, ingredient_id,
		quantity::text, unit_price::text, total_price::text, use_by,
		total_cost::text, placed_at, expected_delivery, status, failure_reason
	FROM orders`

type PostgresOrderRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresOrderRepository(pool *pgxpool.Pool) *PostgresOrderRepository {
	return &PostgresOrderRepository{pool: pool}
}

func (p *PostgresOrderRepository) Migrate(ctx context.Context) error {
	for _, stmt := range postgresOrdersSchema {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate orders: %w", err)
		}
	}
	return nil
}

func (p *PostgresOrderRepository) SaveOrder(ctx context.Context, order domain.Order) error {
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8, $9::numeric, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`,
		newOrderRow(order).args()...,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateOrder
	}
	return nil
}

func (p *PostgresOrderRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var row orderRow
	err := p.pool.QueryRow(ctx, postgresSelectOrder+` WHERE id = $1`, orderID).Scan(row.dest()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	order, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (p *PostgresOrderRepository) GetOrdersByBusiness(ctx context.Context, businessID string) ([]domain.Order, error) {
	rows, err := p.pool.Query(ctx, postgresSelectOrder+` WHERE business_id = $1 ORDER BY placed_at, id`, businessID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Order, 0)
	for rows.Next() {
		var row orderRow
		if err := rows.Scan(row.dest()...); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		order, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func (p *PostgresOrderRepository) Reset(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `TRUNCATE orders`); err != nil {
		return fmt.Errorf("truncate orders: %w", err)
	}
	return nil
}
