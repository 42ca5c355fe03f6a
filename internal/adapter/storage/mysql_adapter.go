package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

const mysqlOrdersSchema = `
CREATE TABLE IF NOT EXISTS orders (
	id                VARCHAR(64)    NOT NULL PRIMARY KEY,
	business_id       VARCHAR(128)   NOT NULL,
	quote_id          VARCHAR(64)    NOT NULL DEFAULT '',
	ingredient_id     VARCHAR(128)   NOT NULL,
	quantity          DECIMAL(18, 3) NOT NULL,
	unit_price        DECIMAL(18, 2) NOT NULL,
	total_price       DECIMAL(18, 2) NOT NULL,
	use_by            BIGINT         NOT NULL,
	total_cost        DECIMAL(18, 2) NOT NULL,
	placed_at         BIGINT         NOT NULL,
	expected_delivery BIGINT         NOT NULL,
	status            VARCHAR(64)    NOT NULL,
	failure_reason    VARCHAR(255)   NOT NULL DEFAULT '',
	INDEX idx_orders_business (business_id, placed_at)
)`

const orderColumns = `id, business_id, quote_id, ingredient_id, quantity, unit_price, total_price,
	use_by, total_cost, placed_at, expected_delivery, status, failure_reason`

var ErrDuplicateOrder = errors.New("order already exists")

type MySQLOrderRepository struct {
	db *sql.DB
}

func NewMySQLOrderRepository(db *sql.DB) *MySQLOrderRepository {
	return &MySQLOrderRepository{db: db}
}

// Migrate creates the orders table when it does not exist.
func (m *MySQLOrderRepository) Migrate(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, mysqlOrdersSchema); err != nil {
		return fmt.Errorf("create orders table: %w", err)
	}
	return nil
}

func (m *MySQLOrderRepository) SaveOrder(ctx context.Context, order domain.Order) error {
	result, err := m.db.ExecContext(ctx, `
		INSERT IGNORE INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		newOrderRow(order).args()...,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrDuplicateOrder
	}
	return nil
}

func (m *MySQLOrderRepository) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var row orderRow
	err := m.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE id = ?`, orderID,
	).Scan(row.dest()...)

	if errors.Is(err, sql.ErrNoRows) {
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

func (m *MySQLOrderRepository) GetOrdersByBusiness(ctx context.Context, businessID string) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders WHERE business_id = ?
		ORDER BY placed_at, id`, businessID,
	)
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

func (m *MySQLOrderRepository) Reset(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM orders`); err != nil {
		return fmt.Errorf("delete orders: %w", err)
	}
	return nil
}
