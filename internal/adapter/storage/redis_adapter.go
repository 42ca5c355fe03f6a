package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/ingredient-market/internal/core/domain"
)

const (
	stockKeyPrefix = "stock:"
	// stock is kept in Redis as integer thousandths of a unit
	quantityScale = domain.QuantityPlaces
)

var consumeStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return -1
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

var restockScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('INCRBY', KEYS[1], tonumber(ARGV[1]))
return 1
`)

// RedisInventory is a stock ledger shared by every process pointed at the
// same Redis. Consume runs as a single Lua script so the check and the
// decrement cannot interleave with another buyer.
type RedisInventory struct {
	client *redis.Client
}

func NewRedisInventory(client *redis.Client) *RedisInventory {
	return &RedisInventory{client: client}
}

func (r *RedisInventory) GetStock(ctx context.Context, ingredientID string) (decimal.Decimal, bool, error) {
	units, err := r.client.Get(ctx, stockKeyPrefix+ingredientID).Int64()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get stock: %w", err)
	}
	return fromUnits(units), true, nil
}

func (r *RedisInventory) Consume(ctx context.Context, ingredientID string, quantity decimal.Decimal) (bool, error) {
	if !domain.ValidQuantity(quantity) {
		return false, nil
	}

	result, err := consumeStockScript.Run(ctx, r.client, []string{stockKeyPrefix + ingredientID}, toUnits(quantity)).Int()
	if err != nil {
		return false, fmt.Errorf("consume stock: %w", err)
	}
	return result == 1, nil
}

func (r *RedisInventory) Restock(ctx context.Context, ingredientID string, quantity decimal.Decimal) error {
	if !domain.ValidQuantity(quantity) {
		return fmt.Errorf("restock %s: %w", quantity, domain.ErrInvalidQuantity)
	}
	result, err := restockScript.Run(ctx, r.client, []string{stockKeyPrefix + ingredientID}, toUnits(quantity)).Int()
	if err != nil {
		return fmt.Errorf("restock: %w", err)
	}
	if result == 0 {
		return domain.ErrIngredientNotFound
	}
	return nil
}

// SetStock overwrites the stock of an ingredient.
func (r *RedisInventory) SetStock(ctx context.Context, ingredientID string, quantity decimal.Decimal) error {
	return r.client.Set(ctx, stockKeyPrefix+ingredientID, toUnits(quantity), 0).Err()
}

// Seed writes the catalog's opening stock for ingredients that have no stock
// key yet, leaving balances written by other processes untouched.
func (r *RedisInventory) Seed(ctx context.Context, catalog *domain.Catalog) error {
	for _, it := range catalog.List() {
		if err := r.client.SetNX(ctx, stockKeyPrefix+it.ID, toUnits(it.Stock), 0).Err(); err != nil {
			return fmt.Errorf("seed stock %s: %w", it.ID, err)
		}
	}
	return nil
}

func toUnits(q decimal.Decimal) int64 {
	return q.Shift(quantityScale).Round(0).IntPart()
}

func fromUnits(units int64) decimal.Decimal {
	return decimal.New(units, -quantityScale)
}
