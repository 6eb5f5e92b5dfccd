package postgres

import (
	"context"
	"fmt"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

type inventoryRepository struct {
	db *DB
}

func NewInventoryRepository(db *DB) *inventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Snapshot(ctx context.Context, storeID string) (map[string]domain.InventoryLevel, error) {
	query := `
		SELECT product_id, store_id, on_hand, reserved, in_transit, updated_at
		FROM inventory_levels
		WHERE store_id = $1
	`

	var levels []domain.InventoryLevel
	if err := r.db.SelectContext(ctx, &levels, query, storeID); err != nil {
		return nil, fmt.Errorf("error getting inventory for store %s: %w", storeID, err)
	}

	out := make(map[string]domain.InventoryLevel, len(levels))
	for _, l := range levels {
		out[l.ProductID] = l
	}
	return out, nil
}
