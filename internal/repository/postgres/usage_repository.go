package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

type usageRepository struct {
	db *DB
}

func NewUsageRepository(db *DB) *usageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) History(ctx context.Context, storeID string, since time.Time) (map[string][]domain.UsageObservation, error) {
	query := `
		SELECT product_id, store_id, usage_date, quantity, seasonally_sensitive, event_tag
		FROM usage_history
		WHERE store_id = $1 AND usage_date >= $2
		ORDER BY product_id, usage_date
	`

	var rows []domain.UsageObservation
	if err := r.db.SelectContext(ctx, &rows, query, storeID, since); err != nil {
		return nil, fmt.Errorf("error getting usage history for store %s: %w", storeID, err)
	}

	out := make(map[string][]domain.UsageObservation)
	for _, obs := range rows {
		out[obs.ProductID] = append(out[obs.ProductID], obs)
	}
	return out, nil
}
