package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

type suggestionRepository struct {
	db *DB
}

// NewSuggestionRepository stores suggestions awaiting manual review.
func NewSuggestionRepository(db *DB) *suggestionRepository {
	return &suggestionRepository{db: db}
}

const insertSuggestionQuery = `
	INSERT INTO replenishment_suggestions (
		id, job_run_id, product_id, store_id, vendor_id, vendor_name,
		current_available, in_transit, safety_stock, reorder_point, adjusted_reorder_point,
		target_on_hand, days_of_cover, quantity_needed, unit_cost, estimated_cost,
		priority, confidence, seasonality_factor, predicted_daily_usage, forecast_method,
		need_group, justification, generated_at, expires_at
	) VALUES (
		:id, :job_run_id, :product_id, :store_id, :vendor_id, :vendor_name,
		:current_available, :in_transit, :safety_stock, :reorder_point, :adjusted_reorder_point,
		:target_on_hand, :days_of_cover, :quantity_needed, :unit_cost, :estimated_cost,
		:priority, :confidence, :seasonality_factor, :predicted_daily_usage, :forecast_method,
		:need_group, :justification, :generated_at, :expires_at
	)
`

func (r *suggestionRepository) SaveBatch(ctx context.Context, suggestions []domain.ReplenishmentSuggestion) error {
	if len(suggestions) == 0 {
		return nil
	}
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for i := range suggestions {
			if _, err := tx.NamedExecContext(ctx, insertSuggestionQuery, &suggestions[i]); err != nil {
				return fmt.Errorf("failed to insert suggestion %s: %w", suggestions[i].ID, err)
			}
		}
		return nil
	})
}

func (r *suggestionRepository) ListActive(ctx context.Context, storeID string, now time.Time) ([]domain.ReplenishmentSuggestion, error) {
	query := `
		SELECT id, job_run_id, product_id, store_id, vendor_id, vendor_name,
		       current_available, in_transit, safety_stock, reorder_point, adjusted_reorder_point,
		       target_on_hand, days_of_cover, quantity_needed, unit_cost, estimated_cost,
		       priority, confidence, seasonality_factor, predicted_daily_usage, forecast_method,
		       need_group, justification, generated_at, expires_at
		FROM replenishment_suggestions
		WHERE store_id = $1 AND expires_at > $2
		ORDER BY generated_at DESC, product_id
	`

	var out []domain.ReplenishmentSuggestion
	if err := r.db.SelectContext(ctx, &out, query, storeID, now); err != nil {
		return nil, fmt.Errorf("error listing suggestions for store %s: %w", storeID, err)
	}
	return out, nil
}
