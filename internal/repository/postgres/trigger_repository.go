package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

const defaultPendingTriggerLimit = 100

type triggerRepository struct {
	db *DB
}

func NewTriggerRepository(db *DB) *triggerRepository {
	return &triggerRepository{db: db}
}

func (r *triggerRepository) Create(ctx context.Context, t *domain.ReplenishmentTrigger) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return fmt.Errorf("encode trigger payload: %w", err)
	}

	query := `
		INSERT INTO replenishment_triggers (id, trigger_type, store_ids, product_ids, priority, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.db.ExecContext(ctx, query,
		t.ID, t.Type, pq.Array(t.StoreIDs), pq.Array(t.ProductIDs), t.Priority, payload, t.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert trigger: %w", err)
	}
	return nil
}

// Pending returns unprocessed triggers, most urgent first.
func (r *triggerRepository) Pending(ctx context.Context, limit int) ([]domain.ReplenishmentTrigger, error) {
	if limit <= 0 {
		limit = defaultPendingTriggerLimit
	}

	query := `
		SELECT id, trigger_type, store_ids, product_ids, priority, payload, created_at
		FROM replenishment_triggers
		WHERE NOT processed
		ORDER BY CASE priority
		             WHEN 'CRITICAL' THEN 0
		             WHEN 'HIGH' THEN 1
		             WHEN 'NORMAL' THEN 2
		             ELSE 3
		         END, created_at
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("error getting pending triggers: %w", err)
	}
	defer rows.Close()

	var triggers []domain.ReplenishmentTrigger
	for rows.Next() {
		var t domain.ReplenishmentTrigger
		var stores, products pq.StringArray
		var payload []byte
		if err := rows.Scan(&t.ID, &t.Type, &stores, &products, &t.Priority, &payload, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning trigger: %w", err)
		}
		t.StoreIDs = []string(stores)
		t.ProductIDs = []string(products)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &t.Payload); err != nil {
				return nil, fmt.Errorf("decode trigger %s payload: %w", t.ID, err)
			}
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

func (r *triggerRepository) MarkProcessed(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE replenishment_triggers
		SET processed = TRUE, processed_at = $2
		WHERE id = $1 AND NOT processed
	`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark trigger %s processed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
