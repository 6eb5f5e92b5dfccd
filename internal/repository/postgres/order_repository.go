package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

type orderRepository struct {
	db *DB
}

// NewOrderRepository writes system-initiated orders to the order
// workflow's tables in pending approval.
func NewOrderRepository(db *DB) *orderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateSystemOrder(ctx context.Context, order *domain.SystemOrder) (string, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	order.Status = domain.OrderStatusPendingApproval

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		// 1. Order header
		headerQuery := `
			INSERT INTO system_orders (id, store_id, job_run_id, total, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.ExecContext(ctx, headerQuery,
			order.ID, order.StoreID, order.JobRunID, order.Total, order.Status, order.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert system order: %w", err)
		}

		// 2. Lines
		lineQuery := `
			INSERT INTO system_order_lines (order_id, product_id, vendor_id, quantity, unit_cost, suggestion_id)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		stmt, err := tx.PrepareContext(ctx, lineQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, line := range order.Lines {
			if _, err := stmt.ExecContext(ctx,
				order.ID, line.ProductID, line.VendorID, line.Quantity, line.UnitCost, line.SuggestionID,
			); err != nil {
				return fmt.Errorf("failed to insert order line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return order.ID, nil
}
