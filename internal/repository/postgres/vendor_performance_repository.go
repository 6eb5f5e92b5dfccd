package postgres

import (
	"context"
	"fmt"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

type vendorPerformanceRepository struct {
	db *DB
}

func NewVendorPerformanceRepository(db *DB) *vendorPerformanceRepository {
	return &vendorPerformanceRepository{db: db}
}

func (r *vendorPerformanceRepository) Performance(ctx context.Context) (map[string]domain.VendorPerformance, error) {
	query := `
		SELECT vendor_id, compliance_rate, orders_observed
		FROM vendor_performance
		WHERE orders_observed > 0
	`

	var rows []domain.VendorPerformance
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("error getting vendor performance: %w", err)
	}

	out := make(map[string]domain.VendorPerformance, len(rows))
	for _, p := range rows {
		out[p.VendorID] = p
	}
	return out, nil
}
