package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

type catalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) *catalogRepository {
	return &catalogRepository{db: db}
}

func (r *catalogRepository) ActiveStores(ctx context.Context) ([]domain.Store, error) {
	query := `
		SELECT id, name, district, address, tier, active
		FROM stores
		WHERE active
		ORDER BY id
	`

	var stores []domain.Store
	if err := r.db.SelectContext(ctx, &stores, query); err != nil {
		return nil, fmt.Errorf("error getting active stores: %w", err)
	}
	return stores, nil
}

type productRow struct {
	ID                  string          `db:"id"`
	SKU                 string          `db:"sku"`
	Name                string          `db:"name"`
	Active              bool            `db:"active"`
	NeedGroup           string          `db:"need_group"`
	EquivalentUnitValue sql.NullFloat64 `db:"equivalent_unit_value"`
	EquivalentUnit      sql.NullString  `db:"equivalent_unit"`
	SupplyDurationDays  sql.NullInt64   `db:"supply_duration_days"`
	MinimumRequired     bool            `db:"minimum_required"`
	MaxOrderQuantity    int             `db:"max_order_quantity"`
}

type offerRow struct {
	ProductID string `db:"product_id"`
	domain.VendorOffer
}

func (r *catalogRepository) ActiveProducts(ctx context.Context) ([]domain.Product, error) {
	productQuery := `
		SELECT id, sku, name, active, need_group, equivalent_unit_value, equivalent_unit,
		       supply_duration_days, minimum_required, max_order_quantity
		FROM products
		WHERE active
		ORDER BY id
	`
	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, productQuery); err != nil {
		return nil, fmt.Errorf("error getting active products: %w", err)
	}

	offerQuery := `
		SELECT o.product_id, o.vendor_id, o.vendor_name, o.cost_per_item,
		       o.lead_time_days, o.preferred, o.sla_compliance
		FROM vendor_offers o
		JOIN products p ON p.id = o.product_id
		WHERE p.active
		ORDER BY o.product_id, o.vendor_id
	`
	var offers []offerRow
	if err := r.db.SelectContext(ctx, &offers, offerQuery); err != nil {
		return nil, fmt.Errorf("error getting vendor offers: %w", err)
	}

	byProduct := make(map[string][]domain.VendorOffer, len(rows))
	for _, o := range offers {
		byProduct[o.ProductID] = append(byProduct[o.ProductID], o.VendorOffer)
	}

	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		p := domain.Product{
			ID:               row.ID,
			SKU:              row.SKU,
			Name:             row.Name,
			Active:           row.Active,
			NeedGroup:        row.NeedGroup,
			MinimumRequired:  row.MinimumRequired,
			MaxOrderQuantity: row.MaxOrderQuantity,
			Vendors:          byProduct[row.ID],
		}
		if row.EquivalentUnitValue.Valid {
			p.EquivalentUnit = &domain.EquivalentUnit{Value: row.EquivalentUnitValue.Float64, Unit: row.EquivalentUnit.String}
		}
		if row.SupplyDurationDays.Valid {
			days := int(row.SupplyDurationDays.Int64)
			p.SupplyDurationDays = &days
		}
		products = append(products, p)
	}
	return products, nil
}

func (r *catalogRepository) NeedGroups(ctx context.Context) ([]domain.NeedGroup, error) {
	query := `
		SELECT id, name, default_minimum, substitution_order
		FROM need_groups
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error getting need groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.NeedGroup
	index := map[string]int{}
	for rows.Next() {
		var g domain.NeedGroup
		var order pq.StringArray
		if err := rows.Scan(&g.ID, &g.Name, &g.DefaultMinimum, &order); err != nil {
			return nil, fmt.Errorf("error scanning need group: %w", err)
		}
		g.SubstitutionOrder = []string(order)
		g.StoreMinimums = map[string]int{}
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	minimumQuery := `
		SELECT need_group_id, store_id, minimum
		FROM need_group_minimums
	`
	mrows, err := r.db.QueryContext(ctx, minimumQuery)
	if err != nil {
		return nil, fmt.Errorf("error getting need group minimums: %w", err)
	}
	defer mrows.Close()

	for mrows.Next() {
		var groupID, storeID string
		var minimum int
		if err := mrows.Scan(&groupID, &storeID, &minimum); err != nil {
			return nil, fmt.Errorf("error scanning need group minimum: %w", err)
		}
		if i, ok := index[groupID]; ok {
			groups[i].StoreMinimums[storeID] = minimum
		}
	}
	return groups, mrows.Err()
}
