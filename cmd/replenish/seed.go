package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/replenishment-engine/pkg/logger"
)

// seedSpec maps one CSV file onto a table. Only columns listed here are
// read; missing columns take the table defaults.
type seedSpec struct {
	table   string
	file    string
	columns []string
	key     []string
}

// Parents before children so foreign keys resolve.
var seedSpecs = []seedSpec{
	{
		table:   "stores",
		file:    "stores.csv",
		columns: []string{"id", "name", "district", "address", "tier", "active"},
		key:     []string{"id"},
	},
	{
		table:   "products",
		file:    "products.csv",
		columns: []string{"id", "sku", "name", "active", "need_group", "equivalent_unit_value", "equivalent_unit", "supply_duration_days", "minimum_required", "max_order_quantity"},
		key:     []string{"id"},
	},
	{
		table:   "vendor_offers",
		file:    "vendor_offers.csv",
		columns: []string{"product_id", "vendor_id", "vendor_name", "cost_per_item", "lead_time_days", "preferred", "sla_compliance"},
		key:     []string{"product_id", "vendor_id"},
	},
	{
		table:   "vendor_performance",
		file:    "vendor_performance.csv",
		columns: []string{"vendor_id", "compliance_rate", "orders_observed"},
		key:     []string{"vendor_id"},
	},
	{
		table:   "inventory_levels",
		file:    "inventory_levels.csv",
		columns: []string{"product_id", "store_id", "on_hand", "reserved", "in_transit"},
		key:     []string{"product_id", "store_id"},
	},
	{
		table:   "usage_history",
		file:    "usage_history.csv",
		columns: []string{"product_id", "store_id", "usage_date", "quantity", "seasonally_sensitive", "event_tag"},
		key:     []string{"product_id", "store_id", "usage_date"},
	},
	{
		table:   "holidays",
		file:    "holidays.csv",
		columns: []string{"holiday_date", "name", "tag"},
		key:     []string{"holiday_date", "name"},
	},
}

func runSeed(c *cli.Context) error {
	db, err := dbFrom(c)
	if err != nil {
		return err
	}
	dataDir := c.String("data-dir")
	ctx := c.Context

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Defer a rollback in case anything fails.
	defer tx.Rollback()

	logger.Log.Info().Str("data_dir", dataDir).Msg("Starting database seeding")
	if err := seedAll(ctx, tx, dataDir); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	logger.Log.Info().Msg("Database seeding completed")
	return nil
}

func seedAll(ctx context.Context, tx *sql.Tx, dataDir string) error {
	for _, spec := range seedSpecs {
		n, err := seedTable(ctx, tx, spec, filepath.Join(dataDir, spec.file))
		if errors.Is(err, os.ErrNotExist) {
			logger.Log.Info().Str("table", spec.table).Str("file", spec.file).Msg("Seed file not found, skipping")
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", spec.table, err)
		}
		logger.Log.Info().Str("table", spec.table).Int("rows", n).Msg("Seeded table")
	}
	return nil
}

func seedTable(ctx context.Context, tx *sql.Tx, spec seedSpec, filePath string) (int, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns, indexes, err := selectColumns(header, spec)
	if err != nil {
		return 0, err
	}
	query := buildUpsertQuery(spec.table, columns, spec.key)

	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("failed to read CSV record: %w", err)
		}

		args := make([]any, len(columns))
		for i, idx := range indexes {
			if idx >= len(record) {
				return rows, fmt.Errorf("line %d: missing column %q", rows+2, columns[i])
			}
			args[i] = nullIfEmpty(strings.TrimSpace(record[idx]))
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return rows, fmt.Errorf("line %d: failed to insert record: %w", rows+2, err)
		}
		rows++
	}
	return rows, nil
}

// selectColumns keeps the known columns present in the header, in header
// order. Every key column must be present.
func selectColumns(header []string, spec seedSpec) ([]string, []int, error) {
	known := make(map[string]bool, len(spec.columns))
	for _, col := range spec.columns {
		known[col] = true
	}

	var (
		columns []string
		indexes []int
		present = map[string]bool{}
	)
	for i, raw := range header {
		col := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff")))
		if !known[col] || present[col] {
			continue
		}
		present[col] = true
		columns = append(columns, col)
		indexes = append(indexes, i)
	}

	for _, k := range spec.key {
		if !present[k] {
			return nil, nil, fmt.Errorf("%s: key column %q missing from header", spec.file, k)
		}
	}
	return columns, indexes, nil
}

func buildUpsertQuery(table string, columns, key []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	isKey := make(map[string]bool, len(key))
	for _, k := range key {
		isKey[k] = true
	}
	var updates []string
	for _, col := range columns {
		if !isKey[col] {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(key, ", "),
		conflict,
	)
}

// nullIfEmpty returns NULL if the string is empty, otherwise returns the string
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
