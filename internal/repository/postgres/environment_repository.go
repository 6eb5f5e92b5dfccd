package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

type environmentRepository struct {
	db *DB
}

// NewEnvironmentRepository serves weather, holidays, promotions and store
// events from local tables fed by the context services.
func NewEnvironmentRepository(db *DB) *environmentRepository {
	return &environmentRepository{db: db}
}

func (r *environmentRepository) Weather(ctx context.Context, storeID string, at time.Time) (*domain.Weather, error) {
	query := `
		SELECT storm, heatwave, temperature_c, precipitation_mm
		FROM weather_conditions
		WHERE store_id = $1 AND observed_on <= $2
		ORDER BY observed_on DESC
		LIMIT 1
	`

	var w domain.Weather
	var temp sql.NullFloat64
	err := r.db.QueryRowContext(ctx, query, storeID, at).Scan(&w.Storm, &w.Heatwave, &temp, &w.PrecipitationMM)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting weather for store %s: %w", storeID, err)
	}
	if temp.Valid {
		w.TemperatureC = &temp.Float64
	}
	return &w, nil
}

func (r *environmentRepository) Holidays(ctx context.Context, from, to time.Time) ([]domain.Holiday, error) {
	query := `
		SELECT name, holiday_date, tag
		FROM holidays
		WHERE holiday_date BETWEEN $1 AND $2
		ORDER BY holiday_date
	`

	var holidays []domain.Holiday
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("error getting holidays: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h domain.Holiday
		if err := rows.Scan(&h.Name, &h.Date, &h.Tag); err != nil {
			return nil, fmt.Errorf("error scanning holiday: %w", err)
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

func (r *environmentRepository) Promotions(ctx context.Context, storeID string, at time.Time) ([]domain.Promotion, error) {
	query := `
		SELECT id, COALESCE(product_id, ''), discount_percent, starts_at, ends_at
		FROM promotions
		WHERE (store_id IS NULL OR store_id = $1)
		  AND starts_at <= $2 AND ends_at >= $2
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, storeID, at)
	if err != nil {
		return nil, fmt.Errorf("error getting promotions for store %s: %w", storeID, err)
	}
	defer rows.Close()

	var promos []domain.Promotion
	for rows.Next() {
		var p domain.Promotion
		if err := rows.Scan(&p.ID, &p.ProductID, &p.DiscountPercent, &p.StartsAt, &p.EndsAt); err != nil {
			return nil, fmt.Errorf("error scanning promotion: %w", err)
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

func (r *environmentRepository) StoreEvents(ctx context.Context, storeID string, at time.Time) ([]domain.StoreEvent, error) {
	query := `
		SELECT name, impact_factor, starts_at, ends_at
		FROM store_events
		WHERE store_id = $1 AND starts_at <= $2 AND ends_at >= $2
		ORDER BY starts_at
	`

	rows, err := r.db.QueryContext(ctx, query, storeID, at)
	if err != nil {
		return nil, fmt.Errorf("error getting store events for store %s: %w", storeID, err)
	}
	defer rows.Close()

	var events []domain.StoreEvent
	for rows.Next() {
		var e domain.StoreEvent
		if err := rows.Scan(&e.Name, &e.ImpactFactor, &e.StartsAt, &e.EndsAt); err != nil {
			return nil, fmt.Errorf("error scanning store event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
