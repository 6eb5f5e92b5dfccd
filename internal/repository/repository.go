// Package repository declares the collaborators the engine reads from and
// writes to. Postgres implementations live in the postgres subpackage.
package repository

import (
	"context"
	"time"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

type CatalogRepository interface {
	ActiveStores(ctx context.Context) ([]domain.Store, error)
	// ActiveProducts returns active products with their vendor offers.
	ActiveProducts(ctx context.Context) ([]domain.Product, error)
	NeedGroups(ctx context.Context) ([]domain.NeedGroup, error)
}

type InventoryRepository interface {
	// Snapshot returns the inventory of a store keyed by product id.
	Snapshot(ctx context.Context, storeID string) (map[string]domain.InventoryLevel, error)
}

type UsageRepository interface {
	// History returns usage observations since the given day, keyed by
	// product id and ordered by date.
	History(ctx context.Context, storeID string, since time.Time) (map[string][]domain.UsageObservation, error)
}

// EnvironmentProvider supplies optional context signals. Callers treat
// errors as "no signal".
type EnvironmentProvider interface {
	Weather(ctx context.Context, storeID string, at time.Time) (*domain.Weather, error)
	Holidays(ctx context.Context, from, to time.Time) ([]domain.Holiday, error)
	Promotions(ctx context.Context, storeID string, at time.Time) ([]domain.Promotion, error)
	StoreEvents(ctx context.Context, storeID string, at time.Time) ([]domain.StoreEvent, error)
}

type VendorPerformanceRepository interface {
	Performance(ctx context.Context) (map[string]domain.VendorPerformance, error)
}

// OrderWorkflow accepts system-initiated orders in pending approval.
type OrderWorkflow interface {
	CreateSystemOrder(ctx context.Context, order *domain.SystemOrder) (string, error)
}

type TriggerRepository interface {
	Create(ctx context.Context, trigger *domain.ReplenishmentTrigger) error
	Pending(ctx context.Context, limit int) ([]domain.ReplenishmentTrigger, error)
	// MarkProcessed flips an unprocessed trigger; it reports false when
	// the trigger was already processed.
	MarkProcessed(ctx context.Context, id string, at time.Time) (bool, error)
}

type JobResultRepository interface {
	Save(ctx context.Context, result *domain.ScheduledJobResult) error
	List(ctx context.Context, jobType domain.JobType, limit int) ([]domain.ScheduledJobResult, error)
}

type SuggestionRepository interface {
	SaveBatch(ctx context.Context, suggestions []domain.ReplenishmentSuggestion) error
	// ListActive returns unexpired suggestions for a store.
	ListActive(ctx context.Context, storeID string, now time.Time) ([]domain.ReplenishmentSuggestion, error)
}
