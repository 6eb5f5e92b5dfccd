package replenishment

import (
	"fmt"
	"time"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

// Config holds the reorder policy parameters.
type Config struct {
	SafetyStockMultiplier float64
	DaysOfCover           map[domain.StoreTier]int
	SuggestionValidity    time.Duration
}

// DaysOfCoverFor returns the tier default, falling back to standard.
func (c Config) DaysOfCoverFor(tier domain.StoreTier) int {
	if d, ok := c.DaysOfCover[tier]; ok && d > 0 {
		return d
	}
	return c.DaysOfCover[domain.StoreTierStandard]
}

// Options alter one calculation pass.
type Options struct {
	JobRunID        string
	ExcludedVendors map[string]bool
	// Performance switches vendor choice from the simple ordering to the
	// weighted scorer.
	Performance map[string]domain.VendorPerformance
}

// StoreInput is one consistent snapshot for a store. Inventory and Usage
// are keyed by product id.
type StoreInput struct {
	Store     domain.Store
	Products  []domain.Product
	Inventory map[string]domain.InventoryLevel
	Usage     map[string][]domain.UsageObservation
	Factors   *domain.ExternalFactors
}

// StoreResult is the outcome of one store's pass.
type StoreResult struct {
	StoreID          string
	Suggestions      []domain.ReplenishmentSuggestion
	Forecasts        []*domain.Forecast
	ProductsAnalyzed int
}

// Metrics is the reorder math for one product before a suggestion is built.
type Metrics struct {
	SafetyStock          int
	ReorderPoint         int
	AdjustedReorderPoint float64
	DaysOfCover          int
	TargetOnHand         int
	Available            int
	InTransit            int
	Triggered            bool
	QuantityNeeded       int
	Priority             domain.Priority
}

// ProductError ties a calculation failure to the product that caused it.
type ProductError struct {
	ProductID string
	Err       error
}

func (e *ProductError) Error() string {
	return fmt.Sprintf("product %s: %v", e.ProductID, e.Err)
}

func (e *ProductError) Unwrap() error {
	return e.Err
}

// ForecastFailure marks the error as a forecasting failure for metrics.
func (e *ProductError) ForecastFailure() bool { return true }
