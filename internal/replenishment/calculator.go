// Package replenishment turns forecasts and inventory snapshots into
// reorder suggestions.
package replenishment

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/forecast"
	"github.com/andresuchdata/replenishment-engine/internal/sourcing"
	"github.com/andresuchdata/replenishment-engine/internal/stats"
)

// Forecaster is the forecasting dependency of the calculator.
type Forecaster interface {
	Forecast(ctx context.Context, req forecast.Request) (*domain.Forecast, error)
}

// Calculator computes reorder suggestions for a store.
type Calculator struct {
	forecaster Forecaster
	selector   *sourcing.Selector
	cfg        Config
	now        func() time.Time
}

func NewCalculator(f Forecaster, selector *sourcing.Selector, cfg Config, now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	if selector == nil {
		selector = sourcing.NewSelector(sourcing.DefaultWeights())
	}
	return &Calculator{forecaster: f, selector: selector, cfg: cfg, now: now}
}

// CalculateStore runs the per-product loop for one store. Products that
// are inactive, have no inventory record, no usable vendor or no forecast
// usage are skipped. A forecasting error aborts the store.
func (c *Calculator) CalculateStore(ctx context.Context, in StoreInput, opts Options) (*StoreResult, error) {
	res := &StoreResult{StoreID: in.Store.ID}
	now := c.now()

	products := append([]domain.Product(nil), in.Products...)
	sort.SliceStable(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !p.Active {
			continue
		}
		level, ok := in.Inventory[p.ID]
		if !ok {
			continue
		}
		offer, selection, ok := c.chooseVendor(p.Vendors, opts)
		if !ok {
			continue
		}

		res.ProductsAnalyzed++
		fc, err := c.forecaster.Forecast(ctx, forecast.Request{
			ProductID: p.ID,
			StoreID:   in.Store.ID,
			History:   in.Usage[p.ID],
			Factors:   in.Factors,
			AsOf:      now,
		})
		if err != nil {
			return res, &ProductError{ProductID: p.ID, Err: err}
		}
		res.Forecasts = append(res.Forecasts, fc)

		if fc.ForecastedDailyUsage <= 0 {
			continue
		}

		m := c.Evaluate(p, in.Store, level, fc, offer)
		if !m.Triggered || m.QuantityNeeded <= 0 {
			continue
		}
		res.Suggestions = append(res.Suggestions, c.suggestion(p, in.Store, offer, selection, fc, m, opts, now))
	}
	return res, nil
}

// Evaluate applies the reorder policy to one product.
func (c *Calculator) Evaluate(p domain.Product, store domain.Store, level domain.InventoryLevel, fc *domain.Forecast, offer domain.VendorOffer) Metrics {
	avg := fc.ForecastedDailyUsage
	m := Metrics{
		Available: level.Available(),
		InTransit: level.InTransit,
	}

	// 1. Safety stock scaled by forecast variability
	m.SafetyStock = int(math.Ceil(math.Max(0, avg*c.cfg.SafetyStockMultiplier*(1+fc.UsageVariability))))

	// 2. Days of cover: product override, else store tier default
	m.DaysOfCover = c.cfg.DaysOfCoverFor(store.Tier)
	if p.SupplyDurationDays != nil && *p.SupplyDurationDays > 0 {
		m.DaysOfCover = *p.SupplyDurationDays
	}

	// 3. Reorder point over the vendor lead time, reported with seasonality
	m.ReorderPoint = int(math.Ceil(float64(m.SafetyStock) + float64(offer.LeadTimeDays)*avg))
	seasonality := fc.SeasonalityFactor
	if seasonality <= 0 {
		seasonality = 1
	}
	m.AdjustedReorderPoint = stats.RoundFloat(float64(m.ReorderPoint)*seasonality, 2)

	// 4. Trigger gate uses the unadjusted reorder point
	m.Triggered = m.Available <= m.ReorderPoint

	// 5. Order up to target on hand
	m.TargetOnHand = int(math.Ceil(avg * float64(m.DaysOfCover)))
	if m.Triggered {
		m.QuantityNeeded = max(0, m.TargetOnHand-m.Available-m.InTransit)
	}

	// 6. Priority
	m.Priority = priority(m, fc.Confidence)
	return m
}

func priority(m Metrics, confidence float64) domain.Priority {
	adj := 0.8
	switch {
	case confidence > 0.8:
		adj = 1.2
	case confidence > 0.6:
		adj = 1.0
	}

	available := float64(m.Available)
	if available <= float64(m.SafetyStock)*adj {
		return domain.PriorityHigh
	}
	if available <= m.AdjustedReorderPoint*0.8 {
		return domain.PriorityMedium
	}
	return domain.PriorityLow
}

func (c *Calculator) chooseVendor(offers []domain.VendorOffer, opts Options) (domain.VendorOffer, *sourcing.Selection, bool) {
	candidates := offers
	if len(opts.ExcludedVendors) > 0 {
		kept := make([]domain.VendorOffer, 0, len(offers))
		for _, o := range offers {
			if !opts.ExcludedVendors[o.VendorID] {
				kept = append(kept, o)
			}
		}
		if len(kept) > 0 {
			candidates = kept
		}
	}

	if len(opts.Performance) > 0 {
		sel := c.selector.Select(candidates, sourcing.Constraints{}, opts.Performance)
		if sel == nil {
			return domain.VendorOffer{}, nil, false
		}
		return sel.Vendor, sel, true
	}
	offer, ok := sourcing.SelectSimple(candidates)
	return offer, nil, ok
}

func (c *Calculator) suggestion(p domain.Product, store domain.Store, offer domain.VendorOffer, sel *sourcing.Selection, fc *domain.Forecast, m Metrics, opts Options, now time.Time) domain.ReplenishmentSuggestion {
	qty := decimal.NewFromInt(int64(m.QuantityNeeded))
	justification := fmt.Sprintf(
		"available %d <= reorder point %d (safety stock %d, lead time %d days, %.2f/day %s forecast); ordering to %d days of cover",
		m.Available, m.ReorderPoint, m.SafetyStock, offer.LeadTimeDays, fc.ForecastedDailyUsage, fc.Method, m.DaysOfCover,
	)
	if sel != nil {
		justification += "; " + sel.Justification
	}

	return domain.ReplenishmentSuggestion{
		ID:                   uuid.NewString(),
		JobRunID:             opts.JobRunID,
		ProductID:            p.ID,
		StoreID:              store.ID,
		VendorID:             offer.VendorID,
		VendorName:           offer.VendorName,
		CurrentAvailable:     m.Available,
		InTransit:            m.InTransit,
		SafetyStock:          m.SafetyStock,
		ReorderPoint:         m.ReorderPoint,
		AdjustedReorderPoint: m.AdjustedReorderPoint,
		TargetOnHand:         m.TargetOnHand,
		DaysOfCover:          m.DaysOfCover,
		QuantityNeeded:       m.QuantityNeeded,
		UnitCost:             offer.CostPerItem,
		EstimatedCost:        offer.CostPerItem.Mul(qty),
		Priority:             m.Priority,
		Confidence:           fc.Confidence,
		SeasonalityFactor:    fc.SeasonalityFactor,
		PredictedDailyUsage:  fc.ForecastedDailyUsage,
		ForecastMethod:       fc.Method,
		NeedGroup:            p.NeedGroup,
		Justification:        justification,
		GeneratedAt:          now,
		ExpiresAt:            now.Add(c.cfg.SuggestionValidity),
	}
}
