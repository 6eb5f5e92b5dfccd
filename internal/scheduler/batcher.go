package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/repository"
)

// OrderBatcher buffers a run's suggestions per store and flushes them as
// one system order per store, or as a review batch in manual mode.
type OrderBatcher struct {
	orders      repository.OrderWorkflow
	suggestions repository.SuggestionRepository
	manual      bool
	jobRunID    string
	now         func() time.Time

	mu      sync.Mutex
	buffer  map[string][]domain.ReplenishmentSuggestion
	flushed bool
}

// FlushResult summarises what a flush handed downstream.
type FlushResult struct {
	OrderIDs  []string
	TotalCost decimal.Decimal
	// Saved counts suggestions persisted for manual review.
	Saved  int
	Errors []domain.StoreError
}

func NewOrderBatcher(orders repository.OrderWorkflow, suggestions repository.SuggestionRepository, manual bool, jobRunID string, now func() time.Time) *OrderBatcher {
	if now == nil {
		now = time.Now
	}
	return &OrderBatcher{
		orders:      orders,
		suggestions: suggestions,
		manual:      manual,
		jobRunID:    jobRunID,
		now:         now,
		buffer:      make(map[string][]domain.ReplenishmentSuggestion),
	}
}

// Add buffers suggestions for a store. Suggestions are grouped by their own
// store id so a batch never crosses stores.
func (b *OrderBatcher) Add(suggestions []domain.ReplenishmentSuggestion) {
	if len(suggestions) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range suggestions {
		b.buffer[s.StoreID] = append(b.buffer[s.StoreID], s)
	}
}

// Pending returns the number of buffered suggestions.
func (b *OrderBatcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.buffer {
		n += len(s)
	}
	return n
}

// Flush hands every buffered store batch downstream. A failing store is
// reported and does not stop the others. Flush is a no-op after the first call.
func (b *OrderBatcher) Flush(ctx context.Context, severity domain.Severity) FlushResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	res := FlushResult{TotalCost: decimal.Zero}
	if b.flushed {
		return res
	}
	b.flushed = true

	storeIDs := make([]string, 0, len(b.buffer))
	for id := range b.buffer {
		storeIDs = append(storeIDs, id)
	}
	sort.Strings(storeIDs)

	for _, storeID := range storeIDs {
		batch := b.buffer[storeID]
		if b.manual {
			b.flushReview(ctx, storeID, batch, severity, &res)
			continue
		}
		b.flushOrder(ctx, storeID, batch, severity, &res)
	}

	b.buffer = make(map[string][]domain.ReplenishmentSuggestion)
	return res
}

func (b *OrderBatcher) flushOrder(ctx context.Context, storeID string, batch []domain.ReplenishmentSuggestion, severity domain.Severity, res *FlushResult) {
	order := &domain.SystemOrder{
		StoreID:   storeID,
		JobRunID:  b.jobRunID,
		Total:     decimal.Zero,
		CreatedAt: b.now(),
	}
	for _, s := range batch {
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:    s.ProductID,
			VendorID:     s.VendorID,
			Quantity:     s.QuantityNeeded,
			UnitCost:     s.UnitCost,
			SuggestionID: s.ID,
		})
		order.Total = order.Total.Add(s.EstimatedCost)
	}

	id, err := b.orders.CreateSystemOrder(ctx, order)
	if err != nil {
		res.Errors = append(res.Errors, domain.StoreError{
			StoreID:  storeID,
			Message:  fmt.Sprintf("create order: %v", err),
			Severity: severity,
		})
		return
	}
	res.OrderIDs = append(res.OrderIDs, id)
	res.TotalCost = res.TotalCost.Add(order.Total)
}

func (b *OrderBatcher) flushReview(ctx context.Context, storeID string, batch []domain.ReplenishmentSuggestion, severity domain.Severity, res *FlushResult) {
	if err := b.suggestions.SaveBatch(ctx, batch); err != nil {
		res.Errors = append(res.Errors, domain.StoreError{
			StoreID:  storeID,
			Message:  fmt.Sprintf("save suggestions: %v", err),
			Severity: severity,
		})
		return
	}
	res.Saved += len(batch)
	for _, s := range batch {
		res.TotalCost = res.TotalCost.Add(s.EstimatedCost)
	}
}
