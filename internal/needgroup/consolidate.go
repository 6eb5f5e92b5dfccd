package needgroup

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

// Stamp dates suggestions the resolver creates when no per-product
// suggestion of the group exists to inherit from.
type Stamp struct {
	JobRunID    string
	GeneratedAt time.Time
	ExpiresAt   time.Time
}

// Consolidate replaces a store's per-product suggestions for one group
// with the resolved mix. The need is the sum of suggested quantities in
// equivalent units; the mix inherits the most urgent replaced priority.
// A group with nothing suggested is still resolved against its store
// minimum, and any top-up is emitted at HIGH priority.
// Suggestions outside the group pass through untouched.
func Consolidate(group domain.NeedGroup, storeID string, suggestions []domain.ReplenishmentSuggestion, products []domain.Product, inventory map[string]domain.InventoryLevel, stamp Stamp) ([]domain.ReplenishmentSuggestion, *Resolution) {
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var kept, replaced []domain.ReplenishmentSuggestion
	var need float64
	for _, s := range suggestions {
		p, ok := byID[s.ProductID]
		if s.StoreID != storeID || !ok || p.NeedGroup != group.ID || p.EquivalentUnit == nil || p.EquivalentUnit.Value <= 0 {
			kept = append(kept, s)
			continue
		}
		replaced = append(replaced, s)
		need += float64(s.QuantityNeeded) * p.EquivalentUnit.Value
	}
	if len(replaced) == 0 && group.MinimumFor(storeID) <= 0 {
		return suggestions, nil
	}

	res := Resolve(Request{
		Group:     group,
		StoreID:   storeID,
		Products:  products,
		Inventory: inventory,
		Need:      need,
	})

	if len(res.Lines) == 0 && len(replaced) == 0 {
		return suggestions, nil
	}

	template := domain.ReplenishmentSuggestion{
		JobRunID:          stamp.JobRunID,
		StoreID:           storeID,
		Priority:          domain.PriorityHigh,
		Confidence:        1,
		SeasonalityFactor: 1,
		GeneratedAt:       stamp.GeneratedAt,
		ExpiresAt:         stamp.ExpiresAt,
	}
	if len(replaced) > 0 {
		template = replaced[0]
	}
	prior := map[string]domain.ReplenishmentSuggestion{}
	for _, s := range replaced {
		prior[s.ProductID] = s
		if s.Priority.Rank() > template.Priority.Rank() {
			template.Priority = s.Priority
		}
	}

	out := kept
	for _, line := range res.Lines {
		s, ok := prior[line.ProductID]
		if !ok {
			s = template
			s.ID = uuid.NewString()
			s.ProductID = line.ProductID
			level := inventory[line.ProductID]
			s.CurrentAvailable = level.Available()
			s.InTransit = level.InTransit
			s.SafetyStock, s.ReorderPoint, s.AdjustedReorderPoint, s.TargetOnHand = 0, 0, 0, 0
			s.PredictedDailyUsage = 0
		}
		s.Priority = template.Priority
		s.VendorID = line.Vendor.VendorID
		s.VendorName = line.Vendor.VendorName
		s.QuantityNeeded = line.Quantity
		s.UnitCost = line.Vendor.CostPerItem
		s.EstimatedCost = line.Cost
		s.NeedGroup = group.ID
		s.Justification = fmt.Sprintf("need group %s: %s %.2f units at %s per unit",
			group.ID, line.Reason, line.Units, line.CostPerUnit.StringFixed(4))
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, res
}
