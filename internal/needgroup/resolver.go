// Package needgroup fills a functional need from interchangeable products,
// cheapest per equivalent unit first.
package needgroup

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/sourcing"
)

// Line reasons
const (
	ReasonMinimum = "minimum"
	ReasonNeed    = "need"
)

// Request describes one group at one store. Need is expressed in
// equivalent units.
type Request struct {
	Group     domain.NeedGroup
	StoreID   string
	Products  []domain.Product
	Inventory map[string]domain.InventoryLevel
	Need      float64
}

// Candidate is a group product with its chosen vendor and unit economics.
type Candidate struct {
	Product     domain.Product
	Vendor      domain.VendorOffer
	CostPerUnit decimal.Decimal
	rank        int
}

type Line struct {
	ProductID   string             `json:"product_id"`
	Vendor      domain.VendorOffer `json:"vendor"`
	Quantity    int                `json:"quantity"`
	Units       float64            `json:"units"`
	CostPerUnit decimal.Decimal    `json:"cost_per_unit"`
	Cost        decimal.Decimal    `json:"cost"`
	Reason      string             `json:"reason"`
}

type Resolution struct {
	GroupID      string          `json:"group_id"`
	StoreID      string          `json:"store_id"`
	Lines        []Line          `json:"lines"`
	UnitsCovered float64         `json:"units_covered"`
	UnmetUnits   float64         `json:"unmet_units"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

// Candidates returns the group's orderable products sorted by cost per
// equivalent unit, then substitution order, then product id.
func Candidates(group domain.NeedGroup, products []domain.Product) []Candidate {
	order := make(map[string]int, len(group.SubstitutionOrder))
	for i, id := range group.SubstitutionOrder {
		order[id] = i
	}

	var out []Candidate
	for _, p := range products {
		if p.NeedGroup != group.ID || !p.Active || p.EquivalentUnit == nil || p.EquivalentUnit.Value <= 0 {
			continue
		}
		vendor, ok := sourcing.SelectSimple(p.Vendors)
		if !ok {
			continue
		}
		rank, ok := order[p.ID]
		if !ok {
			rank = math.MaxInt32
		}
		out = append(out, Candidate{
			Product:     p,
			Vendor:      vendor,
			CostPerUnit: vendor.CostPerItem.Div(decimal.NewFromFloat(p.EquivalentUnit.Value)),
			rank:        rank,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].CostPerUnit.Cmp(out[j].CostPerUnit); c != 0 {
			return c < 0
		}
		if out[i].rank != out[j].rank {
			return out[i].rank < out[j].rank
		}
		return out[i].Product.ID < out[j].Product.ID
	})
	return out
}

// Resolve tops up the store minimum of minimum-required products, then
// fills the remaining need greedily. Per-product caps are honoured across
// both passes, so part of the need may stay unmet.
func Resolve(req Request) *Resolution {
	res := &Resolution{GroupID: req.Group.ID, StoreID: req.StoreID, TotalCost: decimal.Zero}
	candidates := Candidates(req.Group, req.Products)
	ordered := map[string]int{}
	lines := map[string]int{}

	add := func(c Candidate, qty int, reason string) int {
		if capQty := c.Product.MaxOrderQuantity; capQty > 0 {
			qty = min(qty, capQty-ordered[c.Product.ID])
		}
		if qty <= 0 {
			return 0
		}
		ordered[c.Product.ID] += qty
		units := float64(qty) * c.Product.EquivalentUnit.Value
		cost := c.Vendor.CostPerItem.Mul(decimal.NewFromInt(int64(qty)))

		if i, ok := lines[c.Product.ID]; ok {
			res.Lines[i].Quantity += qty
			res.Lines[i].Units += units
			res.Lines[i].Cost = res.Lines[i].Cost.Add(cost)
		} else {
			lines[c.Product.ID] = len(res.Lines)
			res.Lines = append(res.Lines, Line{
				ProductID:   c.Product.ID,
				Vendor:      c.Vendor,
				Quantity:    qty,
				Units:       units,
				CostPerUnit: c.CostPerUnit,
				Cost:        cost,
				Reason:      reason,
			})
		}
		res.UnitsCovered += units
		res.TotalCost = res.TotalCost.Add(cost)
		return qty
	}

	// 1. Store minimum of minimum-required products
	minimum := req.Group.MinimumFor(req.StoreID)
	if minimum > 0 {
		onHand := 0
		for _, c := range candidates {
			if c.Product.MinimumRequired {
				onHand += req.Inventory[c.Product.ID].OnHand
			}
		}
		deficit := minimum - onHand
		for _, c := range candidates {
			if deficit <= 0 {
				break
			}
			if c.Product.MinimumRequired {
				deficit -= add(c, deficit, ReasonMinimum)
			}
		}
	}

	// 2. Remaining need, cheapest per unit first
	remaining := req.Need - res.UnitsCovered
	for _, c := range candidates {
		if remaining <= 1e-9 {
			break
		}
		qty := int(math.Ceil(remaining / c.Product.EquivalentUnit.Value))
		got := add(c, qty, ReasonNeed)
		remaining -= float64(got) * c.Product.EquivalentUnit.Value
	}
	res.UnmetUnits = math.Max(0, remaining)
	return res
}
