// Package sourcing ranks vendor offers for a product.
package sourcing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

const (
	preferenceWeight = 0.1
	neutralSLA       = 0.5
)

// Weights of the scored dimensions. Preference is fixed at 0.1.
type Weights struct {
	Cost     float64
	LeadTime float64
	SLA      float64
}

func DefaultWeights() Weights {
	return Weights{Cost: 0.5, LeadTime: 0.3, SLA: 0.2}
}

// Constraints are hard filters. Zero values disable a filter.
type Constraints struct {
	MaxLeadTimeDays  int
	RequirePreferred bool
	MinSLACompliance float64
}

// Score is the per-dimension breakdown of an offer, each in [0, 1].
type Score struct {
	Cost       float64 `json:"cost"`
	LeadTime   float64 `json:"lead_time"`
	Preference float64 `json:"preference"`
	SLA        float64 `json:"sla"`
	Total      float64 `json:"total"`
}

type Ranked struct {
	Offer domain.VendorOffer `json:"offer"`
	Score Score              `json:"score"`
}

type Selection struct {
	Vendor        domain.VendorOffer `json:"vendor"`
	Score         Score              `json:"score"`
	Ranking       []Ranked           `json:"ranking"`
	Justification string             `json:"justification"`
}

type Selector struct {
	weights Weights
}

func NewSelector(w Weights) *Selector {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &Selector{weights: w}
}

// Select returns the top-ranked offer or nil when there are none.
// Constraints that remove every offer are ignored. With default weights
// and no SLA history the ranking follows SelectSimple's order so both
// paths agree on the winner; weighted totals are still reported but the
// justification names the ordering that decided.
func (s *Selector) Select(offers []domain.VendorOffer, c Constraints, perf map[string]domain.VendorPerformance) *Selection {
	if len(offers) == 0 {
		return nil
	}

	candidates := filter(offers, c, perf)
	if len(candidates) == 0 {
		candidates = offers
	}

	ranking := s.score(candidates, perf)
	byOrder := s.weights == DefaultWeights() && !hasSLAHistory(candidates, perf)
	if byOrder {
		sort.SliceStable(ranking, func(i, j int) bool {
			return simpleLess(ranking[i].Offer, ranking[j].Offer)
		})
	} else {
		sort.SliceStable(ranking, func(i, j int) bool {
			if ranking[i].Score.Total != ranking[j].Score.Total {
				return ranking[i].Score.Total > ranking[j].Score.Total
			}
			return simpleLess(ranking[i].Offer, ranking[j].Offer)
		})
	}

	top := ranking[0]
	return &Selection{
		Vendor:        top.Offer,
		Score:         top.Score,
		Ranking:       ranking,
		Justification: justify(top, len(ranking), byOrder),
	}
}

// SelectSimple orders by cost, then lead time, then preferred first, then
// vendor id.
func SelectSimple(offers []domain.VendorOffer) (domain.VendorOffer, bool) {
	if len(offers) == 0 {
		return domain.VendorOffer{}, false
	}
	best := offers[0]
	for _, o := range offers[1:] {
		if simpleLess(o, best) {
			best = o
		}
	}
	return best, true
}

func simpleLess(a, b domain.VendorOffer) bool {
	if c := a.CostPerItem.Cmp(b.CostPerItem); c != 0 {
		return c < 0
	}
	if a.LeadTimeDays != b.LeadTimeDays {
		return a.LeadTimeDays < b.LeadTimeDays
	}
	if a.Preferred != b.Preferred {
		return a.Preferred
	}
	return a.VendorID < b.VendorID
}

func filter(offers []domain.VendorOffer, c Constraints, perf map[string]domain.VendorPerformance) []domain.VendorOffer {
	out := make([]domain.VendorOffer, 0, len(offers))
	for _, o := range offers {
		if c.MaxLeadTimeDays > 0 && o.LeadTimeDays > c.MaxLeadTimeDays {
			continue
		}
		if c.RequirePreferred && !o.Preferred {
			continue
		}
		if c.MinSLACompliance > 0 {
			rate, ok := slaRate(o, perf)
			if !ok || rate < c.MinSLACompliance {
				continue
			}
		}
		out = append(out, o)
	}
	return out
}

func (s *Selector) score(offers []domain.VendorOffer, perf map[string]domain.VendorPerformance) []Ranked {
	minCost, maxCost := offers[0].CostPerItem, offers[0].CostPerItem
	minLead, maxLead := offers[0].LeadTimeDays, offers[0].LeadTimeDays
	for _, o := range offers[1:] {
		minCost = decimal.Min(minCost, o.CostPerItem)
		maxCost = decimal.Max(maxCost, o.CostPerItem)
		minLead = min(minLead, o.LeadTimeDays)
		maxLead = max(maxLead, o.LeadTimeDays)
	}
	costRange := maxCost.Sub(minCost)

	out := make([]Ranked, len(offers))
	for i, o := range offers {
		var sc Score

		sc.Cost = 1
		if !costRange.IsZero() {
			sc.Cost = maxCost.Sub(o.CostPerItem).Div(costRange).InexactFloat64()
		}
		sc.LeadTime = 1
		if maxLead != minLead {
			sc.LeadTime = float64(maxLead-o.LeadTimeDays) / float64(maxLead-minLead)
		}
		if o.Preferred {
			sc.Preference = 1
		}
		sc.SLA = neutralSLA
		if rate, ok := slaRate(o, perf); ok {
			sc.SLA = rate
		}

		sc.Total = sc.Cost*s.weights.Cost +
			sc.LeadTime*s.weights.LeadTime +
			sc.Preference*preferenceWeight +
			sc.SLA*s.weights.SLA
		out[i] = Ranked{Offer: o, Score: sc}
	}
	return out
}

// slaRate prefers observed performance over the rate carried on the offer.
func slaRate(o domain.VendorOffer, perf map[string]domain.VendorPerformance) (float64, bool) {
	if p, ok := perf[o.VendorID]; ok && p.OrdersObserved > 0 {
		return p.ComplianceRate, true
	}
	if o.SLACompliance != nil {
		return *o.SLACompliance, true
	}
	return 0, false
}

func hasSLAHistory(offers []domain.VendorOffer, perf map[string]domain.VendorPerformance) bool {
	for _, o := range offers {
		if _, ok := slaRate(o, perf); ok {
			return true
		}
	}
	return false
}

func justify(top Ranked, candidates int, byOrder bool) string {
	var b strings.Builder
	name := top.Offer.VendorName
	if name == "" {
		name = top.Offer.VendorID
	}
	fmt.Fprintf(&b, "%s selected from %d offer(s): cost %s per item, lead time %d day(s)",
		name, candidates, top.Offer.CostPerItem.StringFixed(2), top.Offer.LeadTimeDays)
	if top.Offer.Preferred {
		b.WriteString(", preferred vendor")
	}
	if byOrder {
		b.WriteString("; ranked by lowest cost, then shortest lead time, then preference")
		fmt.Fprintf(&b, " (weighted score %.2f not used)", top.Score.Total)
		return b.String()
	}
	fmt.Fprintf(&b, "; score %.2f (cost %.2f, lead time %.2f, preference %.2f, sla %.2f)",
		top.Score.Total, top.Score.Cost, top.Score.LeadTime, top.Score.Preference, top.Score.SLA)
	return b.String()
}
