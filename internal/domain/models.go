// internal/domain/models.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoreTier classifies a store and sets its default days of cover.
type StoreTier string

const (
	StoreTierPremium  StoreTier = "premium"
	StoreTierStandard StoreTier = "standard"
	StoreTierBasic    StoreTier = "basic"
)

// Store represents a store location
type Store struct {
	ID       string    `json:"id" db:"id"`
	Name     string    `json:"name" db:"name"`
	District string    `json:"district" db:"district"`
	Address  string    `json:"address" db:"address"`
	Tier     StoreTier `json:"tier" db:"tier"`
	Active   bool      `json:"active" db:"active"`
}

// EquivalentUnit expresses how much of a functional need one item covers,
// e.g. 750 ml of cleaner.
type EquivalentUnit struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// VendorOffer is a vendor's offer for a single product.
type VendorOffer struct {
	VendorID      string          `json:"vendor_id" db:"vendor_id"`
	VendorName    string          `json:"vendor_name" db:"vendor_name"`
	CostPerItem   decimal.Decimal `json:"cost_per_item" db:"cost_per_item"`
	LeadTimeDays  int             `json:"lead_time_days" db:"lead_time_days"`
	Preferred     bool            `json:"preferred" db:"preferred"`
	SLACompliance *float64        `json:"sla_compliance,omitempty" db:"sla_compliance"`
}

// Product is catalog reference data together with its vendor offers.
type Product struct {
	ID                 string          `json:"id" db:"id"`
	SKU                string          `json:"sku" db:"sku"`
	Name               string          `json:"name" db:"name"`
	Active             bool            `json:"active" db:"active"`
	NeedGroup          string          `json:"need_group,omitempty" db:"need_group"`
	EquivalentUnit     *EquivalentUnit `json:"equivalent_unit,omitempty"`
	SupplyDurationDays *int            `json:"supply_duration_days,omitempty" db:"supply_duration_days"`
	// MinimumRequired marks products that count toward a need group's store minimum (sprayers and the like).
	MinimumRequired bool `json:"minimum_required" db:"minimum_required"`
	// MaxOrderQuantity caps a single order line; 0 means unlimited.
	MaxOrderQuantity int           `json:"max_order_quantity" db:"max_order_quantity"`
	Vendors          []VendorOffer `json:"vendors"`
}

// UsageObservation is one day of consumption for a product at a store.
type UsageObservation struct {
	ProductID           string    `json:"product_id" db:"product_id"`
	StoreID             string    `json:"store_id" db:"store_id"`
	Date                time.Time `json:"date" db:"usage_date"`
	Quantity            float64   `json:"quantity" db:"quantity"`
	SeasonallySensitive bool      `json:"seasonally_sensitive" db:"seasonally_sensitive"`
	EventTag            string    `json:"event_tag,omitempty" db:"event_tag"`
}

// Usage event tags
const (
	EventTagPromo   = "promo"
	EventTagHoliday = "holiday"
	EventTagWeather = "weather"
)

// InventoryLevel is the live stock record for a product at a store.
type InventoryLevel struct {
	ProductID string    `json:"product_id" db:"product_id"`
	StoreID   string    `json:"store_id" db:"store_id"`
	OnHand    int       `json:"on_hand" db:"on_hand"`
	Reserved  int       `json:"reserved" db:"reserved"`
	InTransit int       `json:"in_transit" db:"in_transit"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Available returns on-hand minus reserved quantity.
func (l InventoryLevel) Available() int {
	return l.OnHand - l.Reserved
}

// NeedGroup groups functionally interchangeable products.
type NeedGroup struct {
	ID                string         `json:"id" db:"id"`
	Name              string         `json:"name" db:"name"`
	StoreMinimums     map[string]int `json:"store_minimums"`
	DefaultMinimum    int            `json:"default_minimum" db:"default_minimum"`
	SubstitutionOrder []string       `json:"substitution_order"`
}

// MinimumFor returns the configured minimum quantity of minimum-required
// products for a store.
func (g NeedGroup) MinimumFor(storeID string) int {
	if v, ok := g.StoreMinimums[storeID]; ok {
		return v
	}
	return g.DefaultMinimum
}

// VendorPerformance is historical SLA compliance for a vendor.
type VendorPerformance struct {
	VendorID       string  `json:"vendor_id" db:"vendor_id"`
	ComplianceRate float64 `json:"compliance_rate" db:"compliance_rate"`
	OrdersObserved int     `json:"orders_observed" db:"orders_observed"`
}

// OrderLine is a single line of a system-initiated order.
type OrderLine struct {
	ProductID    string          `json:"product_id" db:"product_id"`
	VendorID     string          `json:"vendor_id" db:"vendor_id"`
	Quantity     int             `json:"quantity" db:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	SuggestionID string          `json:"suggestion_id,omitempty" db:"suggestion_id"`
}

// SystemOrder is the batch handed to the order workflow for one store.
type SystemOrder struct {
	ID        string          `json:"id" db:"id"`
	StoreID   string          `json:"store_id" db:"store_id"`
	JobRunID  string          `json:"job_run_id" db:"job_run_id"`
	Lines     []OrderLine     `json:"lines"`
	Total     decimal.Decimal `json:"total" db:"total"`
	Status    string          `json:"status" db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// OrderStatusPendingApproval is the state every system-initiated order starts in.
const OrderStatusPendingApproval = "pending_approval"
