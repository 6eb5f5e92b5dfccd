package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenishment-engine/internal/clock"
	"github.com/andresuchdata/replenishment-engine/internal/domain"
	"github.com/andresuchdata/replenishment-engine/internal/replenishment"
)

type memCatalog struct {
	stores   []domain.Store
	products []domain.Product
	groups   []domain.NeedGroup
	err      error
}

func (c *memCatalog) ActiveStores(context.Context) ([]domain.Store, error) {
	return c.stores, c.err
}

func (c *memCatalog) ActiveProducts(context.Context) ([]domain.Product, error) {
	return c.products, c.err
}

func (c *memCatalog) NeedGroups(context.Context) ([]domain.NeedGroup, error) {
	return c.groups, c.err
}

type memInventory struct{}

func (memInventory) Snapshot(_ context.Context, storeID string) (map[string]domain.InventoryLevel, error) {
	return map[string]domain.InventoryLevel{}, nil
}

type memUsage struct {
	mu    sync.Mutex
	since []time.Time
}

func (u *memUsage) History(_ context.Context, storeID string, since time.Time) (map[string][]domain.UsageObservation, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.since = append(u.since, since)
	return map[string][]domain.UsageObservation{}, nil
}

type memEnvironment struct {
	weather *domain.Weather
	failAll bool
}

func (e *memEnvironment) Weather(context.Context, string, time.Time) (*domain.Weather, error) {
	if e.failAll {
		return nil, errors.New("weather service down")
	}
	return e.weather, nil
}

func (e *memEnvironment) Holidays(context.Context, time.Time, time.Time) ([]domain.Holiday, error) {
	if e.failAll {
		return nil, errors.New("calendar down")
	}
	return nil, nil
}

func (e *memEnvironment) Promotions(context.Context, string, time.Time) ([]domain.Promotion, error) {
	if e.failAll {
		return nil, errors.New("promotions down")
	}
	return nil, nil
}

func (e *memEnvironment) StoreEvents(context.Context, string, time.Time) ([]domain.StoreEvent, error) {
	if e.failAll {
		return nil, errors.New("events down")
	}
	return nil, nil
}

type memOrders struct {
	mu     sync.Mutex
	orders []domain.SystemOrder
	fail   map[string]bool
}

func (o *memOrders) CreateSystemOrder(_ context.Context, order *domain.SystemOrder) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail[order.StoreID] {
		return "", errors.New("order workflow unavailable")
	}
	order.ID = fmt.Sprintf("order-%s", order.StoreID)
	order.Status = domain.OrderStatusPendingApproval
	o.orders = append(o.orders, *order)
	return order.ID, nil
}

func (o *memOrders) byStore() map[string]domain.SystemOrder {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := map[string]domain.SystemOrder{}
	for _, ord := range o.orders {
		out[ord.StoreID] = ord
	}
	return out
}

type memSuggestions struct {
	mu    sync.Mutex
	saved []domain.ReplenishmentSuggestion
}

func (s *memSuggestions) SaveBatch(_ context.Context, batch []domain.ReplenishmentSuggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, batch...)
	return nil
}

func (s *memSuggestions) ListActive(_ context.Context, storeID string, now time.Time) ([]domain.ReplenishmentSuggestion, error) {
	return nil, nil
}

type memTriggers struct {
	mu        sync.Mutex
	triggers  []domain.ReplenishmentTrigger
	marks     map[string]int
	failMarks int
}

func newMemTriggers(ts ...domain.ReplenishmentTrigger) *memTriggers {
	return &memTriggers{triggers: ts, marks: map[string]int{}}
}

func (m *memTriggers) Create(_ context.Context, t *domain.ReplenishmentTrigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = fmt.Sprintf("t%d", len(m.triggers)+1)
	}
	m.triggers = append(m.triggers, *t)
	return nil
}

func (m *memTriggers) Pending(context.Context, int) ([]domain.ReplenishmentTrigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ReplenishmentTrigger
	for _, t := range m.triggers {
		if !t.Processed {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTriggers) MarkProcessed(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMarks > 0 {
		m.failMarks--
		return false, errors.New("connection reset")
	}
	for i := range m.triggers {
		if m.triggers[i].ID == id && !m.triggers[i].Processed {
			m.triggers[i].Processed = true
			m.triggers[i].ProcessedAt = &at
			m.marks[id]++
			return true, nil
		}
	}
	return false, nil
}

type memResults struct {
	mu      sync.Mutex
	results []domain.ScheduledJobResult
}

func (r *memResults) Save(_ context.Context, res *domain.ScheduledJobResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, *res)
	return nil
}

func (r *memResults) List(_ context.Context, jobType domain.JobType, limit int) ([]domain.ScheduledJobResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ScheduledJobResult
	for _, res := range r.results {
		if jobType == "" || res.JobType == jobType {
			out = append(out, res)
		}
	}
	return out, nil
}

func (r *memResults) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

// stubCalculator emits one suggestion of 10 units per product and can be
// told to fail, panic or block for particular stores.
type stubCalculator struct {
	mu      sync.Mutex
	fail    map[string]error
	panics  map[string]bool
	skip    map[string]bool
	inputs  map[string]replenishment.StoreInput
	options []replenishment.Options

	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newStubCalculator() *stubCalculator {
	return &stubCalculator{
		fail:   map[string]error{},
		panics: map[string]bool{},
		skip:   map[string]bool{},
		inputs: map[string]replenishment.StoreInput{},
	}
}

// blockFirst makes the first call wait until release is closed.
func (c *stubCalculator) blockFirst() (entered <-chan struct{}, release chan struct{}) {
	c.gate = make(chan struct{})
	c.entered = make(chan struct{})
	return c.entered, c.gate
}

func (c *stubCalculator) CalculateStore(ctx context.Context, in replenishment.StoreInput, opts replenishment.Options) (*replenishment.StoreResult, error) {
	if c.gate != nil {
		first := false
		c.once.Do(func() { first = true })
		if first {
			close(c.entered)
			<-c.gate
		}
	}

	c.mu.Lock()
	c.inputs[in.Store.ID] = in
	c.options = append(c.options, opts)
	fail, panics := c.fail[in.Store.ID], c.panics[in.Store.ID]
	c.mu.Unlock()

	if panics {
		panic("index out of range")
	}
	if fail != nil {
		return &replenishment.StoreResult{StoreID: in.Store.ID, ProductsAnalyzed: 1}, &replenishment.ProductError{ProductID: in.Products[0].ID, Err: fail}
	}

	res := &replenishment.StoreResult{StoreID: in.Store.ID}
	for _, p := range in.Products {
		res.ProductsAnalyzed++
		if c.skip[p.ID] {
			continue
		}
		res.Forecasts = append(res.Forecasts, &domain.Forecast{ProductID: p.ID, StoreID: in.Store.ID, Confidence: 0.8, Method: domain.ForecastMethodEnsemble})
		res.Suggestions = append(res.Suggestions, domain.ReplenishmentSuggestion{
			ID:             fmt.Sprintf("%s-%s", in.Store.ID, p.ID),
			JobRunID:       opts.JobRunID,
			ProductID:      p.ID,
			StoreID:        in.Store.ID,
			VendorID:       "v1",
			QuantityNeeded: 10,
			UnitCost:       decimal.NewFromInt(2),
			EstimatedCost:  decimal.NewFromInt(20),
			Priority:       domain.PriorityMedium,
		})
	}
	return res, nil
}

func (c *stubCalculator) input(storeID string) (replenishment.StoreInput, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	in, ok := c.inputs[storeID]
	return in, ok
}

func (c *stubCalculator) storesSeen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var ids []string
	for id := range c.inputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type fixture struct {
	catalog     *memCatalog
	usage       *memUsage
	env         *memEnvironment
	orders      *memOrders
	suggestions *memSuggestions
	triggers    *memTriggers
	results     *memResults
	calc        *stubCalculator
	clock       *clock.FakeClock
}

func newFixture(storeIDs ...string) *fixture {
	f := &fixture{
		catalog: &memCatalog{
			products: []domain.Product{
				{ID: "p1", Active: true},
				{ID: "p2", Active: true},
				{ID: "p3", Active: true},
			},
		},
		usage:       &memUsage{},
		env:         &memEnvironment{},
		orders:      &memOrders{fail: map[string]bool{}},
		suggestions: &memSuggestions{},
		triggers:    newMemTriggers(),
		results:     &memResults{},
		calc:        newStubCalculator(),
		clock:       clock.NewFakeClock(time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC)),
	}
	for _, id := range storeIDs {
		f.catalog.stores = append(f.catalog.stores, domain.Store{ID: id, Active: true, Tier: domain.StoreTierStandard})
	}
	return f
}

func (f *fixture) deps() Dependencies {
	return Dependencies{
		Catalog:     f.catalog,
		Inventory:   memInventory{},
		Usage:       f.usage,
		Environment: f.env,
		Orders:      f.orders,
		Suggestions: f.suggestions,
		Triggers:    f.triggers,
		Results:     f.results,
		Calculator:  f.calc,
		Clock:       f.clock,
	}
}

func (f *fixture) runner(cfg Config) *Runner {
	return NewRunner(f.deps(), cfg)
}
