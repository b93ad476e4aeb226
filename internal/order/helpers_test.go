package order_test

import (
	"context"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/taxbridge/internal/cart"
	"github.com/noah-isme/taxbridge/internal/order"
	"github.com/noah-isme/taxbridge/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(id, identifier, unit string, qty int, payload cart.Payload) order.Line {
	return order.Line{
		ID:         id,
		Identifier: identifier,
		Type:       cart.TypeProduct,
		Quantity:   qty,
		Payload:    payload,
		Price:      pricing.NewPrice(dec(unit), qty),
	}
}

func childTax(tax, rate, parent string) cart.Payload {
	return cart.Payload{cart.KeyChildTax: cart.LineTax{Tax: dec(tax), Rate: dec(rate), Quantity: 1, BundleParentID: parent}}
}

func standaloneTax(tax, rate string) cart.Payload {
	return cart.Payload{cart.KeyStandaloneTax: cart.LineTax{Tax: dec(tax), Rate: dec(rate), Quantity: 1}}
}

// bundleOrder is a placed order with one bundle, its two children and one
// standalone product.
func bundleOrder() []order.Line {
	parent := line("ol-b", "b1", "30.00", 1, cart.Payload{cart.KeyBundleContent: true, cart.KeyProductNumber: "B"})
	c1 := line("ol-c1", "c1", "10.00", 1, childTax("1.00", "10", "b1"))
	c1.ParentID = "ol-b"
	c2 := line("ol-c2", "c2", "20.00", 1, childTax("2.00", "10", "b1"))
	c2.ParentID = "ol-b"
	return []order.Line{
		parent,
		c1,
		c2,
		line("ol-s", "s1", "100.00", 1, standaloneTax("19.00", "19")),
		line("ol-x", "x1", "5.00", 1, nil),
	}
}

type memRepo struct {
	mu        sync.Mutex
	lines     map[string][]order.Line
	persisted map[string]bool
	applied   map[string][]order.PriceUpdate
	writes    int
	onApply   func()
}

func newMemRepo() *memRepo {
	return &memRepo{
		lines:     map[string][]order.Line{},
		persisted: map[string]bool{},
		applied:   map[string][]order.PriceUpdate{},
	}
}

func (m *memRepo) SaveLines(_ context.Context, orderID string, lines []order.Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines[orderID] = append([]order.Line(nil), lines...)
	return nil
}

func (m *memRepo) Lines(_ context.Context, orderID string) ([]order.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines, ok := m.lines[orderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	return append([]order.Line(nil), lines...), nil
}

func (m *memRepo) ApplyPrices(_ context.Context, orderID string, updates []order.PriceUpdate) error {
	if m.onApply != nil {
		m.onApply()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.persisted[orderID] {
		return order.ErrAlreadyPersisted
	}
	m.persisted[orderID] = true
	m.applied[orderID] = updates
	m.writes++
	for _, u := range updates {
		for i := range m.lines[orderID] {
			if m.lines[orderID][i].ID == u.LineID {
				m.lines[orderID][i].Price = u.Price
			}
		}
	}
	return nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	ids   map[string]bool
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ids == nil {
		q.ids = map[string]bool{}
	}
	id := string(task.Payload())
	if q.ids[id] {
		return nil, asynq.ErrTaskIDConflict
	}
	q.ids[id] = true
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}
