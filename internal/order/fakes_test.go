package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/inventory"
)

// fakeInventory is an in-memory product service.
type fakeInventory struct {
	mu          sync.Mutex
	products    map[int64]inventory.Product
	lookupErr   error
	reserveErr  map[int64]error
	releaseErr  error
	reserveLog  []int64
	releaseLog  []int64
	lookupCalls int
}

func newFakeInventory(products ...inventory.Product) *fakeInventory {
	f := &fakeInventory{products: map[int64]inventory.Product{}, reserveErr: map[int64]error{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func product(id int64, name, price string, stock int) inventory.Product {
	return inventory.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: stock}
}

func (f *fakeInventory) GetProduct(_ context.Context, id int64) (inventory.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++
	if f.lookupErr != nil {
		return inventory.Product{}, f.lookupErr
	}
	p, ok := f.products[id]
	if !ok {
		return inventory.Product{}, apperr.NotFound("PRODUCT_NOT_FOUND", "Product not found: %d", id)
	}
	return p, nil
}

func (f *fakeInventory) Reserve(_ context.Context, id int64, qty int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reserveErr[id]; err != nil {
		return false, err
	}
	p, ok := f.products[id]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	f.products[id] = p
	f.reserveLog = append(f.reserveLog, id)
	return true, nil
}

func (f *fakeInventory) Release(_ context.Context, id int64, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releaseLog = append(f.releaseLog, id)
	if f.releaseErr != nil {
		return f.releaseErr
	}
	p := f.products[id]
	p.Stock += qty
	f.products[id] = p
	return nil
}

func (f *fakeInventory) stock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

// fakeRepo stores orders in memory and records outbox messages.
type fakeRepo struct {
	mu        sync.Mutex
	nextID    int64
	orders    map[int64]Order
	outbox    []events.Outgoing
	createErr error
	saveErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: map[int64]Order{}}
}

func (f *fakeRepo) Create(_ context.Context, o *Order, emit EmitFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	o.ID = f.nextID
	if emit != nil {
		msgs, err := emit(o)
		if err != nil {
			return err
		}
		f.outbox = append(f.outbox, msgs...)
	}
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeRepo) Save(_ context.Context, o *Order, emit EmitFunc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if _, ok := f.orders[o.ID]; !ok {
		return notFound(o.ID)
	}
	if emit != nil {
		msgs, err := emit(o)
		if err != nil {
			return err
		}
		f.outbox = append(f.outbox, msgs...)
	}
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, notFound(id)
	}
	return &o, nil
}

func (f *fakeRepo) all(match func(Order) bool) []Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Order{}
	for _, o := range f.orders {
		if match(o) {
			out = append(out, o)
		}
	}
	return out
}

func (f *fakeRepo) ListAll(context.Context) ([]Order, error) {
	return f.all(func(Order) bool { return true }), nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID int64) ([]Order, error) {
	return f.all(func(o Order) bool { return o.UserID == userID }), nil
}

func (f *fakeRepo) ListByStatus(_ context.Context, st Status) ([]Order, error) {
	return f.all(func(o Order) bool { return o.Status == st }), nil
}

func (f *fakeRepo) ListByUserAndStatus(_ context.Context, userID int64, st Status) ([]Order, error) {
	return f.all(func(o Order) bool { return o.UserID == userID && o.Status == st }), nil
}

func (f *fakeRepo) ListCreatedSince(context.Context, time.Time) ([]Order, error) {
	return f.all(func(Order) bool { return true }), nil
}

// fakeSender records published messages.
type fakeSender struct {
	mu   sync.Mutex
	sent []events.Outgoing
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg events.Outgoing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) routingKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		keys = append(keys, m.RoutingKey)
	}
	return keys
}

var errBroker = errors.New("broker unavailable")
