package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/analytics"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/notification"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/user"
)

func nopLogger() *zap.Logger { return zap.NewNop() }

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func record(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func serve(t *testing.T, mount func(r chi.Router), method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	NewRouter(zap.NewNop(), mount).ServeHTTP(rec, req)
	return rec
}

// fakeOrders records the last call and answers with its configured values.
type fakeOrders struct {
	order  *order.Order
	orders []order.Order
	err    error

	called  string
	created order.CreateRequest
	userID  int64
	status  string
	days    int
}

func (f *fakeOrders) CreateOrder(_ context.Context, req order.CreateRequest) (*order.Order, error) {
	f.called, f.created = "CreateOrder", req
	return f.order, f.err
}

func (f *fakeOrders) GetOrder(_ context.Context, _ int64) (*order.Order, error) {
	f.called = "GetOrder"
	return f.order, f.err
}

func (f *fakeOrders) ListOrders(context.Context) ([]order.Order, error) {
	f.called = "ListOrders"
	return f.orders, f.err
}

func (f *fakeOrders) ListByUser(_ context.Context, userID int64) ([]order.Order, error) {
	f.called, f.userID = "ListByUser", userID
	return f.orders, f.err
}

func (f *fakeOrders) ListByStatus(_ context.Context, status string) ([]order.Order, error) {
	f.called, f.status = "ListByStatus", status
	return f.orders, f.err
}

func (f *fakeOrders) ListByUserAndStatus(_ context.Context, userID int64, status string) ([]order.Order, error) {
	f.called, f.userID, f.status = "ListByUserAndStatus", userID, status
	return f.orders, f.err
}

func (f *fakeOrders) ListRecent(_ context.Context, days int) ([]order.Order, error) {
	f.called, f.days = "ListRecent", days
	return f.orders, f.err
}

func (f *fakeOrders) UpdateStatus(_ context.Context, _ int64, status string) (*order.Order, error) {
	f.called, f.status = "UpdateStatus", status
	return f.order, f.err
}

func (f *fakeOrders) CancelOrder(_ context.Context, _ int64) (*order.Order, error) {
	f.called = "CancelOrder"
	return f.order, f.err
}

// fakeProducts implements catalog.ProductService over a single product.
type fakeProducts struct {
	catalog.ProductService
	product   catalog.Product
	err       error
	reserved  bool
	threshold int
	delta     int
	qty       int
	update    catalog.UpdateInput
}

func (f *fakeProducts) Get(_ context.Context, id int64) (catalog.Product, error) {
	if f.err != nil {
		return catalog.Product{}, f.err
	}
	if id != f.product.ID {
		return catalog.Product{}, apperr.NotFound("PRODUCT_NOT_FOUND", "Product not found: %d", id)
	}
	return f.product, nil
}

func (f *fakeProducts) ListLowStock(_ context.Context, threshold int) ([]catalog.Product, error) {
	f.threshold = threshold
	return []catalog.Product{f.product}, f.err
}

func (f *fakeProducts) Create(_ context.Context, in catalog.CreateInput) (catalog.Product, error) {
	return catalog.Product{ID: 1, Name: in.Name, Price: in.Price, Stock: in.Stock, Active: true}, f.err
}

func (f *fakeProducts) Update(_ context.Context, _ int64, in catalog.UpdateInput) (catalog.Product, error) {
	f.update = in
	return f.product, f.err
}

func (f *fakeProducts) Delete(context.Context, int64) error { return f.err }

func (f *fakeProducts) AdjustStock(_ context.Context, _ int64, delta int) (catalog.Product, error) {
	f.delta = delta
	return f.product, f.err
}

func (f *fakeProducts) Reserve(_ context.Context, _ int64, qty int) (bool, error) {
	f.qty = qty
	return f.reserved, f.err
}

func (f *fakeProducts) Release(_ context.Context, _ int64, qty int) error {
	f.qty = qty
	return f.err
}

type fakeUsers struct {
	registered user.RegisterInput
	err        error
}

func (f *fakeUsers) Register(_ context.Context, in user.RegisterInput) (user.User, error) {
	f.registered = in
	return user.User{ID: 7, Email: in.Email, FullName: in.FullName, Active: true}, f.err
}

func (f *fakeUsers) Get(_ context.Context, id int64) (user.User, error) {
	return user.User{ID: id}, f.err
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (user.User, error) {
	return user.User{ID: 7, Email: email}, f.err
}

func (f *fakeUsers) ListActive(context.Context) ([]user.User, error) { return []user.User{}, f.err }

func (f *fakeUsers) Update(_ context.Context, id int64, _ user.UpdateInput) (user.User, error) {
	return user.User{ID: id}, f.err
}

func (f *fakeUsers) Delete(context.Context, int64) error { return f.err }

type fakeAnalytics struct {
	summary analytics.Summary
	hours   int
	typ     string
	err     error
}

func (f *fakeAnalytics) Summary(context.Context) (analytics.Summary, error) { return f.summary, f.err }

func (f *fakeAnalytics) RebuildSummary(context.Context) (analytics.Summary, error) {
	return f.summary, f.err
}

func (f *fakeAnalytics) RecentEvents(_ context.Context, hours int) ([]analytics.Event, error) {
	f.hours = hours
	return []analytics.Event{}, f.err
}

func (f *fakeAnalytics) EventsByType(_ context.Context, t string) ([]analytics.Event, error) {
	f.typ = t
	return []analytics.Event{}, f.err
}

func (f *fakeAnalytics) EventsByUser(context.Context, int64) ([]analytics.Event, error) {
	return []analytics.Event{}, f.err
}

type fakeNotifications struct {
	limit  int
	userID int64
}

func (f *fakeNotifications) ForUser(_ context.Context, userID int64) ([]notification.Notification, error) {
	f.userID = userID
	return []notification.Notification{{ID: 1, UserID: userID, Type: notification.TypeEmail}}, nil
}

func (f *fakeNotifications) Recent(_ context.Context, limit int) ([]notification.Notification, error) {
	f.limit = limit
	return []notification.Notification{}, nil
}
