// Package inventory is the order service's HTTP client for the product
// service's stock endpoints.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/logger"
)

const HeaderCorrelationID = "X-Correlation-Id"

// Product is the inventory record as seen by the order service.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// StatusError is a non-2xx answer from the product service.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

type Option func(*Client)

// WithBreaker wraps every call in a circuit breaker. Only transport errors and
// 5xx answers count as failures.
func WithBreaker(settings gobreaker.Settings) Option {
	return func(c *Client) {
		if settings.IsSuccessful == nil {
			settings.IsSuccessful = func(err error) bool {
				var se *StatusError
				return err == nil || (errors.As(err, &se) && se.Code < http.StatusInternalServerError)
			}
		}
		c.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

// DefaultBreakerSettings trips after five consecutive failures and probes again after 30s.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "inventory",
		Timeout:     30 * time.Second,
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid inventory base url %q: %w", baseURL, err)
	}
	c := &Client{baseURL: u, http: &http.Client{Timeout: timeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := c.call(ctx, http.MethodGet, productPath(id), "", &p)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return Product{}, apperr.Wrap(apperr.KindNotFound, "PRODUCT_NOT_FOUND", err, "Product not found: %d", id)
		}
		return Product{}, err
	}
	return p, nil
}

// Reserve asks the product service to take qty units out of stock.
// It reports false when stock is insufficient.
func (c *Client) Reserve(ctx context.Context, id int64, qty int) (bool, error) {
	var out struct {
		Reserved bool `json:"reserved"`
	}
	if err := c.call(ctx, http.MethodPost, productPath(id)+"/reserve", quantityQuery(qty), &out); err != nil {
		return false, err
	}
	return out.Reserved, nil
}

// Release puts qty units back into stock.
func (c *Client) Release(ctx context.Context, id int64, qty int) error {
	return c.call(ctx, http.MethodPost, productPath(id)+"/release", quantityQuery(qty), nil)
}

func (c *Client) call(ctx context.Context, method, path, rawQuery string, out any) error {
	if c.breaker == nil {
		return c.do(ctx, method, path, rawQuery, out)
	}
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.do(ctx, method, path, rawQuery, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Wrap(apperr.KindUnavailable, "INVENTORY_UNAVAILABLE", err, "inventory service unavailable")
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path, rawQuery string, out any) error {
	u := c.baseURL.JoinPath(path)
	u.RawQuery = rawQuery

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if cid := logger.CorrelationID(ctx); cid != "" {
		req.Header.Set(HeaderCorrelationID, cid)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func productPath(id int64) string {
	return "/api/products/" + strconv.FormatInt(id, 10)
}

func quantityQuery(qty int) string {
	return url.Values{"quantity": []string{strconv.Itoa(qty)}}.Encode()
}
