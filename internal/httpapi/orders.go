package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/order"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateRequest) (*order.Order, error)
	GetOrder(ctx context.Context, id int64) (*order.Order, error)
	ListOrders(ctx context.Context) ([]order.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]order.Order, error)
	ListByStatus(ctx context.Context, status string) ([]order.Order, error)
	ListByUserAndStatus(ctx context.Context, userID int64, status string) ([]order.Order, error)
	ListRecent(ctx context.Context, days int) ([]order.Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*order.Order, error)
	CancelOrder(ctx context.Context, id int64) (*order.Order, error)
}

type OrderHandler struct {
	svc    OrderService
	logger *zap.Logger
}

func NewOrderHandler(svc OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger}
}

func (h *OrderHandler) Routes(r chi.Router) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/recent", h.Recent)
		r.Get("/user/{userId}", h.ByUser)
		r.Get("/status/{status}", h.ByStatus)
		r.Get("/{id}", h.Get)
		r.Put("/{id}/status", h.UpdateStatus)
		r.Post("/{id}/cancel", h.Cancel)
		r.Delete("/{id}", h.Cancel)
	})
}

type orderLineRequest struct {
	ProductID int64 `json:"productId" validate:"required"`
	Quantity  int   `json:"quantity"`
}

type createOrderRequest struct {
	UserID          int64              `json:"userId" validate:"required,gt=0"`
	Items           []orderLineRequest `json:"items" validate:"dive"`
	ShippingAddress string             `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
}

func (req createOrderRequest) toDomain() order.CreateRequest {
	lines := make([]order.LineRequest, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, order.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return order.CreateRequest{
		UserID:          req.UserID,
		Items:           lines,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	}
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	o, err := h.svc.CreateOrder(r.Context(), req.toDomain())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	o, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// List returns every order, narrowed by the optional userId and status query parameters.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")

	var (
		orders []order.Order
		err    error
	)
	switch {
	case q.Get("userId") != "":
		userID, perr := queryInt(r, "userId", 0)
		if perr != nil {
			writeError(w, r, h.logger, perr)
			return
		}
		if status != "" {
			orders, err = h.svc.ListByUserAndStatus(r.Context(), int64(userID), status)
		} else {
			orders, err = h.svc.ListByUser(r.Context(), int64(userID))
		}
	case status != "":
		orders, err = h.svc.ListByStatus(r.Context(), status)
	default:
		orders, err = h.svc.ListOrders(r.Context())
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	orders, err := h.svc.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) ByStatus(w http.ResponseWriter, r *http.Request) {
	orders, err := h.svc.ListByStatus(r.Context(), chi.URLParam(r, "status"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Recent(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	orders, err := h.svc.ListRecent(r.Context(), days)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req updateStatusRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	o, err := h.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Cancel answers DELETE with 204 and POST .../cancel with the cancelled order.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	o, err := h.svc.CancelOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if r.Method == http.MethodDelete {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
