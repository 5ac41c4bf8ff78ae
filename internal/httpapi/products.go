package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/catalog"
)

type ProductHandler struct {
	svc    catalog.ProductService
	logger *zap.Logger
}

func NewProductHandler(svc catalog.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{svc: svc, logger: logger}
}

func (h *ProductHandler) Routes(r chi.Router) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/category/{category}", h.ByCategory)
		r.Get("/search", h.Search)
		r.Get("/low-stock", h.LowStock)
		r.Post("/stock", h.AdjustStock)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/reserve", h.Reserve)
		r.Post("/{id}/release", h.Release)
	})
}

type createProductRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"imageUrl" validate:"omitempty,url"`
}

type updateProductRequest struct {
	Name        *string          `json:"name" validate:"omitnil,min=1"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" validate:"omitnil,gte=0"`
	Category    *string          `json:"category"`
	ImageURL    *string          `json:"imageUrl" validate:"omitempty,url"`
	Active      *bool            `json:"active"`
}

type stockRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int   `json:"quantity"`
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.svc.Create(r.Context(), catalog.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListActive(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) ByCategory(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListByCategory(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.Search(r.Context(), r.URL.Query().Get("searchTerm"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold, err := queryInt(r, "threshold", catalog.DefaultLowStockThreshold)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	products, err := h.svc.ListLowStock(r.Context(), threshold)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req updateProductRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.svc.Update(r.Context(), id, catalog.UpdateInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		ImageURL:    req.ImageURL,
		Active:      req.Active,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock applies quantity as a signed delta to the product's stock.
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p, err := h.svc.AdjustStock(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Reserve answers 200 with reserved=false when stock is short; callers decide what that means.
func (h *ProductHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	id, qty, ok := h.stockParams(w, r)
	if !ok {
		return
	}

	reserved, err := h.svc.Reserve(r.Context(), id, qty)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reserved": reserved})
}

func (h *ProductHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, qty, ok := h.stockParams(w, r)
	if !ok {
		return
	}

	if err := h.svc.Release(r.Context(), id, qty); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"released": true})
}

func (h *ProductHandler) stockParams(w http.ResponseWriter, r *http.Request) (int64, int, bool) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return 0, 0, false
	}
	qty, err := queryInt(r, "quantity", 0)
	if err != nil {
		writeError(w, r, h.logger, err)
		return 0, 0, false
	}
	return id, qty, true
}
