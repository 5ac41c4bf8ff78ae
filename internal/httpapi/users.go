package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/fulfillment-go/internal/user"
)

type UserService interface {
	Register(ctx context.Context, in user.RegisterInput) (user.User, error)
	Get(ctx context.Context, id int64) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	ListActive(ctx context.Context) ([]user.User, error)
	Update(ctx context.Context, id int64, in user.UpdateInput) (user.User, error)
	Delete(ctx context.Context, id int64) error
}

type UserHandler struct {
	svc    UserService
	logger *zap.Logger
}

func NewUserHandler(svc UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{svc: svc, logger: logger}
}

func (h *UserHandler) Routes(r chi.Router) {
	r.Route("/api/users", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/register", h.Register)
		r.Get("/email/{email}", h.ByEmail)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone"`
}

type updateUserRequest struct {
	FullName *string `json:"fullName" validate:"omitnil,min=1"`
	Phone    *string `json:"phone"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.svc.Register(r.Context(), user.RegisterInput{Email: req.Email, FullName: req.FullName, Phone: req.Phone})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) ByEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.GetByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListActive(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req updateUserRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.svc.Update(r.Context(), id, user.UpdateInput{FullName: req.FullName, Phone: req.Phone})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
