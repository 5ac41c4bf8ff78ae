package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter builds the common chi stack every service shares and lets mount
// add the service's own routes.
func NewRouter(log *zap.Logger, mount func(r chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(CorrelationID)
	r.Use(Recover(log))
	r.Use(RequestLogger(log))

	r.Get("/health", Health)
	r.Handle("/metrics", promhttp.Handler())

	mount(r)
	return r
}

func Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
