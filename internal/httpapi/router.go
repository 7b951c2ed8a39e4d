package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter assembles the REST surface.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ok", nil) })
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) { writeSuccess(w, http.StatusOK, "ready", nil) })

	r.Route("/v1", func(r chi.Router) {
		r.Post("/spend", handler.recordSpend)
		r.Post("/transactions", handler.recordTransaction)
		r.Get("/price", handler.calculatePrice)
		r.Get("/multiplier", handler.currentMultiplier)
		r.Get("/customers/{email}/discount", handler.customerDiscount)
		r.Get("/adjustments", handler.listAdjustments)
		r.Get("/config", handler.effectiveConfig)
	})

	return r
}
