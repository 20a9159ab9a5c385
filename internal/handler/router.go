package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/shohjahonshahriyev-cloud/pulchi/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware административного API.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Health)

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/stats", h.GetStats)
		r.Get("/users", h.GetUsers)
		r.Post("/users/{id}/balance", h.AdjustBalance)
		r.Get("/users/{id}/withdrawals", h.GetUserWithdrawals)

		r.Get("/withdrawals/pending", h.GetPendingWithdrawals)
		r.Get("/withdrawals/{id}", h.GetWithdrawal)
		r.Post("/withdrawals/{id}/approve", h.ApproveWithdrawal)
		r.Post("/withdrawals/{id}/reject", h.RejectWithdrawal)

		r.Post("/sweep", h.Sweep)
		r.Post("/broadcast", h.Broadcast)

		r.Get("/channels", h.GetChannels)
		r.Post("/channels", h.AddChannel)
		r.Delete("/channels/{channel}", h.RemoveChannel)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
