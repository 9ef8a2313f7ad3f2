package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/camarena/rifamaster/internal/observability"
	"github.com/camarena/rifamaster/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	if rl != nil {
		r.Use(RateLimitMiddleware(rl))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/board", h.GetBoard)
		r.Put("/board", h.ImportBoard)
		r.Get("/board/export", h.ExportBoard)
		r.Post("/board/tickets/{id}/toggle", h.ToggleTicket)
		r.Post("/board/tickets/{id}/payment", h.TogglePayment)
		r.Delete("/board/tickets/{id}", h.RevokeTicket)
		r.Delete("/owners/{name}/tickets", h.RevokeOwner)
		r.Post("/board/selection/clear", h.ClearSelection)
		r.Post("/board/swap/{id}", h.StartSwap)
		r.Post("/board/bulk-add", h.StartBulkAdd)
		r.Post("/board/mode/exit", h.ExitMode)
		r.Post("/board/reset", h.ResetBoard)
		r.With(IdempotencyKeyMiddleware).Post("/sales/confirm", h.ConfirmSale)
		r.Get("/report", h.Report)
		r.Get("/participants", h.Participants)
		r.Put("/price", h.SetPrice)
		r.Post("/assistant", h.AskAssistant)
		r.Get("/healthz", h.Healthz)
		r.Get("/readyz", h.Readyz)
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
