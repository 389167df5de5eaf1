package web

import (
	"net/http"

	"order-engine/internal/app"

	"github.com/go-chi/chi/v5"
)

const maxRequestBody = 1 << 20 // order payloads are small; 1 MiB is generous

// Handler holds the application service and the chi router.
type Handler struct {
	svc    app.Service
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.Service, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(maxRequestBody))

	r.Get("/api/health", h.health)

	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/next-number/{year}", h.nextOrderNumber)
		r.Get("/{id}", h.getOrder)
		r.Put("/{id}/lines", h.replaceOrderLines)
		r.Delete("/{id}", h.deleteOrder)
	})

	r.Route("/api/catalog", func(r chi.Router) {
		r.Get("/tiers", h.listDiscountTiers)
		r.Get("/statuses", h.listOrderStatuses)
	})

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
