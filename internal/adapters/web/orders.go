package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"order-engine/internal/app"
	"order-engine/internal/core"

	"github.com/go-chi/chi/v5"
)

func urlParamInt(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeErrorKind(w, r, "invalid request body: "+err.Error(), core.KindValidation, http.StatusBadRequest)
		return false
	}
	return true
}

// createOrder handles POST /api/orders.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req app.CreateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.svc.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(result)
}

// replaceOrderLines handles PUT /api/orders/{id}/lines.
func (h *Handler) replaceOrderLines(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(r, "id")
	if !ok {
		writeErrorKind(w, r, "invalid order id", core.KindValidation, http.StatusBadRequest)
		return
	}
	var req app.ReplaceLinesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.svc.ReplaceOrderLines(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// deleteOrder handles DELETE /api/orders/{id}.
func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(r, "id")
	if !ok {
		writeErrorKind(w, r, "invalid order id", core.KindValidation, http.StatusBadRequest)
		return
	}
	result, err := h.svc.DeleteOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// getOrder handles GET /api/orders/{id}.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt(r, "id")
	if !ok {
		writeErrorKind(w, r, "invalid order id", core.KindValidation, http.StatusBadRequest)
		return
	}
	result, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// listOrders handles GET /api/orders with an optional client_id filter.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	var clientID *int
	if v := r.URL.Query().Get("client_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			writeErrorKind(w, r, "invalid client_id filter", core.KindValidation, http.StatusBadRequest)
			return
		}
		clientID = &id
	}
	result, err := h.svc.ListOrders(r.Context(), clientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// nextOrderNumber handles GET /api/orders/next-number/{year}.
func (h *Handler) nextOrderNumber(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1900 || year > 9999 {
		writeErrorKind(w, r, "invalid year", core.KindValidation, http.StatusBadRequest)
		return
	}
	result, err := h.svc.NextOrderNumber(r.Context(), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// listDiscountTiers handles GET /api/catalog/tiers.
func (h *Handler) listDiscountTiers(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListDiscountTiers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// listOrderStatuses handles GET /api/catalog/statuses.
func (h *Handler) listOrderStatuses(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListOrderStatuses(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, result)
}
