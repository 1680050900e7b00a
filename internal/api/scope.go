package api

import (
	"net/http"
)

// Staff tokens carry their clinic; managers act on every clinic.

func scoped(r *http.Request) bool {
	role, _ := r.Context().Value(ctxRole).(string)
	return role != roleManager
}

func (h *Handler) requireClinic(w http.ResponseWriter, r *http.Request, clinicID int64) bool {
	if !scoped(r) {
		return true
	}
	own, ok := r.Context().Value(ctxClinicID).(int64)
	if ok && own == clinicID {
		return true
	}
	respondError(w, http.StatusForbidden, "clinic outside your scope")
	return false
}

func (h *Handler) requireOrderClinic(w http.ResponseWriter, r *http.Request, orderID int64) bool {
	if !scoped(r) {
		return true
	}
	order, err := h.stock.Order(r.Context(), orderID)
	if err != nil {
		h.respondServiceError(w, r, "requireOrderClinic", err)
		return false
	}
	return h.requireClinic(w, r, order.ClinicID)
}

func (h *Handler) requireEventClinic(w http.ResponseWriter, r *http.Request, eventID int64) bool {
	if !scoped(r) {
		return true
	}
	event, err := h.stock.InventoryEvent(r.Context(), eventID)
	if err != nil {
		h.respondServiceError(w, r, "requireEventClinic", err)
		return false
	}
	return h.requireClinic(w, r, event.ClinicID)
}

func (h *Handler) requireTariffClinic(w http.ResponseWriter, r *http.Request, tariffID int64) bool {
	if !scoped(r) {
		return true
	}
	tariff, err := h.stock.GetTariff(r.Context(), tariffID)
	if err != nil {
		h.respondServiceError(w, r, "requireTariffClinic", err)
		return false
	}
	return h.requireClinic(w, r, tariff.ClinicID)
}
