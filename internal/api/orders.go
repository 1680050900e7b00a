package api

import (
	"net/http"
)

// Replenishment order handlers

type orderRequest struct {
	ClinicID  int64  `json:"clinic_id" validate:"required,gt=0"`
	OrderDate string `json:"order_date"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !h.bind(w, r, &req) {
		return
	}
	if !h.requireClinic(w, r, req.ClinicID) {
		return
	}
	date, err := parseDate(req.OrderDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := h.stock.CreateOrder(r.Context(), req.ClinicID, date, currentUser(r))
	if err != nil {
		h.respondServiceError(w, r, "createOrder", err)
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

type orderLineRequest struct {
	ProductTariffID int64 `json:"product_tariff_id" validate:"required,gt=0"`
	QuantityOrdered int64 `json:"quantity_ordered"`
}

// addOrderLine leaves quantity checks to the service so that zero and
// negative quantities surface as invalid quantity errors.
func (h *Handler) addOrderLine(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireOrderClinic(w, r, orderID) {
		return
	}
	var req orderLineRequest
	if !h.bind(w, r, &req) {
		return
	}
	line, err := h.stock.AddLine(r.Context(), orderID, req.ProductTariffID, req.QuantityOrdered, currentUser(r))
	if err != nil {
		h.respondServiceError(w, r, "addOrderLine", err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"line":               line,
		"resulting_quantity": line.ResultingQuantity(),
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireOrderClinic(w, r, orderID) {
		return
	}
	order, err := h.stock.GetOrder(r.Context(), orderID)
	if err != nil {
		h.respondServiceError(w, r, "getOrder", err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) closeOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireOrderClinic(w, r, orderID) {
		return
	}
	order, err := h.stock.CloseOrder(r.Context(), orderID)
	if err != nil {
		h.respondServiceError(w, r, "closeOrder", err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) listOrdersByClinic(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireClinic(w, r, clinicID) {
		return
	}
	orders, err := h.stock.ListOrdersByClinic(r.Context(), clinicID)
	if err != nil {
		h.respondServiceError(w, r, "listOrdersByClinic", err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}
