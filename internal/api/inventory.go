package api

import (
	"net/http"
)

// Inventory count handlers

type inventoryEventRequest struct {
	ClinicID  int64  `json:"clinic_id" validate:"required,gt=0"`
	CountDate string `json:"count_date"`
}

func (h *Handler) startInventoryEvent(w http.ResponseWriter, r *http.Request) {
	var req inventoryEventRequest
	if !h.bind(w, r, &req) {
		return
	}
	if !h.requireClinic(w, r, req.ClinicID) {
		return
	}
	date, err := parseDate(req.CountDate)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	event, err := h.stock.StartInventoryEvent(r.Context(), req.ClinicID, date, currentUser(r))
	if err != nil {
		h.respondServiceError(w, r, "startInventoryEvent", err)
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

type inventoryLineRequest struct {
	ProductTariffID int64  `json:"product_tariff_id" validate:"required,gt=0"`
	Actual          *int64 `json:"actual" validate:"required"`
}

func (h *Handler) recordInventoryLine(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireEventClinic(w, r, eventID) {
		return
	}
	var req inventoryLineRequest
	if !h.bind(w, r, &req) {
		return
	}
	line, err := h.stock.RecordInventoryLine(r.Context(), eventID, req.ProductTariffID, *req.Actual)
	if err != nil {
		h.respondServiceError(w, r, "recordInventoryLine", err)
		return
	}
	respondJSON(w, http.StatusCreated, line)
}

func (h *Handler) getInventoryEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireEventClinic(w, r, eventID) {
		return
	}
	event, err := h.stock.GetInventoryEvent(r.Context(), eventID)
	if err != nil {
		h.respondServiceError(w, r, "getInventoryEvent", err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

func (h *Handler) listAnomalies(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireEventClinic(w, r, eventID) {
		return
	}
	anomalies, err := h.stock.ListAnomaliesByEvent(r.Context(), eventID)
	if err != nil {
		h.respondServiceError(w, r, "listAnomalies", err)
		return
	}
	respondJSON(w, http.StatusOK, anomalies)
}

func (h *Handler) closeInventoryEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireEventClinic(w, r, eventID) {
		return
	}
	event, err := h.stock.CloseInventoryEvent(r.Context(), eventID)
	if err != nil {
		h.respondServiceError(w, r, "closeInventoryEvent", err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

func (h *Handler) listInventoryEventsByClinic(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireClinic(w, r, clinicID) {
		return
	}
	events, err := h.stock.ListInventoryEventsByClinic(r.Context(), clinicID)
	if err != nil {
		h.respondServiceError(w, r, "listInventoryEventsByClinic", err)
		return
	}
	respondJSON(w, http.StatusOK, events)
}
