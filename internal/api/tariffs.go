package api

import (
	"net/http"

	"github.com/Bando358/ecmis-sub006/internal/stock"
)

// Tariff and ledger handlers

type tariffRequest struct {
	ClinicID        int64 `json:"clinic_id" validate:"required,gt=0"`
	ProductID       int64 `json:"product_id" validate:"required,gt=0"`
	UnitPrice       int64 `json:"unit_price"`
	OpeningQuantity int64 `json:"opening_quantity"`
}

func (h *Handler) createTariff(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, roleManager) {
		return
	}
	var req tariffRequest
	if !h.bind(w, r, &req) {
		return
	}
	tariff, err := h.stock.CreateTariff(r.Context(), stock.NewTariff{
		ClinicID:        req.ClinicID,
		ProductID:       req.ProductID,
		UnitPrice:       req.UnitPrice,
		OpeningQuantity: req.OpeningQuantity,
	})
	if err != nil {
		h.respondServiceError(w, r, "createTariff", err)
		return
	}
	respondJSON(w, http.StatusCreated, tariff)
}

func (h *Handler) getTariff(w http.ResponseWriter, r *http.Request) {
	tariffID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireTariffClinic(w, r, tariffID) {
		return
	}
	tariff, err := h.stock.GetTariff(r.Context(), tariffID)
	if err != nil {
		h.respondServiceError(w, r, "getTariff", err)
		return
	}
	respondJSON(w, http.StatusOK, tariff)
}

func (h *Handler) deleteTariff(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, roleManager) {
		return
	}
	tariffID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireTariffClinic(w, r, tariffID) {
		return
	}
	if err := h.stock.DeleteTariff(r.Context(), tariffID); err != nil {
		h.respondServiceError(w, r, "deleteTariff", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTariffsByClinic(w http.ResponseWriter, r *http.Request) {
	clinicID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireClinic(w, r, clinicID) {
		return
	}
	tariffs, err := h.stock.ListTariffsByClinic(r.Context(), clinicID)
	if err != nil {
		h.respondServiceError(w, r, "listTariffsByClinic", err)
		return
	}
	respondJSON(w, http.StatusOK, tariffs)
}

func (h *Handler) currentQuantity(w http.ResponseWriter, r *http.Request) {
	tariffID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireTariffClinic(w, r, tariffID) {
		return
	}
	qty, err := h.stock.CurrentQuantity(r.Context(), tariffID)
	if err != nil {
		h.respondServiceError(w, r, "currentQuantity", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"product_tariff_id": tariffID, "quantity": qty})
}

type adjustmentRequest struct {
	Delta        int64  `json:"delta"`
	Reason       string `json:"reason" validate:"required"`
	DetailLineID *int64 `json:"detail_line_id,omitempty" validate:"omitempty,gt=0"`
}

func (h *Handler) adjustStock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, roleManager) {
		return
	}
	tariffID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireTariffClinic(w, r, tariffID) {
		return
	}
	var req adjustmentRequest
	if !h.bind(w, r, &req) {
		return
	}
	adj, err := h.stock.AdjustStock(r.Context(), stock.Adjustment{
		TariffID:     tariffID,
		Delta:        req.Delta,
		Reason:       req.Reason,
		UserID:       currentUser(r),
		DetailLineID: req.DetailLineID,
	})
	if err != nil {
		h.respondServiceError(w, r, "adjustStock", err)
		return
	}
	respondJSON(w, http.StatusCreated, adj)
}

func (h *Handler) listAdjustments(w http.ResponseWriter, r *http.Request) {
	tariffID, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.requireTariffClinic(w, r, tariffID) {
		return
	}
	adjustments, err := h.stock.ListAdjustmentsByTariff(r.Context(), tariffID)
	if err != nil {
		h.respondServiceError(w, r, "listAdjustments", err)
		return
	}
	respondJSON(w, http.StatusOK, adjustments)
}
