package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Bando358/ecmis-sub006/domain"
)

// Clinic handlers

type clinicRequest struct {
	Name    string `json:"name" validate:"required"`
	Address string `json:"address"`
}

func (h *Handler) createClinic(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, roleManager) {
		return
	}
	var req clinicRequest
	if !h.bind(w, r, &req) {
		return
	}

	clinic := domain.Clinic{
		Name:      strings.TrimSpace(req.Name),
		Address:   strings.TrimSpace(req.Address),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	err := h.db.QueryRowxContext(r.Context(), h.db.Rebind(`INSERT INTO clinics (name, address, created_at) VALUES (?, ?, ?) RETURNING id`),
		clinic.Name, clinic.Address, clinic.CreatedAt).Scan(&clinic.ID)
	if err != nil {
		h.respondServiceError(w, r, "createClinic", err)
		return
	}
	respondJSON(w, http.StatusCreated, clinic)
}

func (h *Handler) listClinics(w http.ResponseWriter, r *http.Request) {
	clinics, err := h.dir.ListClinics(r.Context())
	if err != nil {
		h.respondServiceError(w, r, "listClinics", err)
		return
	}
	respondJSON(w, http.StatusOK, clinics)
}

// Product handlers

func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}
	products, err := h.dir.SearchProducts(r.Context(), query, limit)
	if err != nil {
		h.respondServiceError(w, r, "searchProducts", err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}
