package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Bando358/ecmis-sub006/domain"
	"github.com/Bando358/ecmis-sub006/internal/config"
	"github.com/Bando358/ecmis-sub006/internal/directory"
	"github.com/Bando358/ecmis-sub006/internal/stock"
)

const dateLayout = "2006-01-02"

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db       *sqlx.DB
	stock    *stock.Service
	dir      *directory.Directory
	secret   string
	origins  []string
	timeout  time.Duration
	log      logrus.FieldLogger
	validate *validator.Validate
}

// New constructs a Handler. The database is used directly only for the
// records the API owns: users and clinics.
func New(db *sqlx.DB, svc *stock.Service, dir *directory.Directory, cfg config.Config, logger logrus.FieldLogger) *Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Handler{
		db:       db,
		stock:    svc,
		dir:      dir,
		secret:   cfg.Secret,
		origins:  origins,
		timeout:  timeout,
		log:      logger.WithField("module", "api"),
		validate: newValidator(),
	}
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/clinics", func(r chi.Router) {
			r.Post("/", h.createClinic)
			r.Get("/", h.listClinics)
			r.Get("/{id}/orders", h.listOrdersByClinic)
			r.Get("/{id}/inventory-events", h.listInventoryEventsByClinic)
			r.Get("/{id}/tariffs", h.listTariffsByClinic)
		})

		pr.Get("/products", h.searchProducts)

		pr.Route("/orders", func(r chi.Router) {
			r.Post("/", h.createOrder)
			r.Get("/{id}", h.getOrder)
			r.Post("/{id}/lines", h.addOrderLine)
			r.Post("/{id}/close", h.closeOrder)
		})

		pr.Route("/inventory-events", func(r chi.Router) {
			r.Post("/", h.startInventoryEvent)
			r.Get("/{id}", h.getInventoryEvent)
			r.Post("/{id}/lines", h.recordInventoryLine)
			r.Get("/{id}/anomalies", h.listAnomalies)
			r.Post("/{id}/close", h.closeInventoryEvent)
		})

		pr.Route("/tariffs", func(r chi.Router) {
			r.Post("/", h.createTariff)
			r.Get("/{id}", h.getTariff)
			r.Delete("/{id}", h.deleteTariff)
			r.Get("/{id}/quantity", h.currentQuantity)
			r.Post("/{id}/adjustments", h.adjustStock)
			r.Get("/{id}/adjustments", h.listAdjustments)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

// bind decodes a JSON body and runs the struct's validate tags, writing the
// 400 response itself when either step fails.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := decodeJSON(r, dest); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	if err := h.validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			respondError(w, http.StatusBadRequest, err.Error())
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "validation failed", "fields": fields})
		return false
	}
	return true
}

// respondServiceError maps stock errors to statuses. Anything unrecognised is
// logged and reported as a 500 without its details.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, funcName string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrClinicMismatch):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrOrderClosed),
		errors.Is(err, domain.ErrEventClosed),
		errors.Is(err, domain.ErrTariffInUse),
		errors.Is(err, domain.ErrDuplicateInventoryEvent),
		errors.Is(err, domain.ErrDuplicateCountLine),
		errors.Is(err, domain.ErrDuplicateTariff):
		respondError(w, http.StatusConflict, err.Error())
	default:
		config.LogError(h.log, "api", funcName, r.Method+" "+r.URL.Path, middleware.GetReqID(r.Context()), err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

// parseDate accepts an empty string, meaning today.
func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", raw)
	}
	return date, nil
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
