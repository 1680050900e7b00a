package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bando358/ecmis-sub006/domain"
	"github.com/Bando358/ecmis-sub006/internal/config"
	"github.com/Bando358/ecmis-sub006/internal/directory"
	"github.com/Bando358/ecmis-sub006/internal/stock"
	"github.com/Bando358/ecmis-sub006/internal/testdb"
)

type server struct {
	db     *sqlx.DB
	router http.Handler
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := testdb.Open(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	dir := directory.New(db)
	svc := stock.New(db, dir, stock.Options{Logger: logger})
	cfg := config.Config{Secret: "test-secret", RequestTimeout: 5 * time.Second}
	return &server{db: db, router: New(db, svc, dir, cfg, logger).Router()}
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// register creates an account; token is the registering manager's, empty for
// the first manager.
func (s *server) register(t *testing.T, token, email, role string, clinicID *int64) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/auth/register", token, registerRequest{
		Username: "user " + email,
		Email:    email,
		Password: "s3cret-pass",
		Role:     role,
		ClinicID: clinicID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp authResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func TestHealth(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestRegisterAndLogin(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", registerRequest{
		Username: "Mariam", Email: "Mariam@Clinic.test", Password: "s3cret-pass", Role: roleManager,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created authResponse
	decode(t, rec, &created)
	assert.Equal(t, "mariam@clinic.test", created.User.Email)
	assert.Empty(t, created.User.Password)
	assert.NotContains(t, rec.Body.String(), "password")

	dup := s.do(t, http.MethodPost, "/auth/register", created.Token, registerRequest{
		Username: "Other", Email: "mariam@clinic.test", Password: "another-pass", Role: roleManager,
	})
	assert.Equal(t, http.StatusConflict, dup.Code)

	wrong := s.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "mariam@clinic.test", Password: "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)

	ok := s.do(t, http.MethodPost, "/auth/login", "", loginRequest{Email: "MARIAM@clinic.test", Password: "s3cret-pass"})
	require.Equal(t, http.StatusOK, ok.Code, ok.Body.String())
	var logged authResponse
	decode(t, ok, &logged)
	assert.Equal(t, created.User.ID, logged.User.ID)
	assert.NotEmpty(t, logged.Token)
	assert.Empty(t, logged.User.Password)
}

func TestRegisterValidation(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodPost, "/auth/register", "", `{"username":"x","role":"manager"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "required", body.Fields["email"])
	assert.Equal(t, "required", body.Fields["password"])

	unknown := s.do(t, http.MethodPost, "/auth/register", "", `{"username":"x","email":"x@y.z","password":"12345678","role":"manager","pharmacy":"A"}`)
	assert.Equal(t, http.StatusBadRequest, unknown.Code)

	badRole := s.do(t, http.MethodPost, "/auth/register", "", registerRequest{Username: "x", Email: "x@y.z", Password: "12345678", Role: "owner"})
	assert.Equal(t, http.StatusBadRequest, badRole.Code)

	manager := s.register(t, "", "boss@clinic.test", roleManager, nil)

	staff := s.do(t, http.MethodPost, "/auth/register", manager, registerRequest{Username: "x", Email: "x@y.z", Password: "12345678", Role: roleStaff})
	assert.Equal(t, http.StatusBadRequest, staff.Code)

	missing := int64(404)
	noClinic := s.do(t, http.MethodPost, "/auth/register", manager, registerRequest{Username: "x", Email: "x@y.z", Password: "12345678", Role: roleStaff, ClinicID: &missing})
	assert.Equal(t, http.StatusNotFound, noClinic.Code)
}

func TestRegistrationNeedsManagerOnceBootstrapped(t *testing.T) {
	s := newServer(t)
	clinic := testdb.Clinic(t, s.db, "Clinique A")

	first := s.do(t, http.MethodPost, "/auth/register", "", registerRequest{Username: "x", Email: "staff0@clinic.test", Password: "12345678", Role: roleStaff, ClinicID: &clinic})
	assert.Equal(t, http.StatusForbidden, first.Code, "the first account must be a manager")

	manager := s.register(t, "", "boss@clinic.test", roleManager, nil)

	anonymous := s.do(t, http.MethodPost, "/auth/register", "", registerRequest{Username: "x", Email: "intruder@clinic.test", Password: "12345678", Role: roleManager})
	assert.Equal(t, http.StatusUnauthorized, anonymous.Code)

	staff := s.register(t, manager, "staff@clinic.test", roleStaff, &clinic)
	byStaff := s.do(t, http.MethodPost, "/auth/register", staff, registerRequest{Username: "x", Email: "other@clinic.test", Password: "12345678", Role: roleManager})
	assert.Equal(t, http.StatusForbidden, byStaff.Code)

	s.register(t, manager, "deputy@clinic.test", roleManager, nil)
	var managers int
	require.NoError(t, s.db.Get(&managers, `SELECT COUNT(*) FROM users WHERE role = 'manager'`))
	assert.Equal(t, 2, managers)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/clinics", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/clinics", "not-a-token", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/orders", "", orderRequest{ClinicID: 1}).Code)
}

func TestStaffCannotManage(t *testing.T) {
	s := newServer(t)
	clinic := testdb.Clinic(t, s.db, "Clinique A")
	product := testdb.Product(t, s.db, "PARA500", "Paracetamol 500mg")
	tariff := testdb.Tariff(t, s.db, clinic, product, 5)
	manager := s.register(t, "", "boss@clinic.test", roleManager, nil)
	token := s.register(t, manager, "staff@clinic.test", roleStaff, &clinic)

	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/clinics", token, clinicRequest{Name: "B"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/tariffs", token, tariffRequest{ClinicID: clinic, ProductID: product}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, fmt.Sprintf("/tariffs/%d/adjustments", tariff), token, adjustmentRequest{Delta: 1, Reason: "x"}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodDelete, fmt.Sprintf("/tariffs/%d", tariff), token, nil).Code)

	rec := s.do(t, http.MethodGet, "/clinics", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var clinics []domain.Clinic
	decode(t, rec, &clinics)
	assert.Len(t, clinics, 1)
}

func TestStockFlow(t *testing.T) {
	s := newServer(t)
	token := s.register(t, "", "manager@clinic.test", roleManager, nil)

	rec := s.do(t, http.MethodPost, "/clinics", token, clinicRequest{Name: "Clinique A", Address: "Rue 12"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var clinic domain.Clinic
	decode(t, rec, &clinic)
	product := testdb.Product(t, s.db, "PARA500", "Paracetamol 500mg")

	rec = s.do(t, http.MethodGet, "/products?q=para", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []domain.Product
	decode(t, rec, &products)
	require.Len(t, products, 1)
	assert.Equal(t, product, products[0].ID)

	rec = s.do(t, http.MethodPost, "/tariffs", token, tariffRequest{ClinicID: clinic.ID, ProductID: product, UnitPrice: 300, OpeningQuantity: 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tariff domain.ProductTariff
	decode(t, rec, &tariff)
	tariffPath := fmt.Sprintf("/tariffs/%d", tariff.ID)

	rec = s.do(t, http.MethodPost, "/tariffs", token, tariffRequest{ClinicID: clinic.ID, ProductID: product})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/orders", token, orderRequest{ClinicID: clinic.ID, OrderDate: "2024-05-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order domain.ReplenishmentOrder
	decode(t, rec, &order)
	assert.Equal(t, "2024-05-01", order.OrderDate)
	orderPath := fmt.Sprintf("/orders/%d", order.ID)

	rec = s.do(t, http.MethodPost, orderPath+"/lines", token, orderLineRequest{ProductTariffID: tariff.ID, QuantityOrdered: 5})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var added struct {
		Line      domain.OrderLine `json:"line"`
		Resulting int64            `json:"resulting_quantity"`
	}
	decode(t, rec, &added)
	assert.Equal(t, int64(10), added.Line.InitialQuantity)
	assert.Equal(t, int64(15), added.Resulting)

	rec = s.do(t, http.MethodPost, orderPath+"/lines", token, orderLineRequest{ProductTariffID: tariff.ID, QuantityOrdered: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, tariffPath+"/quantity", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, fmt.Sprintf(`{"product_tariff_id":%d,"quantity":15}`, tariff.ID), rec.Body.String())

	rec = s.do(t, http.MethodPost, "/inventory-events", token, inventoryEventRequest{ClinicID: clinic.ID, CountDate: "2024-05-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var event domain.InventoryEvent
	decode(t, rec, &event)
	eventPath := fmt.Sprintf("/inventory-events/%d", event.ID)

	rec = s.do(t, http.MethodPost, "/inventory-events", token, inventoryEventRequest{ClinicID: clinic.ID, CountDate: "2024-05-01"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, eventPath+"/lines", token, `{"product_tariff_id":`+fmt.Sprint(tariff.ID)+`}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, eventPath+"/lines", token, `{"product_tariff_id":`+fmt.Sprint(tariff.ID)+`,"actual":13}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var line domain.InventoryDetailLine
	decode(t, rec, &line)
	assert.Equal(t, int64(15), line.Theoretical)
	assert.Equal(t, int64(-2), line.Variance)
	require.Len(t, line.Anomalies, 1)

	rec = s.do(t, http.MethodGet, eventPath, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail domain.InventoryEventDetail
	decode(t, rec, &detail)
	assert.Equal(t, domain.StatusClosed, detail.Status)
	assert.Len(t, detail.Lines, 1)

	rec = s.do(t, http.MethodGet, eventPath+"/anomalies", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var anomalies []domain.Anomaly
	decode(t, rec, &anomalies)
	require.Len(t, anomalies, 1)
	assert.Equal(t, domain.AnomalyStockVariance, anomalies[0].Category)

	rec = s.do(t, http.MethodPost, tariffPath+"/adjustments", token, adjustmentRequest{Delta: -100, Reason: "shrinkage"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, tariffPath+"/adjustments", token, adjustmentRequest{Delta: line.Variance, Reason: "count 2024-05-01", DetailLineID: &line.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(13), testdb.Quantity(t, s.db, tariff.ID))

	rec = s.do(t, http.MethodGet, tariffPath+"/adjustments", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var adjustments []domain.StockAdjustment
	decode(t, rec, &adjustments)
	assert.Len(t, adjustments, 1)

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodDelete, tariffPath, token, nil).Code)

	rec = s.do(t, http.MethodPost, orderPath+"/close", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, orderPath+"/lines", token, orderLineRequest{ProductTariffID: tariff.ID, QuantityOrdered: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, orderPath, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orderDetail domain.OrderDetail
	decode(t, rec, &orderDetail)
	require.Len(t, orderDetail.Lines, 1)
	assert.Equal(t, "Paracetamol 500mg", orderDetail.Lines[0].ProductName)

	for _, path := range []string{"/clinics/%d/orders", "/clinics/%d/inventory-events", "/clinics/%d/tariffs"} {
		rec = s.do(t, http.MethodGet, fmt.Sprintf(path, clinic.ID), token, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestErrorStatuses(t *testing.T) {
	s := newServer(t)
	token := s.register(t, "", "manager@clinic.test", roleManager, nil)
	clinicA := testdb.Clinic(t, s.db, "Clinique A")
	clinicB := testdb.Clinic(t, s.db, "Clinique B")
	product := testdb.Product(t, s.db, "PARA500", "Paracetamol 500mg")
	foreign := testdb.Tariff(t, s.db, clinicB, product, 5)

	rec := s.do(t, http.MethodPost, "/orders", token, orderRequest{ClinicID: clinicA})
	require.Equal(t, http.StatusCreated, rec.Code)
	var order domain.ReplenishmentOrder
	decode(t, rec, &order)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/orders/%d/lines", order.ID), token, orderLineRequest{ProductTariffID: foreign, QuantityOrdered: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/orders/999", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/tariffs/999/quantity", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/inventory-events/999/anomalies", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/orders/abc", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/orders", token, orderRequest{ClinicID: clinicA, OrderDate: "01/05/2024"}).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/products?limit=0", token, nil).Code)
}

func TestStaffScopedToOwnClinic(t *testing.T) {
	s := newServer(t)
	manager := s.register(t, "", "boss@clinic.test", roleManager, nil)
	own := testdb.Clinic(t, s.db, "Clinique A")
	other := testdb.Clinic(t, s.db, "Clinique B")
	product := testdb.Product(t, s.db, "PARA500", "Paracetamol 500mg")
	ownTariff := testdb.Tariff(t, s.db, own, product, 5)
	otherTariff := testdb.Tariff(t, s.db, other, product, 5)
	staff := s.register(t, manager, "staff@clinic.test", roleStaff, &own)

	rec := s.do(t, http.MethodPost, "/orders", staff, orderRequest{ClinicID: own})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/orders", staff, orderRequest{ClinicID: other}).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/inventory-events", staff, inventoryEventRequest{ClinicID: other}).Code)

	rec = s.do(t, http.MethodPost, "/orders", manager, orderRequest{ClinicID: other})
	require.Equal(t, http.StatusCreated, rec.Code)
	var foreignOrder domain.ReplenishmentOrder
	decode(t, rec, &foreignOrder)
	rec = s.do(t, http.MethodPost, "/inventory-events", manager, inventoryEventRequest{ClinicID: other})
	require.Equal(t, http.StatusCreated, rec.Code)
	var foreignEvent domain.InventoryEvent
	decode(t, rec, &foreignEvent)

	forbidden := []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodGet, fmt.Sprintf("/orders/%d", foreignOrder.ID), nil},
		{http.MethodPost, fmt.Sprintf("/orders/%d/lines", foreignOrder.ID), orderLineRequest{ProductTariffID: otherTariff, QuantityOrdered: 1}},
		{http.MethodPost, fmt.Sprintf("/orders/%d/close", foreignOrder.ID), nil},
		{http.MethodGet, fmt.Sprintf("/inventory-events/%d", foreignEvent.ID), nil},
		{http.MethodGet, fmt.Sprintf("/inventory-events/%d/anomalies", foreignEvent.ID), nil},
		{http.MethodPost, fmt.Sprintf("/inventory-events/%d/close", foreignEvent.ID), nil},
		{http.MethodGet, fmt.Sprintf("/tariffs/%d", otherTariff), nil},
		{http.MethodGet, fmt.Sprintf("/tariffs/%d/quantity", otherTariff), nil},
		{http.MethodGet, fmt.Sprintf("/tariffs/%d/adjustments", otherTariff), nil},
		{http.MethodGet, fmt.Sprintf("/clinics/%d/orders", other), nil},
		{http.MethodGet, fmt.Sprintf("/clinics/%d/inventory-events", other), nil},
		{http.MethodGet, fmt.Sprintf("/clinics/%d/tariffs", other), nil},
	}
	for _, tc := range forbidden {
		rec := s.do(t, tc.method, tc.path, staff, tc.body)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}
	assert.Equal(t, int64(5), testdb.Quantity(t, s.db, otherTariff))

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, fmt.Sprintf("/tariffs/%d/quantity", ownTariff), staff, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, fmt.Sprintf("/clinics/%d/tariffs", own), staff, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/orders/999", staff, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, fmt.Sprintf("/orders/%d", foreignOrder.ID), manager, nil).Code)
}
