package stock

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/Bando358/ecmis-sub006/internal/anomaly"
	"github.com/Bando358/ecmis-sub006/internal/directory"
	"github.com/Bando358/ecmis-sub006/internal/testdb"
)

var countDay = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	db      *sqlx.DB
	svc     *Service
	clinicA int64
	clinicB int64
	para    int64
	amox    int64
	user    int64
}

func clock() time.Time {
	return time.Date(2024, 5, 1, 10, 15, 0, 0, time.UTC)
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithDetector(t, anomaly.Detector{})
}

func newFixtureWithDetector(t *testing.T, d anomaly.Detector) *fixture {
	t.Helper()
	return newFixtureOn(t, testdb.Open(t), d)
}

func newFixtureOn(t *testing.T, db *sqlx.DB, d anomaly.Detector) *fixture {
	t.Helper()
	f := &fixture{db: db}
	f.clinicA = testdb.Clinic(t, db, "Clinique A")
	f.clinicB = testdb.Clinic(t, db, "Clinique B")
	f.para = testdb.Product(t, db, "PARA500", "Paracetamol 500mg")
	f.amox = testdb.Product(t, db, "AMOX250", "Amoxicillin 250mg")
	f.user = testdb.User(t, db, "awa", f.clinicA)
	f.svc = New(db, directory.New(db), Options{Detector: d, Now: clock})
	return f
}

func (f *fixture) tariff(t *testing.T, clinicID, productID, quantity int64) int64 {
	t.Helper()
	return testdb.Tariff(t, f.db, clinicID, productID, quantity)
}

func critical(percent string) anomaly.Detector {
	return anomaly.Detector{CriticalPercent: decimal.RequireFromString(percent)}
}

var ctx = context.Background()
