package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bando358/ecmis-sub006/domain"
	"github.com/Bando358/ecmis-sub006/internal/testdb"
)

func TestAdjustStockInsufficient(t *testing.T) {
	f := newFixture(t)
	tariff := f.tariff(t, f.clinicA, f.para, 3)

	_, err := f.svc.AdjustStock(ctx, Adjustment{TariffID: tariff, Delta: -5, Reason: "expired batch", UserID: f.user})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, int64(3), testdb.Quantity(t, f.db, tariff))
	assert.Zero(t, testdb.Count(t, f.db, "stock_adjustments"))
}

func TestAdjustStockFromCount(t *testing.T) {
	f := newFixture(t)
	tariff := f.tariff(t, f.clinicA, f.para, 20)
	event, err := f.svc.StartInventoryEvent(ctx, f.clinicA, countDay, f.user)
	require.NoError(t, err)
	line, err := f.svc.RecordInventoryLine(ctx, event.ID, tariff, 18)
	require.NoError(t, err)

	adj, err := f.svc.AdjustStock(ctx, Adjustment{
		TariffID:     tariff,
		Delta:        line.Variance,
		Reason:       "  count of 2024-05-01  ",
		UserID:       f.user,
		DetailLineID: &line.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20), adj.InitialQuantity)
	assert.Equal(t, int64(-2), adj.Delta)
	assert.Equal(t, "count of 2024-05-01", adj.Reason)
	require.NotNil(t, adj.DetailLineID)
	assert.Equal(t, line.ID, *adj.DetailLineID)
	assert.Equal(t, int64(18), testdb.Quantity(t, f.db, tariff))

	history, err := f.svc.ListAdjustmentsByTariff(ctx, tariff)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, adj.ID, history[0].ID)
}

func TestAdjustStockValidation(t *testing.T) {
	f := newFixture(t)
	tariff := f.tariff(t, f.clinicA, f.para, 20)
	other := f.tariff(t, f.clinicA, f.amox, 20)
	event, err := f.svc.StartInventoryEvent(ctx, f.clinicA, countDay, f.user)
	require.NoError(t, err)
	line, err := f.svc.RecordInventoryLine(ctx, event.ID, other, 19)
	require.NoError(t, err)
	missing := int64(999)

	_, err = f.svc.AdjustStock(ctx, Adjustment{TariffID: tariff, Delta: 0, Reason: "noop", UserID: f.user})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.AdjustStock(ctx, Adjustment{TariffID: tariff, Delta: 1, Reason: " ", UserID: f.user})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.AdjustStock(ctx, Adjustment{TariffID: tariff, Delta: 1, Reason: "x", UserID: f.user, DetailLineID: &missing})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.AdjustStock(ctx, Adjustment{TariffID: tariff, Delta: 1, Reason: "x", UserID: f.user, DetailLineID: &line.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.AdjustStock(ctx, Adjustment{TariffID: missing, Delta: 1, Reason: "x", UserID: f.user})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.Equal(t, int64(20), testdb.Quantity(t, f.db, tariff))
	assert.Zero(t, testdb.Count(t, f.db, "stock_adjustments"))

	_, err = f.svc.ListAdjustmentsByTariff(ctx, missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdjustStockRollsBackLedgerWhenAuditFails(t *testing.T) {
	f := newFixture(t)
	tariff := f.tariff(t, f.clinicA, f.para, 8)
	_, err := f.db.Exec(`CREATE TRIGGER reject_adjustments BEFORE INSERT ON stock_adjustments
                BEGIN SELECT RAISE(ABORT, 'adjustment rejected'); END;`)
	require.NoError(t, err)

	_, err = f.svc.AdjustStock(ctx, Adjustment{TariffID: tariff, Delta: -3, Reason: "breakage", UserID: f.user})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adjustment rejected")
	assert.Equal(t, int64(8), testdb.Quantity(t, f.db, tariff))
}
