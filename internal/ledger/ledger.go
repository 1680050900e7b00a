// Package ledger is the single writer of on-hand stock quantities.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Bando358/ecmis-sub006/domain"
)

// Queryer is satisfied by *sqlx.DB and *sqlx.Tx, so ledger calls can join
// the caller's transaction.
type Queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

// Ledger reads and mutates product_tariffs.quantity.
type Ledger struct {
	now func() time.Time
}

// New returns a Ledger stamping updated_at with now.
func New(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now}
}

// ApplyDelta adds delta to the tariff quantity in a single statement and
// returns the new quantity. The guard in the WHERE clause makes the
// negative-stock check and the write one atomic step, so concurrent callers
// can never lose an update.
func (l *Ledger) ApplyDelta(ctx context.Context, q Queryer, tariffID, delta int64) (int64, error) {
	var quantity int64
	err := sqlx.GetContext(ctx, q, &quantity, q.Rebind(`UPDATE product_tariffs
                SET quantity = quantity + ?, updated_at = ?
                WHERE id = ? AND quantity + ? >= 0
                RETURNING quantity`), delta, l.now().UTC().Format(time.RFC3339Nano), tariffID, delta)
	if err == nil {
		return quantity, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("apply delta to tariff %d: %w", tariffID, err)
	}

	current, err := l.CurrentQuantity(ctx, q, tariffID)
	if err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("tariff %d holds %d, cannot apply %d: %w", tariffID, current, delta, domain.ErrInsufficientStock)
}

// CurrentQuantity is a point-in-time read; nothing is locked after it returns.
func (l *Ledger) CurrentQuantity(ctx context.Context, q Queryer, tariffID int64) (int64, error) {
	var quantity int64
	err := sqlx.GetContext(ctx, q, &quantity, q.Rebind(`SELECT quantity FROM product_tariffs WHERE id = ?`), tariffID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("tariff %d: %w", tariffID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("read tariff %d: %w", tariffID, err)
	}
	return quantity, nil
}
