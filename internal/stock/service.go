// Package stock implements replenishment orders, inventory counts, tariffs
// and stock corrections on top of the ledger.
package stock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Bando358/ecmis-sub006/domain"
	"github.com/Bando358/ecmis-sub006/internal/anomaly"
	"github.com/Bando358/ecmis-sub006/internal/directory"
	"github.com/Bando358/ecmis-sub006/internal/ledger"
)

const dateLayout = "2006-01-02"

// Directory is the set of read-only collaborators the service consults.
type Directory interface {
	directory.Clinics
	directory.Products
	directory.Users
}

// Options tunes a Service. Zero values are usable.
type Options struct {
	Detector anomaly.Detector
	Now      func() time.Time
	Logger   logrus.FieldLogger
}

// Service bundles the stock operations exposed to the presentation layer.
type Service struct {
	db       *sqlx.DB
	dir      Directory
	ledger   *ledger.Ledger
	detector anomaly.Detector
	now      func() time.Time
	log      logrus.FieldLogger
}

// New constructs a Service.
func New(db *sqlx.DB, dir Directory, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &Service{
		db:       db,
		dir:      dir,
		ledger:   ledger.New(now),
		detector: opts.Detector,
		now:      now,
		log:      log.WithField("module", "stock"),
	}
}

// CurrentQuantity returns the ledger quantity of a tariff.
func (s *Service) CurrentQuantity(ctx context.Context, tariffID int64) (int64, error) {
	return s.ledger.CurrentQuantity(ctx, s.db, tariffID)
}

// Order returns an order header without its lines.
func (s *Service) Order(ctx context.Context, orderID int64) (domain.ReplenishmentOrder, error) {
	return getOrder(ctx, s.db, orderID)
}

// InventoryEvent returns an event header without its lines.
func (s *Service) InventoryEvent(ctx context.Context, eventID int64) (domain.InventoryEvent, error) {
	return getEvent(ctx, s.db, eventID)
}

func (s *Service) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Service) calendarDate(date time.Time) string {
	if date.IsZero() {
		date = s.now()
	}
	return date.Format(dateLayout)
}

// withTx runs fn inside a transaction. Only tx may be used inside fn: the
// SQLite pool holds a single connection.
func (s *Service) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getTariff(ctx context.Context, q queryer, id int64) (domain.ProductTariff, error) {
	var tariff domain.ProductTariff
	err := sqlx.GetContext(ctx, q, &tariff, q.Rebind(`SELECT id, clinic_id, product_id, unit_price, quantity, created_at, updated_at
                FROM product_tariffs WHERE id = ?`), id)
	return tariff, wrapNotFound(err, "tariff", id)
}

func getOrder(ctx context.Context, q queryer, id int64) (domain.ReplenishmentOrder, error) {
	var order domain.ReplenishmentOrder
	err := sqlx.GetContext(ctx, q, &order, q.Rebind(`SELECT id, clinic_id, order_date, status, created_by, created_at, closed_at
                FROM replenishment_orders WHERE id = ?`), id)
	return order, wrapNotFound(err, "order", id)
}

func getEvent(ctx context.Context, q queryer, id int64) (domain.InventoryEvent, error) {
	var event domain.InventoryEvent
	err := sqlx.GetContext(ctx, q, &event, q.Rebind(`SELECT id, clinic_id, count_date, user_id, status, created_at, closed_at
                FROM inventory_events WHERE id = ?`), id)
	return event, wrapNotFound(err, "inventory event", id)
}

// lockOpenOrder holds the order row lock until tx ends and fails unless the
// order is open. SQLite has no FOR UPDATE, so the lock is a no-op update.
func lockOpenOrder(ctx context.Context, tx *sqlx.Tx, id int64) (domain.ReplenishmentOrder, error) {
	open, err := lockOpen(ctx, tx, "replenishment_orders", id)
	if err != nil {
		return domain.ReplenishmentOrder{}, fmt.Errorf("lock order %d: %w", id, err)
	}
	order, err := getOrder(ctx, tx, id)
	if err != nil {
		return domain.ReplenishmentOrder{}, err
	}
	if !open {
		return domain.ReplenishmentOrder{}, fmt.Errorf("order %d: %w", id, domain.ErrOrderClosed)
	}
	return order, nil
}

// lockOpenEvent is lockOpenOrder for inventory events. Holding the event lock
// also serialises the completeness check of concurrent final lines.
func lockOpenEvent(ctx context.Context, tx *sqlx.Tx, id int64) (domain.InventoryEvent, error) {
	open, err := lockOpen(ctx, tx, "inventory_events", id)
	if err != nil {
		return domain.InventoryEvent{}, fmt.Errorf("lock inventory event %d: %w", id, err)
	}
	event, err := getEvent(ctx, tx, id)
	if err != nil {
		return domain.InventoryEvent{}, err
	}
	if !open {
		return domain.InventoryEvent{}, fmt.Errorf("inventory event %d: %w", id, domain.ErrEventClosed)
	}
	return event, nil
}

func lockOpen(ctx context.Context, tx *sqlx.Tx, table string, id int64) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE `+table+` SET status = status WHERE id = ? AND status = ?`), id, domain.StatusOpen)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func wrapNotFound(err error, kind string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load %s %d: %w", kind, id, err)
	}
	return nil
}

// names resolves display names through the directory, tolerating records
// the surrounding application has since removed.
type names struct {
	ctx      context.Context
	dir      Directory
	products map[int64]string
	users    map[int64]string
}

func newNames(ctx context.Context, dir Directory) *names {
	return &names{ctx: ctx, dir: dir, products: map[int64]string{}, users: map[int64]string{}}
}

func (n *names) product(id int64) (string, error) {
	if name, ok := n.products[id]; ok {
		return name, nil
	}
	product, err := n.dir.Product(n.ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	n.products[id] = product.Name
	return product.Name, nil
}

func (n *names) user(id int64) (string, error) {
	if name, ok := n.users[id]; ok {
		return name, nil
	}
	user, err := n.dir.User(n.ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	n.users[id] = user.Username
	return user.Username, nil
}
