package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Bando358/ecmis-sub006/domain"
)

// CreateOrder opens a replenishment order for a clinic. A zero date means today.
func (s *Service) CreateOrder(ctx context.Context, clinicID int64, date time.Time, userID int64) (domain.ReplenishmentOrder, error) {
	if _, err := s.dir.Clinic(ctx, clinicID); err != nil {
		return domain.ReplenishmentOrder{}, err
	}

	order := domain.ReplenishmentOrder{
		ClinicID:  clinicID,
		OrderDate: s.calendarDate(date),
		Status:    domain.StatusOpen,
		CreatedBy: userID,
		CreatedAt: s.stamp(),
	}
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO replenishment_orders (clinic_id, order_date, status, created_by, created_at)
                VALUES (?, ?, ?, ?, ?) RETURNING id`),
		order.ClinicID, order.OrderDate, order.Status, order.CreatedBy, order.CreatedAt).Scan(&order.ID)
	if err != nil {
		return domain.ReplenishmentOrder{}, fmt.Errorf("create order: %w", err)
	}

	s.log.WithFields(logrus.Fields{"order_id": order.ID, "clinic_id": clinicID}).Info("replenishment order created")
	return order, nil
}

// AddLine records one replenishment of a tariff. The ledger update and the
// line insert share a transaction: either both happen or neither does.
// InitialQuantity is derived from the quantity returned by the atomic update,
// so InitialQuantity+QuantityOrdered always equals the ledger right after.
func (s *Service) AddLine(ctx context.Context, orderID, tariffID, quantityOrdered, userID int64) (domain.OrderLine, error) {
	if quantityOrdered <= 0 {
		return domain.OrderLine{}, fmt.Errorf("quantity ordered %d: %w", quantityOrdered, domain.ErrInvalidQuantity)
	}

	var line domain.OrderLine
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		order, err := lockOpenOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		tariff, err := getTariff(ctx, tx, tariffID)
		if err != nil {
			return err
		}
		if tariff.ClinicID != order.ClinicID {
			return fmt.Errorf("tariff %d on order %d: %w", tariffID, orderID, domain.ErrClinicMismatch)
		}

		after, err := s.ledger.ApplyDelta(ctx, tx, tariffID, quantityOrdered)
		if err != nil {
			return err
		}

		line = domain.OrderLine{
			OrderID:         orderID,
			ProductTariffID: tariffID,
			InitialQuantity: after - quantityOrdered,
			QuantityOrdered: quantityOrdered,
			UserID:          userID,
			CreatedAt:       s.stamp(),
		}
		err = tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO order_lines (order_id, product_tariff_id, initial_quantity, quantity_ordered, user_id, created_at)
                VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
			line.OrderID, line.ProductTariffID, line.InitialQuantity, line.QuantityOrdered, line.UserID, line.CreatedAt).Scan(&line.ID)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.OrderLine{}, err
	}

	s.log.WithFields(logrus.Fields{
		"order_id":  orderID,
		"tariff_id": tariffID,
		"initial":   line.InitialQuantity,
		"ordered":   line.QuantityOrdered,
	}).Info("order line added")
	return line, nil
}

// CloseOrder stops an order from receiving further lines.
func (s *Service) CloseOrder(ctx context.Context, orderID int64) (domain.ReplenishmentOrder, error) {
	closedAt := s.stamp()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE replenishment_orders SET status = ?, closed_at = ? WHERE id = ? AND status = ?`),
		domain.StatusClosed, closedAt, orderID, domain.StatusOpen)
	if err != nil {
		return domain.ReplenishmentOrder{}, fmt.Errorf("close order %d: %w", orderID, err)
	}
	order, err := getOrder(ctx, s.db, orderID)
	if err != nil {
		return domain.ReplenishmentOrder{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ReplenishmentOrder{}, fmt.Errorf("order %d: %w", orderID, domain.ErrOrderClosed)
	}
	return order, nil
}

type orderLineRow struct {
	domain.OrderLine
	ProductID int64 `db:"product_id"`
}

// GetOrder returns an order with its lines in insertion order.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (domain.OrderDetail, error) {
	order, err := getOrder(ctx, s.db, orderID)
	if err != nil {
		return domain.OrderDetail{}, err
	}

	var rows []orderLineRow
	err = s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT ol.id, ol.order_id, ol.product_tariff_id, ol.initial_quantity, ol.quantity_ordered, ol.user_id, ol.created_at, pt.product_id
                FROM order_lines ol
                JOIN product_tariffs pt ON pt.id = ol.product_tariff_id
                WHERE ol.order_id = ?
                ORDER BY ol.id`), orderID)
	if err != nil {
		return domain.OrderDetail{}, fmt.Errorf("load lines of order %d: %w", orderID, err)
	}

	detail := domain.OrderDetail{ReplenishmentOrder: order, Lines: make([]domain.OrderLineDetail, 0, len(rows))}
	if clinic, err := s.dir.Clinic(ctx, order.ClinicID); err == nil {
		detail.ClinicName = clinic.Name
	}
	lookup := newNames(ctx, s.dir)
	for _, row := range rows {
		productName, err := lookup.product(row.ProductID)
		if err != nil {
			return domain.OrderDetail{}, err
		}
		userName, err := lookup.user(row.UserID)
		if err != nil {
			return domain.OrderDetail{}, err
		}
		detail.Lines = append(detail.Lines, domain.OrderLineDetail{OrderLine: row.OrderLine, ProductName: productName, UserName: userName})
	}
	return detail, nil
}

// ListOrdersByClinic returns the clinic's orders, newest first.
func (s *Service) ListOrdersByClinic(ctx context.Context, clinicID int64) ([]domain.ReplenishmentOrder, error) {
	if _, err := s.dir.Clinic(ctx, clinicID); err != nil {
		return nil, err
	}
	orders := []domain.ReplenishmentOrder{}
	err := s.db.SelectContext(ctx, &orders, s.db.Rebind(`SELECT id, clinic_id, order_date, status, created_by, created_at, closed_at
                FROM replenishment_orders WHERE clinic_id = ?
                ORDER BY order_date DESC, id DESC`), clinicID)
	if err != nil {
		return nil, fmt.Errorf("list orders of clinic %d: %w", clinicID, err)
	}
	return orders, nil
}
