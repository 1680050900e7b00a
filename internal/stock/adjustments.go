package stock

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Bando358/ecmis-sub006/domain"
)

// Adjustment is an explicit correction of a tariff's ledger quantity.
// DetailLineID optionally points at the count line that justified it.
type Adjustment struct {
	TariffID     int64
	Delta        int64
	Reason       string
	UserID       int64
	DetailLineID *int64
}

// AdjustStock applies a corrective delta and keeps an audit record of it.
// Recording an inventory line never corrects the ledger; this is the only
// way a counted variance turns into a stock change.
func (s *Service) AdjustStock(ctx context.Context, in Adjustment) (domain.StockAdjustment, error) {
	if in.Delta == 0 {
		return domain.StockAdjustment{}, fmt.Errorf("adjustment delta 0: %w", domain.ErrInvalidQuantity)
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return domain.StockAdjustment{}, fmt.Errorf("adjustment reason is required: %w", domain.ErrInvalidInput)
	}

	var adj domain.StockAdjustment
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if in.DetailLineID != nil {
			var lineTariff int64
			err := tx.GetContext(ctx, &lineTariff, tx.Rebind(`SELECT product_tariff_id FROM inventory_detail_lines WHERE id = ?`), *in.DetailLineID)
			if err := wrapNotFound(err, "inventory line", *in.DetailLineID); err != nil {
				return err
			}
			if lineTariff != in.TariffID {
				return fmt.Errorf("inventory line %d counts tariff %d, not %d: %w", *in.DetailLineID, lineTariff, in.TariffID, domain.ErrInvalidInput)
			}
		}

		after, err := s.ledger.ApplyDelta(ctx, tx, in.TariffID, in.Delta)
		if err != nil {
			return err
		}
		adj = domain.StockAdjustment{
			ProductTariffID: in.TariffID,
			InitialQuantity: after - in.Delta,
			Delta:           in.Delta,
			Reason:          reason,
			UserID:          in.UserID,
			DetailLineID:    in.DetailLineID,
			CreatedAt:       s.stamp(),
		}
		err = tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO stock_adjustments (product_tariff_id, initial_quantity, delta, reason, user_id, detail_line_id, created_at)
                VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			adj.ProductTariffID, adj.InitialQuantity, adj.Delta, adj.Reason, adj.UserID, adj.DetailLineID, adj.CreatedAt).Scan(&adj.ID)
		if err != nil {
			return fmt.Errorf("insert stock adjustment: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	s.log.WithFields(logrus.Fields{
		"tariff_id": in.TariffID,
		"initial":   adj.InitialQuantity,
		"delta":     adj.Delta,
		"user_id":   in.UserID,
	}).Info("stock adjusted")
	return adj, nil
}

// ListAdjustmentsByTariff returns a tariff's corrections, oldest first.
func (s *Service) ListAdjustmentsByTariff(ctx context.Context, tariffID int64) ([]domain.StockAdjustment, error) {
	if _, err := getTariff(ctx, s.db, tariffID); err != nil {
		return nil, err
	}
	adjustments := []domain.StockAdjustment{}
	err := s.db.SelectContext(ctx, &adjustments, s.db.Rebind(`SELECT id, product_tariff_id, initial_quantity, delta, reason, user_id, detail_line_id, created_at
                FROM stock_adjustments WHERE product_tariff_id = ? ORDER BY id`), tariffID)
	if err != nil {
		return nil, fmt.Errorf("list adjustments of tariff %d: %w", tariffID, err)
	}
	return adjustments, nil
}
