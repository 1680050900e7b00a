package stock

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Bando358/ecmis-sub006/domain"
	"github.com/Bando358/ecmis-sub006/internal/database"
)

// NewTariff describes the first pricing of a product at a clinic.
type NewTariff struct {
	ClinicID        int64
	ProductID       int64
	UnitPrice       int64
	OpeningQuantity int64
}

// CreateTariff creates the ledger row of a product at a clinic with its
// opening quantity.
func (s *Service) CreateTariff(ctx context.Context, in NewTariff) (domain.ProductTariff, error) {
	if in.UnitPrice < 0 {
		return domain.ProductTariff{}, fmt.Errorf("unit price %d: %w", in.UnitPrice, domain.ErrInvalidInput)
	}
	if in.OpeningQuantity < 0 {
		return domain.ProductTariff{}, fmt.Errorf("opening quantity %d: %w", in.OpeningQuantity, domain.ErrInvalidQuantity)
	}
	if _, err := s.dir.Clinic(ctx, in.ClinicID); err != nil {
		return domain.ProductTariff{}, err
	}
	if _, err := s.dir.Product(ctx, in.ProductID); err != nil {
		return domain.ProductTariff{}, err
	}

	now := s.stamp()
	tariff := domain.ProductTariff{
		ClinicID:  in.ClinicID,
		ProductID: in.ProductID,
		UnitPrice: in.UnitPrice,
		Quantity:  in.OpeningQuantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO product_tariffs (clinic_id, product_id, unit_price, quantity, created_at, updated_at)
                VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		tariff.ClinicID, tariff.ProductID, tariff.UnitPrice, tariff.Quantity, tariff.CreatedAt, tariff.UpdatedAt).Scan(&tariff.ID)
	if database.IsUniqueViolation(err) {
		return domain.ProductTariff{}, fmt.Errorf("product %d at clinic %d: %w", in.ProductID, in.ClinicID, domain.ErrDuplicateTariff)
	}
	if err != nil {
		return domain.ProductTariff{}, fmt.Errorf("create tariff: %w", err)
	}

	s.log.WithFields(logrus.Fields{"tariff_id": tariff.ID, "clinic_id": in.ClinicID, "product_id": in.ProductID}).Info("tariff created")
	return tariff, nil
}

// GetTariff returns a single ledger row.
func (s *Service) GetTariff(ctx context.Context, tariffID int64) (domain.ProductTariff, error) {
	return getTariff(ctx, s.db, tariffID)
}

// ListTariffsByClinic returns the clinic's tariffs ordered by product name.
func (s *Service) ListTariffsByClinic(ctx context.Context, clinicID int64) ([]domain.TariffView, error) {
	if _, err := s.dir.Clinic(ctx, clinicID); err != nil {
		return nil, err
	}
	tariffs := []domain.TariffView{}
	err := s.db.SelectContext(ctx, &tariffs, s.db.Rebind(`SELECT pt.id, pt.clinic_id, pt.product_id, pt.unit_price, pt.quantity, pt.created_at, pt.updated_at,
                p.code AS product_code, p.name AS product_name
                FROM product_tariffs pt
                JOIN products p ON p.id = pt.product_id
                WHERE pt.clinic_id = ?
                ORDER BY p.name, pt.id`), clinicID)
	if err != nil {
		return nil, fmt.Errorf("list tariffs of clinic %d: %w", clinicID, err)
	}
	return tariffs, nil
}

// DeleteTariff removes a tariff that no stock history references.
func (s *Service) DeleteTariff(ctx context.Context, tariffID int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := getTariff(ctx, tx, tariffID); err != nil {
			return err
		}
		var inUse bool
		err := tx.GetContext(ctx, &inUse, tx.Rebind(`SELECT
                EXISTS (SELECT 1 FROM order_lines WHERE product_tariff_id = ?)
                OR EXISTS (SELECT 1 FROM inventory_detail_lines WHERE product_tariff_id = ?)
                OR EXISTS (SELECT 1 FROM stock_adjustments WHERE product_tariff_id = ?)`), tariffID, tariffID, tariffID)
		if err != nil {
			return fmt.Errorf("check tariff %d references: %w", tariffID, err)
		}
		if inUse {
			return fmt.Errorf("tariff %d: %w", tariffID, domain.ErrTariffInUse)
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM product_tariffs WHERE id = ?`), tariffID); err != nil {
			return fmt.Errorf("delete tariff %d: %w", tariffID, err)
		}
		return nil
	})
}
