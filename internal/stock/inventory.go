package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Bando358/ecmis-sub006/domain"
	"github.com/Bando358/ecmis-sub006/internal/database"
)

// StartInventoryEvent opens the count of a clinic for a calendar date. A
// zero date means today. The unique (clinic, date) index rejects duplicates,
// including concurrent ones.
func (s *Service) StartInventoryEvent(ctx context.Context, clinicID int64, date time.Time, userID int64) (domain.InventoryEvent, error) {
	if _, err := s.dir.Clinic(ctx, clinicID); err != nil {
		return domain.InventoryEvent{}, err
	}

	event := domain.InventoryEvent{
		ClinicID:  clinicID,
		CountDate: s.calendarDate(date),
		UserID:    userID,
		Status:    domain.StatusOpen,
		CreatedAt: s.stamp(),
	}
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`INSERT INTO inventory_events (clinic_id, count_date, user_id, status, created_at)
                VALUES (?, ?, ?, ?, ?) RETURNING id`),
		event.ClinicID, event.CountDate, event.UserID, event.Status, event.CreatedAt).Scan(&event.ID)
	if database.IsUniqueViolation(err) {
		return domain.InventoryEvent{}, fmt.Errorf("clinic %d on %s: %w", clinicID, event.CountDate, domain.ErrDuplicateInventoryEvent)
	}
	if err != nil {
		return domain.InventoryEvent{}, fmt.Errorf("start inventory event: %w", err)
	}

	s.log.WithFields(logrus.Fields{"event_id": event.ID, "clinic_id": clinicID, "count_date": event.CountDate}).Info("inventory event started")
	return event, nil
}

// RecordInventoryLine stores the count of one tariff. The theoretical value
// is read from the ledger when the line is recorded, not when the event
// started. The ledger itself is never changed here. Once every tariff of the
// clinic has a line the event closes.
func (s *Service) RecordInventoryLine(ctx context.Context, eventID, tariffID, actual int64) (domain.InventoryDetailLine, error) {
	if actual < 0 {
		return domain.InventoryDetailLine{}, fmt.Errorf("actual quantity %d: %w", actual, domain.ErrInvalidQuantity)
	}

	var (
		line   domain.InventoryDetailLine
		closed bool
	)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		event, err := lockOpenEvent(ctx, tx, eventID)
		if err != nil {
			return err
		}
		tariff, err := getTariff(ctx, tx, tariffID)
		if err != nil {
			return err
		}
		if tariff.ClinicID != event.ClinicID {
			return fmt.Errorf("tariff %d in event %d: %w", tariffID, eventID, domain.ErrClinicMismatch)
		}

		theoretical, err := s.ledger.CurrentQuantity(ctx, tx, tariffID)
		if err != nil {
			return err
		}
		line = domain.InventoryDetailLine{
			EventID:         eventID,
			ProductTariffID: tariffID,
			Theoretical:     theoretical,
			Actual:          actual,
			Variance:        actual - theoretical,
			CreatedAt:       s.stamp(),
		}
		err = tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO inventory_detail_lines (event_id, product_tariff_id, theoretical, actual, variance, created_at)
                VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
			line.EventID, line.ProductTariffID, line.Theoretical, line.Actual, line.Variance, line.CreatedAt).Scan(&line.ID)
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("tariff %d in event %d: %w", tariffID, eventID, domain.ErrDuplicateCountLine)
		}
		if err != nil {
			return fmt.Errorf("insert inventory line: %w", err)
		}

		line.Anomalies = []domain.Anomaly{}
		for _, found := range s.detector.Classify(line.Theoretical, line.Actual, line.Variance) {
			found.DetailLineID = line.ID
			found.CreatedAt = line.CreatedAt
			err := tx.QueryRowxContext(ctx, tx.Rebind(`INSERT INTO anomalies (detail_line_id, category, description, created_at)
                VALUES (?, ?, ?, ?) RETURNING id`),
				found.DetailLineID, found.Category, found.Description, found.CreatedAt).Scan(&found.ID)
			if err != nil {
				return fmt.Errorf("insert anomaly: %w", err)
			}
			line.Anomalies = append(line.Anomalies, found)
		}

		closed, err = s.closeWhenComplete(ctx, tx, event)
		return err
	})
	if err != nil {
		return domain.InventoryDetailLine{}, err
	}

	entry := s.log.WithFields(logrus.Fields{
		"event_id":    eventID,
		"tariff_id":   tariffID,
		"theoretical": line.Theoretical,
		"actual":      line.Actual,
		"variance":    line.Variance,
	})
	if len(line.Anomalies) > 0 {
		entry.Warn("inventory variance detected")
	} else {
		entry.Info("inventory line recorded")
	}
	if closed {
		s.log.WithField("event_id", eventID).Info("inventory event complete")
	}
	return line, nil
}

func (s *Service) closeWhenComplete(ctx context.Context, tx *sqlx.Tx, event domain.InventoryEvent) (bool, error) {
	var expected, counted int
	if err := tx.GetContext(ctx, &expected, tx.Rebind(`SELECT COUNT(*) FROM product_tariffs WHERE clinic_id = ?`), event.ClinicID); err != nil {
		return false, fmt.Errorf("count clinic tariffs: %w", err)
	}
	if err := tx.GetContext(ctx, &counted, tx.Rebind(`SELECT COUNT(*) FROM inventory_detail_lines WHERE event_id = ?`), event.ID); err != nil {
		return false, fmt.Errorf("count event lines: %w", err)
	}
	if counted < expected {
		return false, nil
	}
	_, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE inventory_events SET status = ?, closed_at = ? WHERE id = ? AND status = ?`),
		domain.StatusClosed, s.stamp(), event.ID, domain.StatusOpen)
	if err != nil {
		return false, fmt.Errorf("close inventory event %d: %w", event.ID, err)
	}
	return true, nil
}

// CloseInventoryEvent ends a count before every product was counted.
func (s *Service) CloseInventoryEvent(ctx context.Context, eventID int64) (domain.InventoryEvent, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE inventory_events SET status = ?, closed_at = ? WHERE id = ? AND status = ?`),
		domain.StatusClosed, s.stamp(), eventID, domain.StatusOpen)
	if err != nil {
		return domain.InventoryEvent{}, fmt.Errorf("close inventory event %d: %w", eventID, err)
	}
	event, err := getEvent(ctx, s.db, eventID)
	if err != nil {
		return domain.InventoryEvent{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.InventoryEvent{}, fmt.Errorf("inventory event %d: %w", eventID, domain.ErrEventClosed)
	}
	return event, nil
}

// GetInventoryEvent returns an event with its lines and their anomalies.
func (s *Service) GetInventoryEvent(ctx context.Context, eventID int64) (domain.InventoryEventDetail, error) {
	event, err := getEvent(ctx, s.db, eventID)
	if err != nil {
		return domain.InventoryEventDetail{}, err
	}

	lines := []domain.InventoryDetailLine{}
	err = s.db.SelectContext(ctx, &lines, s.db.Rebind(`SELECT id, event_id, product_tariff_id, theoretical, actual, variance, created_at
                FROM inventory_detail_lines WHERE event_id = ? ORDER BY id`), eventID)
	if err != nil {
		return domain.InventoryEventDetail{}, fmt.Errorf("load lines of inventory event %d: %w", eventID, err)
	}
	anomalies, err := s.eventAnomalies(ctx, eventID)
	if err != nil {
		return domain.InventoryEventDetail{}, err
	}

	byLine := make(map[int64][]domain.Anomaly)
	for _, a := range anomalies {
		byLine[a.DetailLineID] = append(byLine[a.DetailLineID], a)
	}
	for i := range lines {
		lines[i].Anomalies = byLine[lines[i].ID]
		if lines[i].Anomalies == nil {
			lines[i].Anomalies = []domain.Anomaly{}
		}
	}

	detail := domain.InventoryEventDetail{InventoryEvent: event, Lines: lines}
	if clinic, err := s.dir.Clinic(ctx, event.ClinicID); err == nil {
		detail.ClinicName = clinic.Name
	}
	return detail, nil
}

// ListAnomaliesByEvent returns every anomaly raised during an event.
func (s *Service) ListAnomaliesByEvent(ctx context.Context, eventID int64) ([]domain.Anomaly, error) {
	if _, err := getEvent(ctx, s.db, eventID); err != nil {
		return nil, err
	}
	return s.eventAnomalies(ctx, eventID)
}

// ListInventoryEventsByClinic returns the clinic's counts, newest first.
func (s *Service) ListInventoryEventsByClinic(ctx context.Context, clinicID int64) ([]domain.InventoryEvent, error) {
	if _, err := s.dir.Clinic(ctx, clinicID); err != nil {
		return nil, err
	}
	events := []domain.InventoryEvent{}
	err := s.db.SelectContext(ctx, &events, s.db.Rebind(`SELECT id, clinic_id, count_date, user_id, status, created_at, closed_at
                FROM inventory_events WHERE clinic_id = ?
                ORDER BY count_date DESC`), clinicID)
	if err != nil {
		return nil, fmt.Errorf("list inventory events of clinic %d: %w", clinicID, err)
	}
	return events, nil
}

func (s *Service) eventAnomalies(ctx context.Context, eventID int64) ([]domain.Anomaly, error) {
	anomalies := []domain.Anomaly{}
	err := s.db.SelectContext(ctx, &anomalies, s.db.Rebind(`SELECT a.id, a.detail_line_id, a.category, a.description, a.created_at
                FROM anomalies a
                JOIN inventory_detail_lines l ON l.id = a.detail_line_id
                WHERE l.event_id = ?
                ORDER BY a.id`), eventID)
	if err != nil {
		return nil, fmt.Errorf("load anomalies of inventory event %d: %w", eventID, err)
	}
	return anomalies, nil
}
