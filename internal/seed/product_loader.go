package seed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// LoadProductsFile ingests a catalog CSV (code,name,description) into the
// products table, ignoring codes that already exist.
func LoadProductsFile(db *sqlx.DB, csvPath string, logger logrus.FieldLogger) (int, error) {
	file, err := os.Open(csvPath)
	if err != nil {
		return 0, fmt.Errorf("open product catalog %s: %w", csvPath, err)
	}
	defer file.Close()
	return LoadProducts(db, file, logger)
}

// LoadProducts reads catalog rows from r in one transaction. Malformed rows
// are logged and skipped; a failed insert aborts the whole seed.
func LoadProducts(db *sqlx.DB, r io.Reader, logger logrus.FieldLogger) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	// Skip header
	if _, err := reader.Read(); err != nil {
		return 0, fmt.Errorf("read product header: %w", err)
	}

	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("start product transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(tx.Rebind(`INSERT INTO products (code, name, description) VALUES (?, ?, ?) ON CONFLICT (code) DO NOTHING`))
	if err != nil {
		return 0, fmt.Errorf("prepare product insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.WithError(err).Warn("unable to read product row")
			continue
		}
		if len(record) < 2 {
			continue
		}
		code := strings.TrimSpace(record[0])
		name := strings.TrimSpace(record[1])
		description := ""
		if len(record) > 2 {
			description = strings.TrimSpace(record[2])
		}
		if code == "" || name == "" {
			continue
		}

		res, err := stmt.Exec(code, name, description)
		if err != nil {
			return 0, fmt.Errorf("insert product %s: %w", code, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			rows++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit product seed: %w", err)
	}
	logger.WithField("rows", rows).Info("seeded product catalog")
	return rows, nil
}
