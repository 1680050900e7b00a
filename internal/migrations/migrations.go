package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Bando358/ecmis-sub006/internal/database"
)

// Run creates the schema for the driver behind db. Statements are idempotent.
func Run(db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == database.DriverPostgres {
		schema = postgresSchema
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS clinics (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            clinic_id INTEGER REFERENCES clinics(id),
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS products (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            code TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT ''
        );`,
	`CREATE TABLE IF NOT EXISTS product_tariffs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            clinic_id INTEGER NOT NULL REFERENCES clinics(id),
            product_id INTEGER NOT NULL REFERENCES products(id),
            unit_price INTEGER NOT NULL CHECK (unit_price >= 0),
            quantity INTEGER NOT NULL CHECK (quantity >= 0),
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            UNIQUE(product_id, clinic_id)
        );`,
	`CREATE TABLE IF NOT EXISTS replenishment_orders (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            clinic_id INTEGER NOT NULL REFERENCES clinics(id),
            order_date TEXT NOT NULL,
            status TEXT NOT NULL,
            created_by INTEGER NOT NULL,
            created_at TEXT NOT NULL,
            closed_at TEXT
        );`,
	`CREATE TABLE IF NOT EXISTS order_lines (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            order_id INTEGER NOT NULL REFERENCES replenishment_orders(id),
            product_tariff_id INTEGER NOT NULL REFERENCES product_tariffs(id),
            initial_quantity INTEGER NOT NULL,
            quantity_ordered INTEGER NOT NULL CHECK (quantity_ordered > 0),
            user_id INTEGER NOT NULL,
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS inventory_events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            clinic_id INTEGER NOT NULL REFERENCES clinics(id),
            count_date TEXT NOT NULL,
            user_id INTEGER NOT NULL,
            status TEXT NOT NULL,
            created_at TEXT NOT NULL,
            closed_at TEXT,
            UNIQUE(clinic_id, count_date)
        );`,
	`CREATE TABLE IF NOT EXISTS inventory_detail_lines (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            event_id INTEGER NOT NULL REFERENCES inventory_events(id),
            product_tariff_id INTEGER NOT NULL REFERENCES product_tariffs(id),
            theoretical INTEGER NOT NULL,
            actual INTEGER NOT NULL CHECK (actual >= 0),
            variance INTEGER NOT NULL,
            created_at TEXT NOT NULL,
            UNIQUE(event_id, product_tariff_id)
        );`,
	`CREATE TABLE IF NOT EXISTS anomalies (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            detail_line_id INTEGER NOT NULL REFERENCES inventory_detail_lines(id),
            category TEXT NOT NULL,
            description TEXT NOT NULL,
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS stock_adjustments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            product_tariff_id INTEGER NOT NULL REFERENCES product_tariffs(id),
            initial_quantity INTEGER NOT NULL,
            delta INTEGER NOT NULL,
            reason TEXT NOT NULL,
            user_id INTEGER NOT NULL,
            detail_line_id INTEGER REFERENCES inventory_detail_lines(id),
            created_at TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_id);`,
	`CREATE INDEX IF NOT EXISTS idx_detail_lines_event ON inventory_detail_lines(event_id);`,
	`CREATE INDEX IF NOT EXISTS idx_anomalies_line ON anomalies(detail_line_id);`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS clinics (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            address TEXT NOT NULL DEFAULT '',
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            clinic_id BIGINT REFERENCES clinics(id),
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS products (
            id BIGSERIAL PRIMARY KEY,
            code TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT ''
        );`,
	`CREATE TABLE IF NOT EXISTS product_tariffs (
            id BIGSERIAL PRIMARY KEY,
            clinic_id BIGINT NOT NULL REFERENCES clinics(id),
            product_id BIGINT NOT NULL REFERENCES products(id),
            unit_price BIGINT NOT NULL CHECK (unit_price >= 0),
            quantity BIGINT NOT NULL CHECK (quantity >= 0),
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            UNIQUE(product_id, clinic_id)
        );`,
	`CREATE TABLE IF NOT EXISTS replenishment_orders (
            id BIGSERIAL PRIMARY KEY,
            clinic_id BIGINT NOT NULL REFERENCES clinics(id),
            order_date TEXT NOT NULL,
            status TEXT NOT NULL,
            created_by BIGINT NOT NULL,
            created_at TEXT NOT NULL,
            closed_at TEXT
        );`,
	`CREATE TABLE IF NOT EXISTS order_lines (
            id BIGSERIAL PRIMARY KEY,
            order_id BIGINT NOT NULL REFERENCES replenishment_orders(id),
            product_tariff_id BIGINT NOT NULL REFERENCES product_tariffs(id),
            initial_quantity BIGINT NOT NULL,
            quantity_ordered BIGINT NOT NULL CHECK (quantity_ordered > 0),
            user_id BIGINT NOT NULL,
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS inventory_events (
            id BIGSERIAL PRIMARY KEY,
            clinic_id BIGINT NOT NULL REFERENCES clinics(id),
            count_date TEXT NOT NULL,
            user_id BIGINT NOT NULL,
            status TEXT NOT NULL,
            created_at TEXT NOT NULL,
            closed_at TEXT,
            UNIQUE(clinic_id, count_date)
        );`,
	`CREATE TABLE IF NOT EXISTS inventory_detail_lines (
            id BIGSERIAL PRIMARY KEY,
            event_id BIGINT NOT NULL REFERENCES inventory_events(id),
            product_tariff_id BIGINT NOT NULL REFERENCES product_tariffs(id),
            theoretical BIGINT NOT NULL,
            actual BIGINT NOT NULL CHECK (actual >= 0),
            variance BIGINT NOT NULL,
            created_at TEXT NOT NULL,
            UNIQUE(event_id, product_tariff_id)
        );`,
	`CREATE TABLE IF NOT EXISTS anomalies (
            id BIGSERIAL PRIMARY KEY,
            detail_line_id BIGINT NOT NULL REFERENCES inventory_detail_lines(id),
            category TEXT NOT NULL,
            description TEXT NOT NULL,
            created_at TEXT NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS stock_adjustments (
            id BIGSERIAL PRIMARY KEY,
            product_tariff_id BIGINT NOT NULL REFERENCES product_tariffs(id),
            initial_quantity BIGINT NOT NULL,
            delta BIGINT NOT NULL,
            reason TEXT NOT NULL,
            user_id BIGINT NOT NULL,
            detail_line_id BIGINT REFERENCES inventory_detail_lines(id),
            created_at TEXT NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_order_lines_order ON order_lines(order_id);`,
	`CREATE INDEX IF NOT EXISTS idx_detail_lines_event ON inventory_detail_lines(event_id);`,
	`CREATE INDEX IF NOT EXISTS idx_anomalies_line ON anomalies(detail_line_id);`,
}
