// Package directory exposes read-only lookups of the clinic, product and
// user records owned by the surrounding application.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Bando358/ecmis-sub006/domain"
)

// Clinics looks up clinics by id.
type Clinics interface {
	Clinic(ctx context.Context, id int64) (domain.Clinic, error)
}

// Products looks up catalog entries by id.
type Products interface {
	Product(ctx context.Context, id int64) (domain.Product, error)
}

// Users looks up staff identities for audit attribution.
type Users interface {
	User(ctx context.Context, id int64) (domain.User, error)
}

// Directory implements every lookup over the application database.
type Directory struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) Clinic(ctx context.Context, id int64) (domain.Clinic, error) {
	var clinic domain.Clinic
	err := d.db.GetContext(ctx, &clinic, d.db.Rebind(`SELECT id, name, address, created_at FROM clinics WHERE id = ?`), id)
	return clinic, notFound(err, "clinic", id)
}

func (d *Directory) Product(ctx context.Context, id int64) (domain.Product, error) {
	var product domain.Product
	err := d.db.GetContext(ctx, &product, d.db.Rebind(`SELECT id, code, name, description FROM products WHERE id = ?`), id)
	return product, notFound(err, "product", id)
}

// User never returns the password hash.
func (d *Directory) User(ctx context.Context, id int64) (domain.User, error) {
	var user domain.User
	err := d.db.GetContext(ctx, &user, d.db.Rebind(`SELECT id, username, email, role, clinic_id, created_at FROM users WHERE id = ?`), id)
	return user, notFound(err, "user", id)
}

// ListClinics returns every clinic ordered by name.
func (d *Directory) ListClinics(ctx context.Context) ([]domain.Clinic, error) {
	clinics := []domain.Clinic{}
	if err := d.db.SelectContext(ctx, &clinics, `SELECT id, name, address, created_at FROM clinics ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list clinics: %w", err)
	}
	return clinics, nil
}

// SearchProducts matches code or name, case-insensitively; an empty query
// returns the first entries of the catalog.
func (d *Directory) SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 25
	}
	products := []domain.Product{}
	var err error
	if query == "" {
		err = d.db.SelectContext(ctx, &products, d.db.Rebind(`SELECT id, code, name, description FROM products ORDER BY name LIMIT ?`), limit)
	} else {
		like := "%" + query + "%"
		err = d.db.SelectContext(ctx, &products, d.db.Rebind(`SELECT id, code, name, description FROM products
                WHERE LOWER(name) LIKE LOWER(?) OR LOWER(code) LIKE LOWER(?)
                ORDER BY name LIMIT ?`), like, like, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

func notFound(err error, kind string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load %s %d: %w", kind, id, err)
	}
	return nil
}
