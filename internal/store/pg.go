// Implementaciones PostgreSQL de los repositorios (pgx/v5).
package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPG crea los repositorios sobre un pool pgx.
func NewPG(pool *pgxpool.Pool) Repositories {
	return Repositories{
		Profiles: &profileRepo{pool: pool},
		Products: &productRepo{pool: pool},
		Orders:   &orderRepo{pool: pool},
		Licenses: &licenseRepo{pool: pool},
	}
}

// ─── ProfileRepository ───

type profileRepo struct{ pool *pgxpool.Pool }

func (r *profileRepo) GetByID(ctx context.Context, id string) (*Profile, error) {
	const query = `
		SELECT id, email, role, deleted_at, created_at
		FROM profiles WHERE id = $1
	`
	var p Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.Email, &p.Role, &p.DeletedAt, &p.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepo) Upsert(ctx context.Context, id, email, role string) error {
	const query = `
		INSERT INTO profiles (id, email, role, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET email = $2
	`
	_, err := r.pool.Exec(ctx, query, id, email, role)
	return err
}

// ─── ProductRepository ───

type productRepo struct{ pool *pgxpool.Pool }

const productCols = `id, name, slug, description, price_cents, currency, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description,
		&p.PriceCents, &p.Currency, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) List(ctx context.Context, onlyActive bool) ([]Product, error) {
	query := `SELECT ` + productCols + ` FROM products`
	if onlyActive {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *productRepo) GetByID(ctx context.Context, id string) (*Product, error) {
	const query = `SELECT ` + productCols + ` FROM products WHERE id = $1`
	return scanProduct(r.pool.QueryRow(ctx, query, id))
}

func (r *productRepo) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	const query = `SELECT ` + productCols + ` FROM products WHERE slug = $1`
	return scanProduct(r.pool.QueryRow(ctx, query, slug))
}

func (r *productRepo) Create(ctx context.Context, in CreateProductInput) (*Product, error) {
	const query = `
		INSERT INTO products (id, name, slug, description, price_cents, currency, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + productCols
	id := uuid.NewString()
	return scanProduct(r.pool.QueryRow(ctx, query,
		id, in.Name, in.Slug, in.Description, in.PriceCents, in.Currency, in.Active,
	))
}

func (r *productRepo) Update(ctx context.Context, id string, in UpdateProductInput) (*Product, error) {
	const query = `
		UPDATE products
		SET name = $2, description = $3, price_cents = $4, currency = $5, active = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productCols
	return scanProduct(r.pool.QueryRow(ctx, query,
		id, in.Name, in.Description, in.PriceCents, in.Currency, in.Active,
	))
}

func (r *productRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── OrderRepository ───

type orderRepo struct{ pool *pgxpool.Pool }

const orderCols = `id, user_id, product_id, reference, status, amount_cents, currency, created_at, paid_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.ProductID, &o.Reference,
		&o.Status, &o.AmountCents, &o.Currency, &o.CreatedAt, &o.PaidAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) Create(ctx context.Context, in CreateOrderInput) (*Order, error) {
	const query = `
		INSERT INTO orders (id, user_id, product_id, reference, status, amount_cents, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING ` + orderCols
	id := uuid.NewString()
	return scanOrder(r.pool.QueryRow(ctx, query,
		id, in.UserID, in.ProductID, in.Reference, OrderStatusPending, in.AmountCents, in.Currency,
	))
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	const query = `SELECT ` + orderCols + ` FROM orders WHERE id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, id))
}

func (r *orderRepo) GetByReference(ctx context.Context, reference string) (*Order, error) {
	const query = `SELECT ` + orderCols + ` FROM orders WHERE reference = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, reference))
}

func (r *orderRepo) SetStatus(ctx context.Context, id, status string, paidAt *time.Time) error {
	const query = `UPDATE orders SET status = $2, paid_at = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, status, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	const query = `SELECT ` + orderCols + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// ─── LicenseRepository ───

type licenseRepo struct{ pool *pgxpool.Pool }

const licenseCols = `id, order_id, product_id, user_id, key, issued_at`

func scanLicense(row pgx.Row) (*License, error) {
	var l License
	err := row.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.UserID, &l.Key, &l.IssuedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *licenseRepo) Create(ctx context.Context, in CreateLicenseInput) (*License, error) {
	const query = `
		INSERT INTO licenses (id, order_id, product_id, user_id, key, issued_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + licenseCols
	id := uuid.NewString()
	return scanLicense(r.pool.QueryRow(ctx, query, id, in.OrderID, in.ProductID, in.UserID, in.Key))
}

func (r *licenseRepo) listBy(ctx context.Context, query, arg string) ([]License, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []License
	for rows.Next() {
		l, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (r *licenseRepo) ListByUser(ctx context.Context, userID string) ([]License, error) {
	const query = `SELECT ` + licenseCols + ` FROM licenses WHERE user_id = $1 ORDER BY issued_at DESC`
	return r.listBy(ctx, query, userID)
}

func (r *licenseRepo) ListByOrder(ctx context.Context, orderID string) ([]License, error) {
	const query = `SELECT ` + licenseCols + ` FROM licenses WHERE order_id = $1 ORDER BY issued_at`
	return r.listBy(ctx, query, orderID)
}
