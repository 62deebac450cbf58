// Package store define los repositorios del data store primario (Postgres).
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indica que el registro no existe.
var ErrNotFound = errors.New("store: not found")

// ─── Tipos de dominio ───

// Profile es el perfil local de un usuario del Identity Provider.
// Role y el flag de soft-delete viven acá, no en el provider.
type Profile struct {
	ID        string
	Email     string
	Role      string // "customer" | "admin"
	DeletedAt *time.Time
	CreatedAt time.Time
}

// IsDeleted indica si el perfil fue soft-deleted.
func (p *Profile) IsDeleted() bool { return p.DeletedAt != nil }

// Product es un producto del catálogo (una licencia de software).
type Product struct {
	ID          string
	Name        string
	Slug        string
	Description string
	PriceCents  int64
	Currency    string // ISO 4217, ej. "COP"
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Estados de una orden.
const (
	OrderStatusPending  = "PENDING"
	OrderStatusPaid     = "PAID"
	OrderStatusDeclined = "DECLINED"
	OrderStatusVoided   = "VOIDED"
)

// Order es una orden de compra. Reference es la referencia única que
// viaja a la pasarela de pagos y vuelve en el webhook.
type Order struct {
	ID          string
	UserID      string
	ProductID   string
	Reference   string
	Status      string
	AmountCents int64
	Currency    string
	CreatedAt   time.Time
	PaidAt      *time.Time
}

// License es una clave de licencia emitida para una orden pagada.
type License struct {
	ID        string
	OrderID   string
	ProductID string
	UserID    string
	Key       string
	IssuedAt  time.Time
}

// ─── Inputs ───

// CreateProductInput son los datos para crear un producto.
type CreateProductInput struct {
	Name        string
	Slug        string
	Description string
	PriceCents  int64
	Currency    string
	Active      bool
}

// UpdateProductInput son los datos para actualizar un producto.
type UpdateProductInput struct {
	Name        string
	Description string
	PriceCents  int64
	Currency    string
	Active      bool
}

// CreateOrderInput son los datos para crear una orden PENDING.
type CreateOrderInput struct {
	UserID      string
	ProductID   string
	Reference   string
	AmountCents int64
	Currency    string
}

// CreateLicenseInput son los datos para emitir una licencia.
type CreateLicenseInput struct {
	OrderID   string
	ProductID string
	UserID    string
	Key       string
}

// ─── Repositorios ───

// ProfileRepository accede a perfiles de usuario.
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	Upsert(ctx context.Context, id, email, role string) error
}

// ProductRepository accede al catálogo.
type ProductRepository interface {
	List(ctx context.Context, onlyActive bool) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	Create(ctx context.Context, in CreateProductInput) (*Product, error)
	Update(ctx context.Context, id string, in UpdateProductInput) (*Product, error)
	Delete(ctx context.Context, id string) error
}

// OrderRepository accede a órdenes.
type OrderRepository interface {
	Create(ctx context.Context, in CreateOrderInput) (*Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByReference(ctx context.Context, reference string) (*Order, error)
	SetStatus(ctx context.Context, id, status string, paidAt *time.Time) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}

// LicenseRepository accede a licencias emitidas.
type LicenseRepository interface {
	Create(ctx context.Context, in CreateLicenseInput) (*License, error)
	ListByUser(ctx context.Context, userID string) ([]License, error)
	ListByOrder(ctx context.Context, orderID string) ([]License, error)
}

// Repositories agrupa todos los repositorios del data store.
type Repositories struct {
	Profiles ProfileRepository
	Products ProductRepository
	Orders   OrderRepository
	Licenses LicenseRepository
}
