// Package catalog expone el catálogo de productos con un cache de lectura.
package catalog

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/mercadorhq/mercador/internal/observability/logger"
	"github.com/mercadorhq/mercador/internal/store"
)

// =================================================================================
// CATALOG SERVICE
// =================================================================================

const (
	cacheKeyActiveList = "products:active"
	cacheKeyFullList   = "products:all"

	defaultCacheTTL = 60 * time.Second
	cacheJanitor    = 5 * time.Minute
)

// Deps son las dependencias del servicio de catálogo.
type Deps struct {
	Products store.ProductRepository

	// CacheTTL controla cuánto viven los listados en cache. Cero usa el default.
	CacheTTL time.Duration
}

// Service es la API del catálogo. Las lecturas de listado pasan por un cache
// in-memory; toda escritura lo invalida.
type Service interface {
	List(ctx context.Context, onlyActive bool) ([]store.Product, error)
	GetByID(ctx context.Context, id string) (*store.Product, error)
	GetBySlug(ctx context.Context, slug string) (*store.Product, error)
	Create(ctx context.Context, in store.CreateProductInput) (*store.Product, error)
	Update(ctx context.Context, id string, in store.UpdateProductInput) (*store.Product, error)
	Delete(ctx context.Context, id string) error
}

type service struct {
	deps  Deps
	cache *gocache.Cache
	ttl   time.Duration
}

// New crea el servicio de catálogo.
func New(deps Deps) Service {
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &service{
		deps:  deps,
		cache: gocache.New(ttl, cacheJanitor),
		ttl:   ttl,
	}
}

func (s *service) List(ctx context.Context, onlyActive bool) ([]store.Product, error) {
	key := cacheKeyFullList
	if onlyActive {
		key = cacheKeyActiveList
	}

	if cached, ok := s.cache.Get(key); ok {
		if products, ok := cached.([]store.Product); ok {
			return products, nil
		}
	}

	products, err := s.deps.Products.List(ctx, onlyActive)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	s.cache.Set(key, products, s.ttl)
	return products, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*store.Product, error) {
	return s.deps.Products.GetByID(ctx, id)
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*store.Product, error) {
	return s.deps.Products.GetBySlug(ctx, slug)
}

func (s *service) Create(ctx context.Context, in store.CreateProductInput) (*store.Product, error) {
	product, err := s.deps.Products.Create(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}
	s.invalidate(ctx)

	logger.From(ctx).Info("product created",
		logger.Component("catalog.service"),
		logger.ProductID(product.ID),
		logger.String("slug", product.Slug),
	)
	return product, nil
}

func (s *service) Update(ctx context.Context, id string, in store.UpdateProductInput) (*store.Product, error) {
	product, err := s.deps.Products.Update(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("updating product: %w", err)
	}
	s.invalidate(ctx)

	logger.From(ctx).Info("product updated",
		logger.Component("catalog.service"),
		logger.ProductID(product.ID),
	)
	return product, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	if err := s.deps.Products.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting product: %w", err)
	}
	s.invalidate(ctx)

	logger.From(ctx).Info("product deleted",
		logger.Component("catalog.service"),
		logger.ProductID(id),
	)
	return nil
}

// invalidate borra los listados cacheados después de cualquier escritura.
func (s *service) invalidate(ctx context.Context) {
	s.cache.Delete(cacheKeyActiveList)
	s.cache.Delete(cacheKeyFullList)
	logger.From(ctx).Debug("catalog cache invalidated", logger.Component("catalog.service"))
}
