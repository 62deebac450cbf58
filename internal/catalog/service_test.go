package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mercadorhq/mercador/internal/store"
)

// fakeProducts cuenta llamadas a List para verificar el cache.
type fakeProducts struct {
	products  []store.Product
	listCalls int
}

func (f *fakeProducts) List(ctx context.Context, onlyActive bool) ([]store.Product, error) {
	f.listCalls++
	if !onlyActive {
		return f.products, nil
	}
	var out []store.Product
	for _, p := range f.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) GetByID(ctx context.Context, id string) (*store.Product, error) {
	for i := range f.products {
		if f.products[i].ID == id {
			return &f.products[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeProducts) GetBySlug(ctx context.Context, slug string) (*store.Product, error) {
	for i := range f.products {
		if f.products[i].Slug == slug {
			return &f.products[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeProducts) Create(ctx context.Context, in store.CreateProductInput) (*store.Product, error) {
	p := store.Product{
		ID:         "prod-new",
		Name:       in.Name,
		Slug:       in.Slug,
		PriceCents: in.PriceCents,
		Currency:   in.Currency,
		Active:     in.Active,
	}
	f.products = append(f.products, p)
	return &p, nil
}

func (f *fakeProducts) Update(ctx context.Context, id string, in store.UpdateProductInput) (*store.Product, error) {
	for i := range f.products {
		if f.products[i].ID == id {
			f.products[i].Name = in.Name
			f.products[i].Active = in.Active
			return &f.products[i], nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeProducts) Delete(ctx context.Context, id string) error {
	for i := range f.products {
		if f.products[i].ID == id {
			f.products = append(f.products[:i], f.products[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func newTestCatalog() (Service, *fakeProducts) {
	repo := &fakeProducts{products: []store.Product{
		{ID: "prod-1", Name: "Mercador Pro", Slug: "mercador-pro", PriceCents: 50000, Currency: "COP", Active: true},
		{ID: "prod-2", Name: "Archivado", Slug: "archivado", PriceCents: 10000, Currency: "COP", Active: false},
	}}
	return New(Deps{Products: repo, CacheTTL: time.Minute}), repo
}

func TestList_SecondCallHitsCache(t *testing.T) {
	svc, repo := newTestCatalog()
	ctx := context.Background()

	first, err := svc.List(ctx, true)
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(first) != 1 || first[0].ID != "prod-1" {
		t.Fatalf("active list: %+v", first)
	}

	if _, err := svc.List(ctx, true); err != nil {
		t.Fatal(err)
	}
	if repo.listCalls != 1 {
		t.Fatalf("repo List calls: got %d, want 1 (second read cached)", repo.listCalls)
	}
}

func TestList_ActiveAndFullListsAreSeparateEntries(t *testing.T) {
	svc, repo := newTestCatalog()
	ctx := context.Background()

	active, _ := svc.List(ctx, true)
	full, _ := svc.List(ctx, false)
	if len(active) != 1 || len(full) != 2 {
		t.Fatalf("active=%d full=%d", len(active), len(full))
	}
	if repo.listCalls != 2 {
		t.Fatalf("repo List calls: got %d, want 2 (distinct cache keys)", repo.listCalls)
	}
}

func TestWrite_InvalidatesCache(t *testing.T) {
	svc, repo := newTestCatalog()
	ctx := context.Background()

	if _, err := svc.List(ctx, true); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Create(ctx, store.CreateProductInput{
		Name: "Nuevo", Slug: "nuevo", PriceCents: 1000, Currency: "COP", Active: true,
	})
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	// El listado posterior debe ir al repo, no al cache viejo.
	after, err := svc.List(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 2 {
		t.Fatalf("active list after create: got %d products, want 2", len(after))
	}
	if repo.listCalls != 2 {
		t.Fatalf("repo List calls: got %d, want 2", repo.listCalls)
	}
}

func TestDelete_InvalidatesCache(t *testing.T) {
	svc, repo := newTestCatalog()
	ctx := context.Background()

	if _, err := svc.List(ctx, false); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, "prod-2"); err != nil {
		t.Fatalf("Delete err: %v", err)
	}

	after, err := svc.List(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 {
		t.Fatalf("full list after delete: got %d, want 1", len(after))
	}
	if repo.listCalls != 2 {
		t.Fatalf("repo List calls: got %d, want 2", repo.listCalls)
	}
}

func TestGetByID_PassThrough(t *testing.T) {
	svc, _ := newTestCatalog()

	p, err := svc.GetByID(context.Background(), "prod-1")
	if err != nil || p.Slug != "mercador-pro" {
		t.Fatalf("GetByID: (%+v, %v)", p, err)
	}
	if _, err := svc.GetByID(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err: got %v, want ErrNotFound", err)
	}
}
