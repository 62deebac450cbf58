package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mercadorhq/mercador/internal/store"
)

// ─── Fakes ───

type fakeOrders struct {
	byID   map[string]*store.Order
	byRef  map[string]*store.Order
	status map[string]string
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		byID:   map[string]*store.Order{},
		byRef:  map[string]*store.Order{},
		status: map[string]string{},
	}
}

func (f *fakeOrders) add(o *store.Order) {
	f.byID[o.ID] = o
	f.byRef[o.Reference] = o
}

func (f *fakeOrders) Create(ctx context.Context, in store.CreateOrderInput) (*store.Order, error) {
	o := &store.Order{
		ID:          "order-" + in.Reference,
		UserID:      in.UserID,
		ProductID:   in.ProductID,
		Reference:   in.Reference,
		Status:      store.OrderStatusPending,
		AmountCents: in.AmountCents,
		Currency:    in.Currency,
		CreatedAt:   time.Now(),
	}
	f.add(o)
	return o, nil
}

func (f *fakeOrders) GetByID(ctx context.Context, id string) (*store.Order, error) {
	if o, ok := f.byID[id]; ok {
		return o, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeOrders) GetByReference(ctx context.Context, reference string) (*store.Order, error) {
	if o, ok := f.byRef[reference]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeOrders) SetStatus(ctx context.Context, id, status string, paidAt *time.Time) error {
	o, ok := f.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	o.Status = status
	o.PaidAt = paidAt
	f.status[id] = status
	return nil
}

func (f *fakeOrders) ListByUser(ctx context.Context, userID string) ([]store.Order, error) {
	var out []store.Order
	for _, o := range f.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakeProducts struct {
	products map[string]*store.Product
}

func (f *fakeProducts) List(ctx context.Context, onlyActive bool) ([]store.Product, error) {
	return nil, nil
}
func (f *fakeProducts) GetByID(ctx context.Context, id string) (*store.Product, error) {
	if p, ok := f.products[id]; ok {
		return p, nil
	}
	return nil, store.ErrNotFound
}
func (f *fakeProducts) GetBySlug(ctx context.Context, slug string) (*store.Product, error) {
	return nil, store.ErrNotFound
}
func (f *fakeProducts) Create(ctx context.Context, in store.CreateProductInput) (*store.Product, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeProducts) Update(ctx context.Context, id string, in store.UpdateProductInput) (*store.Product, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeProducts) Delete(ctx context.Context, id string) error { return nil }

// fakeLicenses cuenta emisiones para verificar idempotencia.
type fakeLicenses struct {
	issued int
}

func (f *fakeLicenses) IssueForOrder(ctx context.Context, order *store.Order) (*store.License, error) {
	f.issued++
	return &store.License{
		ID:        "lic-1",
		OrderID:   order.ID,
		ProductID: order.ProductID,
		UserID:    order.UserID,
		Key:       "MERC-AAAA-BBBB-CCCC-DDDD",
		IssuedAt:  time.Now(),
	}, nil
}

func (f *fakeLicenses) ListByUser(ctx context.Context, userID string) ([]store.License, error) {
	return nil, nil
}

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) SendPurchaseConfirmation(ctx context.Context, order *store.Order, license *store.License) error {
	f.calls++
	return f.err
}

// ─── Helpers ───

func newTestCheckout(t *testing.T) (Service, *fakeOrders, *fakeProducts, *fakeLicenses, *fakeNotifier) {
	t.Helper()

	orders := newFakeOrders()
	products := &fakeProducts{products: map[string]*store.Product{
		"prod-1": {ID: "prod-1", Name: "Mercador Pro", Slug: "mercador-pro", PriceCents: 50000, Currency: "COP", Active: true},
		"prod-2": {ID: "prod-2", Name: "Descontinuado", Slug: "viejo", PriceCents: 10000, Currency: "COP", Active: false},
	}}
	lics := &fakeLicenses{}
	notifier := &fakeNotifier{}

	svc := New(Deps{
		Orders:            orders,
		Products:          products,
		Licenses:          lics,
		Notifier:          notifier,
		WompiEventsSecret: testEventsSecret,
	})
	return svc, orders, products, lics, notifier
}

// signedBody serializa un evento firmado para HandleWompiEvent.
func signedBody(t *testing.T, status, reference string, amountCents int64) []byte {
	t.Helper()
	body, err := json.Marshal(signedEvent(status, reference, amountCents))
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func pendingOrder(reference string, amountCents int64) *store.Order {
	return &store.Order{
		ID:          "order-1",
		UserID:      "user-1",
		ProductID:   "prod-1",
		Reference:   reference,
		Status:      store.OrderStatusPending,
		AmountCents: amountCents,
		Currency:    "COP",
		CreatedAt:   time.Now(),
	}
}

// ─── Tests ───

func TestCreateOrder(t *testing.T) {
	svc, _, _, _, _ := newTestCheckout(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, "user-1", "prod-1")
	if err != nil {
		t.Fatalf("CreateOrder err: %v", err)
	}
	if order.Status != store.OrderStatusPending {
		t.Fatalf("status: got %q, want PENDING", order.Status)
	}
	if order.AmountCents != 50000 || order.Currency != "COP" {
		t.Fatalf("order snapshot: %+v", order)
	}
	if !strings.HasPrefix(order.Reference, "mercador-") {
		t.Fatalf("reference: %q", order.Reference)
	}
}

func TestCreateOrder_InactiveProduct(t *testing.T) {
	svc, _, _, _, _ := newTestCheckout(t)

	_, err := svc.CreateOrder(context.Background(), "user-1", "prod-2")
	if !errors.Is(err, ErrProductInactive) {
		t.Fatalf("err: got %v, want ErrProductInactive", err)
	}
}

func TestHandleWompiEvent_ApprovedIssuesLicenseAndNotifies(t *testing.T) {
	svc, orders, _, lics, notifier := newTestCheckout(t)
	ctx := context.Background()

	orders.add(pendingOrder("mercador-ref-1", 50000))

	result, err := svc.HandleWompiEvent(ctx, signedBody(t, WompiStatusApproved, "mercador-ref-1", 50000))
	if err != nil {
		t.Fatalf("HandleWompiEvent err: %v", err)
	}
	if !result.Processed || result.Status != store.OrderStatusPaid {
		t.Fatalf("result: %+v", result)
	}
	if orders.status["order-1"] != store.OrderStatusPaid {
		t.Fatalf("order status: %q", orders.status["order-1"])
	}
	if lics.issued != 1 {
		t.Fatalf("licenses issued: got %d, want 1", lics.issued)
	}
	if notifier.calls != 1 {
		t.Fatalf("notifier calls: got %d, want 1", notifier.calls)
	}
}

func TestHandleWompiEvent_RedeliveryIsIgnored(t *testing.T) {
	svc, orders, _, lics, notifier := newTestCheckout(t)
	ctx := context.Background()

	orders.add(pendingOrder("mercador-ref-1", 50000))
	body := signedBody(t, WompiStatusApproved, "mercador-ref-1", 50000)

	if _, err := svc.HandleWompiEvent(ctx, body); err != nil {
		t.Fatal(err)
	}
	// Reentrega del mismo evento: la orden ya es terminal.
	result, err := svc.HandleWompiEvent(ctx, body)
	if err != nil {
		t.Fatalf("redelivery err: %v", err)
	}
	if result.Processed {
		t.Fatal("redelivery must not be processed again")
	}
	if lics.issued != 1 || notifier.calls != 1 {
		t.Fatalf("side effects duplicated: licenses=%d, emails=%d", lics.issued, notifier.calls)
	}
}

func TestHandleWompiEvent_NotifierFailureDoesNotFailEvent(t *testing.T) {
	svc, orders, _, lics, notifier := newTestCheckout(t)
	notifier.err = errors.New("smtp down")
	ctx := context.Background()

	orders.add(pendingOrder("mercador-ref-1", 50000))

	result, err := svc.HandleWompiEvent(ctx, signedBody(t, WompiStatusApproved, "mercador-ref-1", 50000))
	if err != nil {
		t.Fatalf("HandleWompiEvent err: %v", err)
	}
	if !result.Processed || lics.issued != 1 {
		t.Fatalf("payment must land even if the email fails: %+v", result)
	}
}

func TestHandleWompiEvent_UnknownReference(t *testing.T) {
	svc, _, _, _, _ := newTestCheckout(t)

	_, err := svc.HandleWompiEvent(context.Background(), signedBody(t, WompiStatusApproved, "ref-fantasma", 50000))
	if !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("err: got %v, want ErrUnknownOrder", err)
	}
}

func TestHandleWompiEvent_AmountMismatch(t *testing.T) {
	svc, orders, _, lics, _ := newTestCheckout(t)
	ctx := context.Background()

	orders.add(pendingOrder("mercador-ref-1", 99999))

	_, err := svc.HandleWompiEvent(ctx, signedBody(t, WompiStatusApproved, "mercador-ref-1", 50000))
	if !errors.Is(err, ErrAmountMismatch) {
		t.Fatalf("err: got %v, want ErrAmountMismatch", err)
	}
	if orders.status["order-1"] != "" || lics.issued != 0 {
		t.Fatal("mismatched event must not mutate anything")
	}
}

func TestHandleWompiEvent_InvalidChecksum(t *testing.T) {
	svc, orders, _, _, _ := newTestCheckout(t)
	ctx := context.Background()

	orders.add(pendingOrder("mercador-ref-1", 50000))

	e := signedEvent(WompiStatusApproved, "mercador-ref-1", 50000)
	e.Signature.Checksum = strings.Repeat("0", 64)
	body, _ := json.Marshal(e)

	_, err := svc.HandleWompiEvent(ctx, body)
	if !errors.Is(err, ErrInvalidChecksum) {
		t.Fatalf("err: got %v, want ErrInvalidChecksum", err)
	}
	if orders.status["order-1"] != "" {
		t.Fatal("invalid signature must not mutate the order")
	}
}

func TestHandleWompiEvent_DeclinedAndVoided(t *testing.T) {
	cases := []struct {
		wompi string
		want  string
	}{
		{WompiStatusDeclined, store.OrderStatusDeclined},
		{WompiStatusError, store.OrderStatusDeclined},
		{WompiStatusVoided, store.OrderStatusVoided},
	}
	for _, tc := range cases {
		svc, orders, _, lics, notifier := newTestCheckout(t)
		orders.add(pendingOrder("mercador-ref-1", 50000))

		result, err := svc.HandleWompiEvent(context.Background(), signedBody(t, tc.wompi, "mercador-ref-1", 50000))
		if err != nil {
			t.Fatalf("%s: err: %v", tc.wompi, err)
		}
		if !result.Processed || result.Status != tc.want {
			t.Fatalf("%s: result: %+v", tc.wompi, result)
		}
		if lics.issued != 0 || notifier.calls != 0 {
			t.Fatalf("%s: non-approved event produced side effects", tc.wompi)
		}
	}
}

func TestHandleWompiEvent_UnknownStatusIgnored(t *testing.T) {
	svc, orders, _, _, _ := newTestCheckout(t)
	orders.add(pendingOrder("mercador-ref-1", 50000))

	result, err := svc.HandleWompiEvent(context.Background(), signedBody(t, "PENDING", "mercador-ref-1", 50000))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if result.Processed {
		t.Fatal("unknown status must be ignored, not processed")
	}
	if orders.status["order-1"] != "" {
		t.Fatal("unknown status must not mutate the order")
	}
}

func TestGetOrder_ForeignOrderIsNotFound(t *testing.T) {
	svc, orders, _, _, _ := newTestCheckout(t)
	orders.add(pendingOrder("mercador-ref-1", 50000))

	if _, err := svc.GetOrder(context.Background(), "user-1", "order-1"); err != nil {
		t.Fatalf("owner lookup err: %v", err)
	}
	if _, err := svc.GetOrder(context.Background(), "otro-user", "order-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign lookup: got %v, want ErrNotFound", err)
	}
}
