package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/localstore-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/localstore-backend/pkg/errors"
	"github.com/angelmondragon/localstore-backend/pkg/logger"
	"github.com/angelmondragon/localstore-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type stubCatalog struct {
	mu       sync.Mutex
	products map[uuid.UUID]*catalog.Snapshot
	err      error
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{products: map[uuid.UUID]*catalog.Snapshot{}}
}

func (s *stubCatalog) put(price string, stock int) uuid.UUID {
	id := uuid.New()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[id] = &catalog.Snapshot{ID: id, Price: decimal.RequireFromString(price), Stock: stock, IsActive: true}
	return id
}

func (s *stubCatalog) update(id uuid.UUID, fn func(*catalog.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.products[id])
}

func (s *stubCatalog) GetProduct(_ context.Context, id uuid.UUID) (*catalog.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, catalog.ErrProductNotFound, "product not found")
	}
	copied := *p
	return &copied, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct {
	*MemoryStore
	saveErr error
	loadErr error
}

func (f *failingStore) Load(ctx context.Context, key string) (*Aggregate, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.MemoryStore.Load(ctx, key)
}

func (f *failingStore) Save(ctx context.Context, agg *Aggregate) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.MemoryStore.Save(ctx, agg)
}

type fixture struct {
	svc     Service
	store   *MemoryStore
	catalog *stubCatalog
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewMemoryStore()
	products := newStubCatalog()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc, err := NewService(store, products, NewLocalLocker(), Options{Now: clock.Now})
	require.NoError(t, err)
	return &fixture{svc: svc, store: store, catalog: products, clock: clock}
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "unexpected error %v", err)
}

func assertTotalsConsistent(t *testing.T, agg *Aggregate) {
	t.Helper()
	count, amount := RecomputeTotals(agg.Items)
	assert.Equal(t, count, agg.TotalItems)
	assert.True(t, amount.Equal(agg.TotalAmount), "total %s != %s", agg.TotalAmount, amount)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, newStubCatalog(), NewLocalLocker(), Options{})
	require.Error(t, err)
	_, err = NewService(NewMemoryStore(), nil, NewLocalLocker(), Options{})
	require.Error(t, err)
	_, err = NewService(NewMemoryStore(), newStubCatalog(), nil, Options{})
	require.Error(t, err)
}

func TestGetUnknownKeyReturnsEmptyCart(t *testing.T) {
	f := newFixture(t)

	agg, err := f.svc.Get(context.Background(), "sess_unknown")
	require.NoError(t, err)
	assert.Equal(t, "sess_unknown", agg.SessionKey)
	assert.Empty(t, agg.Items)
	assert.Equal(t, 0, agg.TotalItems)
	assert.True(t, agg.TotalAmount.IsZero())

	_, err = f.store.Load(context.Background(), "sess_unknown")
	assert.ErrorIs(t, err, ErrNotFound, "reads never create a record")
}

func TestGetRejectsMalformedKey(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), "bad key!")
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestAddItemStockScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.catalog.put("10.00", 5)

	agg, err := f.svc.AddItem(ctx, "sess_1", productID, 3)
	require.NoError(t, err)
	require.Len(t, agg.Items, 1)
	assert.Equal(t, 3, agg.Items[0].Quantity)
	assert.Equal(t, "30.00", agg.TotalAmount.StringFixed(2))
	assert.Equal(t, 3, agg.TotalItems)

	_, err = f.svc.AddItem(ctx, "sess_1", productID, 3)
	requireCode(t, err, pkgerrors.CodeInsufficientStock)

	stored, err := f.svc.Get(ctx, "sess_1")
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 3, stored.Items[0].Quantity, "failed add leaves the line untouched")
	assert.Equal(t, "30.00", stored.TotalAmount.StringFixed(2))
}

func TestAddItemHugeIncrementDoesNotWrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.catalog.put("10.00", 5)

	_, err := f.svc.AddItem(ctx, "sess_1", productID, 1)
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, "sess_1", productID, math.MaxInt)
	requireCode(t, err, pkgerrors.CodeInsufficientStock)

	stored, err := f.svc.Get(ctx, "sess_1")
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 1, stored.Items[0].Quantity)
	assert.Equal(t, 1, stored.TotalItems)
	assert.Equal(t, "10.00", stored.TotalAmount.StringFixed(2))

	agg, err := f.svc.AddItem(ctx, "sess_1", productID, 4)
	require.NoError(t, err, "topping up to exactly the stock level is allowed")
	assert.Equal(t, 5, agg.Items[0].Quantity)
}

func TestAddItemGeneratesSessionKey(t *testing.T) {
	f := newFixture(t)
	productID := f.catalog.put("1.50", 10)

	agg, err := f.svc.AddItem(context.Background(), "", productID, 2)
	require.NoError(t, err)
	assert.True(t, ValidSessionKey(agg.SessionKey))
	assert.Contains(t, agg.SessionKey, "sess_")

	stored, err := f.store.Load(context.Background(), agg.SessionKey)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalItems)
}

func TestAddItemValidation(t *testing.T) {
	f := newFixture(t)
	productID := f.catalog.put("1.00", 10)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "sess_1", productID, 0)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.AddItem(ctx, "sess_1", productID, -2)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.AddItem(ctx, "sess_1", uuid.Nil, 1)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.AddItem(ctx, "not/valid", productID, 1)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestAddItemUnavailableProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "sess_1", uuid.New(), 1)
	requireCode(t, err, pkgerrors.CodeProductUnavailable)

	inactive := f.catalog.put("5.00", 10)
	f.catalog.update(inactive, func(p *catalog.Snapshot) { p.IsActive = false })
	_, err = f.svc.AddItem(ctx, "sess_1", inactive, 1)
	requireCode(t, err, pkgerrors.CodeProductUnavailable)

	_, err = f.store.Load(ctx, "sess_1")
	assert.ErrorIs(t, err, ErrNotFound, "failed first add creates nothing")
}

func TestAddItemKeepsSnapshotPriceOnExistingLine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.catalog.put("10.00", 10)

	_, err := f.svc.AddItem(ctx, "sess_1", productID, 1)
	require.NoError(t, err)
	f.catalog.update(productID, func(p *catalog.Snapshot) { p.Price = decimal.RequireFromString("12.00") })

	agg, err := f.svc.AddItem(ctx, "sess_1", productID, 1)
	require.NoError(t, err)
	assert.Equal(t, "10.00", agg.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "20.00", agg.TotalAmount.StringFixed(2))
}

func TestAddItemKeepsInsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.catalog.put("1.00", 10)
	second := f.catalog.put("2.00", 10)

	_, err := f.svc.AddItem(ctx, "sess_1", first, 1)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, "sess_1", second, 1)
	require.NoError(t, err)
	agg, err := f.svc.AddItem(ctx, "sess_1", first, 1)
	require.NoError(t, err)

	require.Len(t, agg.Items, 2)
	assert.Equal(t, first, agg.Items[0].ProductID)
	assert.Equal(t, 2, agg.Items[0].Quantity)
	assert.Equal(t, second, agg.Items[1].ProductID)
	assertTotalsConsistent(t, agg)
}

func TestUpdateItemRefreshesPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.catalog.put("10.00", 5)

	_, err := f.svc.AddItem(ctx, "sess_1", productID, 3)
	require.NoError(t, err)
	f.catalog.update(productID, func(p *catalog.Snapshot) { p.Price = decimal.RequireFromString("12.00") })

	agg, err := f.svc.UpdateItem(ctx, "sess_1", productID, 2)
	require.NoError(t, err)
	require.Len(t, agg.Items, 1)
	assert.Equal(t, 2, agg.Items[0].Quantity)
	assert.Equal(t, "12.00", agg.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "24.00", agg.TotalAmount.StringFixed(2))
}

func TestUpdateItemZeroEqualsRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep := f.catalog.put("4.00", 5)
	drop := f.catalog.put("6.00", 5)

	for _, key := range []string{"sess_update", "sess_remove"} {
		_, err := f.svc.AddItem(ctx, key, keep, 1)
		require.NoError(t, err)
		_, err = f.svc.AddItem(ctx, key, drop, 2)
		require.NoError(t, err)
	}

	updated, err := f.svc.UpdateItem(ctx, "sess_update", drop, 0)
	require.NoError(t, err)
	removed, err := f.svc.RemoveItem(ctx, "sess_remove", drop)
	require.NoError(t, err)

	assert.Equal(t, removed.Items, updated.Items)
	assert.Equal(t, removed.TotalItems, updated.TotalItems)
	assert.True(t, removed.TotalAmount.Equal(updated.TotalAmount))
	assert.Equal(t, "4.00", updated.TotalAmount.StringFixed(2))
}

func TestUpdateItemZeroSkipsProductLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.catalog.put("4.00", 5)
	_, err := f.svc.AddItem(ctx, "sess_1", productID, 1)
	require.NoError(t, err)

	f.catalog.update(productID, func(p *catalog.Snapshot) { p.IsActive = false })
	agg, err := f.svc.UpdateItem(ctx, "sess_1", productID, 0)
	require.NoError(t, err)
	assert.Empty(t, agg.Items)
}

func TestUpdateItemErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.catalog.put("4.00", 5)

	_, err := f.svc.UpdateItem(ctx, "sess_missing", productID, 1)
	requireCode(t, err, pkgerrors.CodeCartNotFound)

	_, err = f.svc.AddItem(ctx, "sess_1", productID, 1)
	require.NoError(t, err)

	_, err = f.svc.UpdateItem(ctx, "sess_1", uuid.New(), 1)
	requireCode(t, err, pkgerrors.CodeItemNotFound)

	_, err = f.svc.UpdateItem(ctx, "sess_1", productID, -1)
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = f.svc.UpdateItem(ctx, "sess_1", productID, 6)
	requireCode(t, err, pkgerrors.CodeInsufficientStock)

	f.catalog.update(productID, func(p *catalog.Snapshot) { p.IsActive = false })
	_, err = f.svc.UpdateItem(ctx, "sess_1", productID, 2)
	requireCode(t, err, pkgerrors.CodeProductUnavailable)

	stored, err := f.svc.Get(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Items[0].Quantity)
}

func TestRemoveItemErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.catalog.put("4.00", 5)

	_, err := f.svc.RemoveItem(ctx, "sess_missing", productID)
	requireCode(t, err, pkgerrors.CodeCartNotFound)

	_, err = f.svc.AddItem(ctx, "sess_1", productID, 1)
	require.NoError(t, err)

	_, err = f.svc.RemoveItem(ctx, "sess_1", uuid.New())
	requireCode(t, err, pkgerrors.CodeItemNotFound)
}

func TestClearCartThenGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.catalog.put("4.00", 5)

	_, err := f.svc.ClearCart(ctx, "sess_1")
	requireCode(t, err, pkgerrors.CodeCartNotFound)

	_, err = f.svc.AddItem(ctx, "sess_1", productID, 2)
	require.NoError(t, err)

	cleared, err := f.svc.ClearCart(ctx, "sess_1")
	require.NoError(t, err)
	assert.Empty(t, cleared.Items)
	assert.Equal(t, 0, cleared.TotalItems)
	assert.True(t, cleared.TotalAmount.IsZero())

	agg, err := f.svc.Get(ctx, "sess_1")
	require.NoError(t, err)
	assert.Empty(t, agg.Items)
	assert.True(t, agg.TotalAmount.IsZero())
	assert.False(t, agg.ExpiresAt.IsZero(), "cleared cart stays persisted")
}

func TestExpiredCartBehavesAsNeverCreated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.catalog.put("10.00", 5)

	_, err := f.svc.AddItem(ctx, "sess_1", productID, 3)
	require.NoError(t, err)

	f.clock.Advance(DefaultTTL)

	agg, err := f.svc.Get(ctx, "sess_1")
	require.NoError(t, err)
	assert.Empty(t, agg.Items)
	assert.True(t, agg.TotalAmount.IsZero())

	_, err = f.svc.UpdateItem(ctx, "sess_1", productID, 1)
	requireCode(t, err, pkgerrors.CodeCartNotFound)
	_, err = f.svc.RemoveItem(ctx, "sess_1", productID)
	requireCode(t, err, pkgerrors.CodeCartNotFound)
	_, err = f.svc.ClearCart(ctx, "sess_1")
	requireCode(t, err, pkgerrors.CodeCartNotFound)

	fresh, err := f.svc.AddItem(ctx, "sess_1", productID, 3)
	require.NoError(t, err, "stale quantity must not count against stock")
	assert.Equal(t, 3, fresh.Items[0].Quantity)
	assert.Equal(t, f.clock.Now(), fresh.CreatedAt)
}

func TestMutatingExpiredCartDropsRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.catalog.put("10.00", 5)

	_, err := f.svc.AddItem(ctx, "sess_1", productID, 1)
	require.NoError(t, err)
	f.clock.Advance(DefaultTTL)

	_, err = f.svc.Get(ctx, "sess_1")
	require.NoError(t, err)
	_, err = f.store.Load(ctx, "sess_1")
	require.NoError(t, err, "reads leave the record to the sweep")

	_, err = f.svc.ClearCart(ctx, "sess_1")
	requireCode(t, err, pkgerrors.CodeCartNotFound)
	_, err = f.store.Load(ctx, "sess_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMutationsExtendHorizon(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	productID := f.catalog.put("1.00", 50)

	_, err := f.svc.AddItem(ctx, "sess_1", productID, 1)
	require.NoError(t, err)

	f.clock.Advance(20 * time.Hour)
	agg, err := f.svc.UpdateItem(ctx, "sess_1", productID, 2)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(DefaultTTL), agg.ExpiresAt)

	f.clock.Advance(20 * time.Hour)
	agg, err = f.svc.Get(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, 2, agg.TotalItems, "touched cart survives past the first horizon")
}

func TestStoreFailuresSurfaceAsDependencyErrors(t *testing.T) {
	products := newStubCatalog()
	productID := products.put("1.00", 5)
	store := &failingStore{MemoryStore: NewMemoryStore(), saveErr: errors.New("disk full")}
	svc, err := NewService(store, products, NewLocalLocker(), Options{})
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), "sess_1", productID, 1)
	requireCode(t, err, pkgerrors.CodeDependency)

	store.saveErr = nil
	store.loadErr = errors.New("connection reset")
	_, err = svc.Get(context.Background(), "sess_1")
	requireCode(t, err, pkgerrors.CodeDependency)
}

func TestCatalogFailureIsDependencyError(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = errors.New("catalog down")

	_, err := f.svc.AddItem(context.Background(), "sess_1", uuid.New(), 1)
	requireCode(t, err, pkgerrors.CodeDependency)
}

func TestConcurrentAddsSerializePerKey(t *testing.T) {
	f := newFixture(t)
	productID := f.catalog.put("2.50", 1000)

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := f.svc.AddItem(context.Background(), "sess_shared", productID, 1)
			return err
		})
	}
	require.NoError(t, g.Wait())

	agg, err := f.svc.Get(context.Background(), "sess_shared")
	require.NoError(t, err)
	require.Len(t, agg.Items, 1)
	assert.Equal(t, 50, agg.Items[0].Quantity)
	assert.Equal(t, "125.00", agg.TotalAmount.StringFixed(2))
	assertTotalsConsistent(t, agg)
}

func TestConcurrentAddsNeverExceedStock(t *testing.T) {
	f := newFixture(t)
	productID := f.catalog.put("1.00", 5)

	var (
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	var g errgroup.Group
	for i := 0; i < 12; i++ {
		g.Go(func() error {
			_, err := f.svc.AddItem(context.Background(), "sess_shared", productID, 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 7, rejected)
	agg, err := f.svc.Get(context.Background(), "sess_shared")
	require.NoError(t, err)
	assert.Equal(t, 5, agg.TotalItems)
}

func TestRejectedLineOperationsLogProductID(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: &buf})
	products := newStubCatalog()
	productID := products.put("1.00", 1)
	svc, err := NewService(NewMemoryStore(), products, NewLocalLocker(), Options{Logger: logg})
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), "sess_1", productID, 2)
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
	_, err = svc.RemoveItem(context.Background(), "sess_1", productID)
	requireCode(t, err, pkgerrors.CodeCartNotFound)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, productID.String(), entry["product_id"])
	}
}

func TestServiceRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewCartMetrics(reg)
	products := newStubCatalog()
	productID := products.put("1.00", 1)
	svc, err := NewService(NewMemoryStore(), products, NewLocalLocker(), Options{Metrics: m})
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), "sess_1", productID, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), "sess_1", productID, 1)
	require.Error(t, err)

	series, err := testutil.GatherAndCount(reg, "cart_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}
