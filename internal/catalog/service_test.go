package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gbdelivering/backend-butchery/internal/catalog"
	"github.com/gbdelivering/backend-butchery/internal/events"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

type fakeProducts struct {
	items map[string]repo.Product
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{items: map[string]repo.Product{}}
}

func (f *fakeProducts) Create(_ context.Context, p repo.Product) (repo.Product, error) {
	if !p.ID.Valid {
		p.ID = repo.NewUUID()
	}
	f.items[repo.UUIDString(p.ID)] = p
	return p, nil
}

func (f *fakeProducts) Get(_ context.Context, id pgtype.UUID) (repo.Product, error) {
	p, ok := f.items[repo.UUIDString(id)]
	if !ok {
		return repo.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (f *fakeProducts) List(_ context.Context, category string, _, _ int32) ([]repo.Product, error) {
	var out []repo.Product
	for _, p := range f.items {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) Update(_ context.Context, p repo.Product) (repo.Product, error) {
	if _, ok := f.items[repo.UUIDString(p.ID)]; !ok {
		return repo.Product{}, repo.ErrNotFound
	}
	f.items[repo.UUIDString(p.ID)] = p
	return p, nil
}

func (f *fakeProducts) UpdateStock(_ context.Context, id pgtype.UUID, stock int32) (repo.Product, error) {
	p, ok := f.items[repo.UUIDString(id)]
	if !ok {
		return repo.Product{}, repo.ErrNotFound
	}
	p.Stock = stock
	f.items[repo.UUIDString(id)] = p
	return p, nil
}

func (f *fakeProducts) Delete(_ context.Context, id pgtype.UUID) error {
	if _, ok := f.items[repo.UUIDString(id)]; !ok {
		return repo.ErrNotFound
	}
	delete(f.items, repo.UUIDString(id))
	return nil
}

type passthroughDiscount struct{}

func (passthroughDiscount) EffectiveDiscount(_ context.Context, p repo.Product) (decimal.Decimal, error) {
	return p.DiscountPercent, nil
}

type captureBus struct {
	topics []string
	err    error
}

func (c *captureBus) Emit(_ context.Context, topic, _ string, _ any) (repo.DomainEvent, error) {
	c.topics = append(c.topics, topic)
	return repo.DomainEvent{}, c.err
}

type fixedSettings struct {
	s repo.StoreSettings
}

func (f fixedSettings) Load(context.Context) (repo.StoreSettings, error) { return f.s, nil }

func newTestService(t *testing.T, store *fakeProducts, bus *captureBus) *catalog.Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := catalog.NewCache(client, time.Minute)
	return catalog.NewService(store, cache, passthroughDiscount{}, bus,
		fixedSettings{s: repo.StoreSettings{LowStockThreshold: 10}}, zerolog.Nop())
}

func TestUpdateStockEmitsLowStockAlert(t *testing.T) {
	store := newFakeProducts()
	bus := &captureBus{}
	svc := newTestService(t, store, bus)

	p, err := store.Create(context.Background(), repo.Product{Name: "Goat Ribs", Stock: 40})
	require.NoError(t, err)

	view, err := svc.UpdateStock(context.Background(), p.ID, 8)
	require.NoError(t, err)
	require.Equal(t, int32(8), view.Stock)
	require.Equal(t, []string{events.TopicStockLow}, bus.topics)
}

func TestUpdateStockAboveThresholdStaysQuiet(t *testing.T) {
	store := newFakeProducts()
	bus := &captureBus{}
	svc := newTestService(t, store, bus)

	p, err := store.Create(context.Background(), repo.Product{Name: "Goat Ribs", Stock: 40})
	require.NoError(t, err)

	_, err = svc.UpdateStock(context.Background(), p.ID, 11)
	require.NoError(t, err)
	require.Empty(t, bus.topics)
}

func TestUpdateStockSwallowsNotificationFailure(t *testing.T) {
	store := newFakeProducts()
	bus := &captureBus{err: errors.New("smtp down")}
	svc := newTestService(t, store, bus)

	p, err := store.Create(context.Background(), repo.Product{Name: "Goat Ribs", Stock: 40})
	require.NoError(t, err)

	view, err := svc.UpdateStock(context.Background(), p.ID, 3)
	require.NoError(t, err, "notification failure must not fail the stock update")
	require.Equal(t, int32(3), view.Stock)
}

func TestGetServesFromCacheUntilInvalidated(t *testing.T) {
	store := newFakeProducts()
	svc := newTestService(t, store, &captureBus{})

	view, err := svc.Create(context.Background(), catalog.Input{
		Name: "Beef Tenderloin", Category: "beef", Price: "8500",
		Unit: "kg", PricingMode: "per_kg",
	})
	require.NoError(t, err)

	id, err := repo.ToUUID(view.ID)
	require.NoError(t, err)

	first, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Beef Tenderloin", first.Name)

	// mutate behind the cache: a read still sees the cached copy
	p := store.items[view.ID]
	p.Name = "renamed"
	store.items[view.ID] = p

	cached, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "Beef Tenderloin", cached.Name)

	// a write-path invalidation exposes the fresh row
	_, err = svc.UpdateStock(context.Background(), id, 50)
	require.NoError(t, err)

	fresh, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "renamed", fresh.Name)
}

func TestCreateRejectsBadPayloads(t *testing.T) {
	svc := newTestService(t, newFakeProducts(), &captureBus{})

	cases := []catalog.Input{
		{Name: "", Category: "beef", Price: "100", Unit: "kg", PricingMode: "per_kg"},
		{Name: "x", Category: "beef", Price: "-5", Unit: "kg", PricingMode: "per_kg"},
		{Name: "x", Category: "beef", Price: "100", Unit: "kg", PricingMode: "per_tonne"},
		{Name: "x", Category: "beef", Price: "100", Unit: "kg", PricingMode: "per_kg", MinQty: "5", MaxQty: "2"},
		{Name: "x", Category: "beef", Price: "100", Unit: "kg", PricingMode: "per_kg", DiscountPercent: "150"},
	}
	for _, in := range cases {
		_, err := svc.Create(context.Background(), in)
		require.ErrorIs(t, err, catalog.ErrInvalidInput)
	}
}

func TestGetUnknownProduct(t *testing.T) {
	svc := newTestService(t, newFakeProducts(), &captureBus{})
	_, err := svc.Get(context.Background(), repo.NewUUID())
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}
