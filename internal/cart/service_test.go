package cart_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gbdelivering/backend-butchery/internal/cart"
	"github.com/gbdelivering/backend-butchery/internal/pricing"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

type memCarts struct {
	lines map[string]repo.CartLine
}

func newMemCarts() *memCarts { return &memCarts{lines: map[string]repo.CartLine{}} }

func key(userID, productID pgtype.UUID) string {
	return repo.UUIDString(userID) + "/" + repo.UUIDString(productID)
}

func (m *memCarts) Find(_ context.Context, userID, productID pgtype.UUID) (repo.CartLine, error) {
	l, ok := m.lines[key(userID, productID)]
	if !ok {
		return repo.CartLine{}, repo.ErrNotFound
	}
	return l, nil
}

func (m *memCarts) List(_ context.Context, userID pgtype.UUID) ([]repo.CartLine, error) {
	var out []repo.CartLine
	for _, l := range m.lines {
		if repo.UUIDEqual(l.UserID, userID) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memCarts) Upsert(_ context.Context, l repo.CartLine) (repo.CartLine, error) {
	if !l.ID.Valid {
		l.ID = repo.NewUUID()
	}
	m.lines[key(l.UserID, l.ProductID)] = l
	return l, nil
}

func (m *memCarts) Delete(_ context.Context, userID, productID pgtype.UUID) error {
	k := key(userID, productID)
	if _, ok := m.lines[k]; !ok {
		return repo.ErrNotFound
	}
	delete(m.lines, k)
	return nil
}

func (m *memCarts) Clear(_ context.Context, userID pgtype.UUID) error {
	for k, l := range m.lines {
		if repo.UUIDEqual(l.UserID, userID) {
			delete(m.lines, k)
		}
	}
	return nil
}

type memProducts struct {
	items map[string]repo.Product
}

func (m memProducts) Get(_ context.Context, id pgtype.UUID) (repo.Product, error) {
	p, ok := m.items[repo.UUIDString(id)]
	if !ok {
		return repo.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func dec(v string) decimal.Decimal {
	d, _ := decimal.NewFromString(v)
	return d
}

func beefProduct() repo.Product {
	return repo.Product{
		ID:          repo.NewUUID(),
		Name:        "Beef Tenderloin",
		Category:    "beef",
		Price:       dec("8500"),
		Stock:       100,
		Unit:        pricing.UnitKg,
		PricingMode: pricing.ModePerKg,
		MinQty:      dec("0.5"),
		MaxQty:      dec("5"),
	}
}

func newService(products ...repo.Product) (*cart.Service, *memCarts) {
	items := map[string]repo.Product{}
	for _, p := range products {
		items[repo.UUIDString(p.ID)] = p
	}
	carts := newMemCarts()
	return &cart.Service{Carts: carts, Products: memProducts{items: items}}, carts
}

func TestAddLineComputesPrice(t *testing.T) {
	product := beefProduct()
	svc, _ := newService(product)
	user := repo.NewUUID()

	line, err := svc.AddLine(context.Background(), user, repo.UUIDString(product.ID), dec("2"), "kg")
	require.NoError(t, err)
	require.Equal(t, "17000", line.Price.String())
	require.Equal(t, "2", line.Quantity.String())
}

func TestAddLineMergesWithoutDrift(t *testing.T) {
	product := beefProduct()
	svc, _ := newService(product)
	user := repo.NewUUID()

	_, err := svc.AddLine(context.Background(), user, repo.UUIDString(product.ID), dec("2"), "kg")
	require.NoError(t, err)

	line, err := svc.AddLine(context.Background(), user, repo.UUIDString(product.ID), dec("1"), "kg")
	require.NoError(t, err)
	require.Equal(t, "3", line.Quantity.String())
	require.Equal(t, "25500", line.Price.String(), "merged price must equal the full-quantity price")
}

func TestAddLineGramQuantityUnderPerKg(t *testing.T) {
	product := beefProduct()
	svc, _ := newService(product)
	user := repo.NewUUID()

	line, err := svc.AddLine(context.Background(), user, repo.UUIDString(product.ID), dec("500"), "gram")
	require.NoError(t, err)
	require.Equal(t, "4250", line.Price.String())
}

func TestAddLineQuantityBounds(t *testing.T) {
	product := beefProduct()
	svc, _ := newService(product)
	user := repo.NewUUID()

	_, err := svc.AddLine(context.Background(), user, repo.UUIDString(product.ID), dec("0.2"), "kg")
	require.ErrorIs(t, err, pricing.ErrQuantityOutOfRange)

	_, err = svc.AddLine(context.Background(), user, repo.UUIDString(product.ID), dec("6"), "kg")
	require.ErrorIs(t, err, pricing.ErrQuantityOutOfRange)

	// gram requests check against the kg-denominated bounds
	_, err = svc.AddLine(context.Background(), user, repo.UUIDString(product.ID), dec("200"), "gram")
	require.ErrorIs(t, err, pricing.ErrQuantityOutOfRange)

	_, err = svc.AddLine(context.Background(), user, repo.UUIDString(product.ID), dec("6000"), "gram")
	require.ErrorIs(t, err, pricing.ErrQuantityOutOfRange)
}

func TestAddLineUnknownProduct(t *testing.T) {
	svc, _ := newService()
	_, err := svc.AddLine(context.Background(), repo.NewUUID(), repo.UUIDString(repo.NewUUID()), dec("1"), "kg")
	require.ErrorIs(t, err, cart.ErrProductNotFound)
}

func TestAddLineAppliesDiscount(t *testing.T) {
	product := beefProduct()
	product.DiscountPercent = dec("50")
	svc, _ := newService(product)
	user := repo.NewUUID()

	line, err := svc.AddLine(context.Background(), user, repo.UUIDString(product.ID), dec("2"), "kg")
	require.NoError(t, err)
	require.Equal(t, "8500", line.Price.String())
}

func TestListTotalsAndRemove(t *testing.T) {
	beef := beefProduct()
	goat := beefProduct()
	goat.ID = repo.NewUUID()
	goat.Name = "Goat Leg"
	goat.Price = dec("6000")
	svc, _ := newService(beef, goat)
	user := repo.NewUUID()

	_, err := svc.AddLine(context.Background(), user, repo.UUIDString(beef.ID), dec("1"), "kg")
	require.NoError(t, err)
	_, err = svc.AddLine(context.Background(), user, repo.UUIDString(goat.ID), dec("2"), "kg")
	require.NoError(t, err)

	contents, err := svc.List(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, contents.Lines, 2)
	require.Equal(t, "20500", contents.Total)

	require.NoError(t, svc.RemoveLine(context.Background(), user, repo.UUIDString(goat.ID)))
	contents, err = svc.List(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, contents.Lines, 1)
	require.Equal(t, "8500", contents.Total)

	require.ErrorIs(t, svc.RemoveLine(context.Background(), user, repo.UUIDString(goat.ID)), cart.ErrLineNotFound)
}
