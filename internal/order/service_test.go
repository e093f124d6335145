package order_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/gbdelivering/backend-butchery/internal/order"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

type memOrders struct {
	orders map[string]repo.Order
}

func newMemOrders(orders ...repo.Order) *memOrders {
	m := &memOrders{orders: map[string]repo.Order{}}
	for _, o := range orders {
		m.orders[repo.UUIDString(o.ID)] = o
	}
	return m
}

func (m *memOrders) Get(_ context.Context, id pgtype.UUID) (repo.Order, error) {
	o, ok := m.orders[repo.UUIDString(id)]
	if !ok {
		return repo.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m *memOrders) ListByUser(_ context.Context, userID pgtype.UUID) ([]repo.Order, error) {
	var out []repo.Order
	for _, o := range m.orders {
		if repo.UUIDEqual(o.UserID, userID) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) ListAll(context.Context, int32, int32) ([]repo.Order, error) {
	var out []repo.Order
	for _, o := range m.orders {
		out = append(out, o)
	}
	return out, nil
}

func (m *memOrders) Items(context.Context, pgtype.UUID) ([]repo.OrderItem, error) {
	return nil, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id pgtype.UUID, status string) (repo.Order, error) {
	o, ok := m.orders[repo.UUIDString(id)]
	if !ok {
		return repo.Order{}, repo.ErrNotFound
	}
	o.Status = status
	m.orders[repo.UUIDString(id)] = o
	return o, nil
}

type defaultSettings struct{}

func (defaultSettings) Load(context.Context) (repo.StoreSettings, error) {
	return repo.StoreSettings{OrderStatuses: repo.DefaultOrderStatuses}, nil
}

func pendingOrder(userID pgtype.UUID) repo.Order {
	return repo.Order{ID: repo.NewUUID(), UserID: userID, Status: "pending"}
}

func TestGetMineHidesOtherCustomersOrders(t *testing.T) {
	owner := repo.NewUUID()
	stranger := repo.NewUUID()
	o := pendingOrder(owner)
	svc := &order.Service{Store: newMemOrders(o), Settings: defaultSettings{}}

	_, err := svc.GetMine(context.Background(), stranger, o.ID)
	require.ErrorIs(t, err, order.ErrOrderNotFound)

	detail, err := svc.GetMine(context.Background(), owner, o.ID)
	require.NoError(t, err)
	require.Equal(t, o.ID, detail.Order.ID)
}

func TestCancelOnlyPendingOrders(t *testing.T) {
	user := repo.NewUUID()
	pending := pendingOrder(user)
	confirmed := pendingOrder(user)
	confirmed.Status = "confirmed"
	svc := &order.Service{Store: newMemOrders(pending, confirmed), Settings: defaultSettings{}}

	o, err := svc.Cancel(context.Background(), user, pending.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusCancelled, o.Status)

	_, err = svc.Cancel(context.Background(), user, confirmed.ID)
	require.ErrorIs(t, err, order.ErrInvalidTransition)
}

func TestSetStatusWalksSequence(t *testing.T) {
	user := repo.NewUUID()
	o := pendingOrder(user)
	svc := &order.Service{Store: newMemOrders(o), Settings: defaultSettings{}}

	for _, next := range []string{"confirmed", "preparing", "ready", "delivered"} {
		updated, err := svc.SetStatus(context.Background(), o.ID, next)
		require.NoError(t, err, "transition to %s", next)
		require.Equal(t, next, updated.Status)
	}
}

func TestSetStatusRejectsSkips(t *testing.T) {
	user := repo.NewUUID()
	o := pendingOrder(user)
	svc := &order.Service{Store: newMemOrders(o), Settings: defaultSettings{}}

	_, err := svc.SetStatus(context.Background(), o.ID, "ready")
	require.ErrorIs(t, err, order.ErrInvalidTransition)
}

func TestCancelledIsTerminal(t *testing.T) {
	user := repo.NewUUID()
	o := pendingOrder(user)
	o.Status = order.StatusCancelled
	svc := &order.Service{Store: newMemOrders(o), Settings: defaultSettings{}}

	_, err := svc.SetStatus(context.Background(), o.ID, "confirmed")
	require.ErrorIs(t, err, order.ErrInvalidTransition)
}

func TestDeliveredCannotBeCancelled(t *testing.T) {
	user := repo.NewUUID()
	o := pendingOrder(user)
	o.Status = "delivered"
	svc := &order.Service{Store: newMemOrders(o), Settings: defaultSettings{}}

	_, err := svc.SetStatus(context.Background(), o.ID, order.StatusCancelled)
	require.ErrorIs(t, err, order.ErrInvalidTransition)
}
