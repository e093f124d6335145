package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/gbdelivering/backend-butchery/internal/repo"
	"github.com/gbdelivering/backend-butchery/internal/resilience"
)

type memPayments struct {
	rows map[string]repo.PaymentTransaction
}

func newMemPayments() *memPayments {
	return &memPayments{rows: map[string]repo.PaymentTransaction{}}
}

func (m *memPayments) Create(_ context.Context, t repo.PaymentTransaction) (repo.PaymentTransaction, error) {
	if !t.ID.Valid {
		t.ID = repo.NewUUID()
	}
	m.rows[t.Reference] = t
	return t, nil
}

func (m *memPayments) GetByReference(_ context.Context, reference string) (repo.PaymentTransaction, error) {
	t, ok := m.rows[reference]
	if !ok {
		return repo.PaymentTransaction{}, repo.ErrNotFound
	}
	return t, nil
}

func (m *memPayments) RecordVerification(_ context.Context, reference, status string, verification []byte) (repo.PaymentTransaction, error) {
	t, ok := m.rows[reference]
	if !ok {
		return repo.PaymentTransaction{}, repo.ErrNotFound
	}
	t.Status = status
	t.Verification = verification
	m.rows[reference] = t
	return t, nil
}

func gatewayClient(srv *httptest.Server) *resilience.HTTPClient {
	return &resilience.HTTPClient{
		Client:      srv.Client(),
		MaxAttempts: 1,
		Timeout:     2 * time.Second,
	}
}

func TestMoMoInitiateStoresPendingAndSignsRequest(t *testing.T) {
	var gotSignature, gotReference string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("X-Signature")
		gotReference = r.Header.Get("X-Reference-Id")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	store := newMemPayments()
	momo := NewMoMo(store, gatewayClient(srv), "app-1", "secret", srv.URL, zerolog.Nop())

	resp, err := momo.Initiate(context.Background(), InitiateRequest{
		OrderRef: "ord-1",
		Amount:   decimal.NewFromInt(5000),
		Phone:    "0788123456",
	})
	require.NoError(t, err)
	require.Equal(t, "pending", resp.Status)
	require.Equal(t, "Payment initiated. Please check your phone for USSD prompt.", resp.Message)
	require.NotEmpty(t, resp.Reference)
	require.Equal(t, resp.Reference, gotReference)
	require.NotEmpty(t, gotSignature)

	row, err := store.GetByReference(context.Background(), resp.Reference)
	require.NoError(t, err)
	require.Equal(t, "momo", row.Method)
	require.Equal(t, "pending", row.Status)
	require.True(t, row.Amount.Equal(decimal.NewFromInt(5000)))
}

func TestMoMoInitiateSurvivesGatewayOutage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := newMemPayments()
	momo := NewMoMo(store, gatewayClient(srv), "app-1", "secret", srv.URL, zerolog.Nop())

	resp, err := momo.Initiate(context.Background(), InitiateRequest{
		OrderRef: "ord-2",
		Amount:   decimal.NewFromInt(2500),
		Phone:    "0788123456",
	})
	require.NoError(t, err)
	require.Equal(t, "pending", resp.Status)

	_, err = store.GetByReference(context.Background(), resp.Reference)
	require.NoError(t, err)
}

func TestMoMoInitiateRejectsBadInput(t *testing.T) {
	momo := NewMoMo(newMemPayments(), nil, "app-1", "secret", "http://unused", zerolog.Nop())

	_, err := momo.Initiate(context.Background(), InitiateRequest{
		OrderRef: "ord-3",
		Amount:   decimal.Zero,
		Phone:    "0788123456",
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = momo.Initiate(context.Background(), InitiateRequest{
		OrderRef: "ord-3",
		Amount:   decimal.NewFromInt(100),
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestMoMoVerify(t *testing.T) {
	store := newMemPayments()
	store.rows["tx-pending"] = repo.PaymentTransaction{Reference: "tx-pending", Status: "pending"}
	store.rows["tx-done"] = repo.PaymentTransaction{Reference: "tx-done", Status: "completed"}
	momo := NewMoMo(store, nil, "app-1", "secret", "http://unused", zerolog.Nop())

	result, err := momo.Verify(context.Background(), "tx-pending")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, "pending", result.PaymentStatus)

	result, err = momo.Verify(context.Background(), "tx-done")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "completed", result.PaymentStatus)

	_, err = momo.Verify(context.Background(), "tx-missing")
	require.ErrorIs(t, err, repo.ErrNotFound)
}
