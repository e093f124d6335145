package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/obs"
	"github.com/gbdelivering/backend-butchery/internal/repo"
)

// ErrInvalidInput reports a malformed payment request.
var ErrInvalidInput = errors.New("payment: invalid input")

// countGateway records a gateway call outcome. The collector is nil until
// the domain metrics are registered, so tests run without it.
func countGateway(provider, result string) {
	if obs.PaymentRequestsTotal == nil {
		return
	}
	obs.PaymentRequestsTotal.WithLabelValues(provider, result).Inc()
}

// paymentStore is the slice of repo.Payments the providers need.
type paymentStore interface {
	Create(ctx context.Context, t repo.PaymentTransaction) (repo.PaymentTransaction, error)
	GetByReference(ctx context.Context, reference string) (repo.PaymentTransaction, error)
	RecordVerification(ctx context.Context, reference, status string, verification []byte) (repo.PaymentTransaction, error)
}

// InitiateRequest carries the information needed to open a charge with a
// provider. Phone is only meaningful for mobile money; the redirect pair only
// for hosted card pages.
type InitiateRequest struct {
	OrderRef    string
	Amount      decimal.Decimal
	Phone       string
	Description string
	RedirectURL string
	BackURL     string
}

// InitiateResponse is the normalised outcome of opening a charge.
type InitiateResponse struct {
	Reference     string
	Status        string
	Message       string
	PaymentURL    string
	Amount        decimal.Decimal
	TotalAmount   decimal.Decimal
	ProcessingFee decimal.Decimal
}

// VerifyResult reports the settled state of a previously opened charge.
type VerifyResult struct {
	Success         bool
	Status          string
	PaymentStatus   string
	ProviderPayload map[string]string
}

// Provider abstracts an upstream payment gateway.
type Provider interface {
	Name() string
	Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error)
	Verify(ctx context.Context, reference string) (VerifyResult, error)
}
