package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gbdelivering/backend-butchery/internal/repo"
	"github.com/gbdelivering/backend-butchery/internal/resilience"
)

const (
	momoStatusPending   = "pending"
	momoStatusCompleted = "completed"

	momoInitiatedMessage = "Payment initiated. Please check your phone for USSD prompt."
)

// MoMo drives mobile-money collections. Each initiate stores a pending
// transaction keyed by a generated reference; the subscriber approves the
// charge on their handset, so the gateway push is fire-and-forget and the
// caller polls Verify until the row settles.
type MoMo struct {
	Store     paymentStore
	Client    *resilience.HTTPClient
	AppID     string
	AppSecret string
	BaseURL   string
	Logger    zerolog.Logger
}

// NewMoMo constructs the mobile-money provider.
func NewMoMo(store paymentStore, client *resilience.HTTPClient, appID, appSecret, baseURL string, logger zerolog.Logger) *MoMo {
	return &MoMo{
		Store:     store,
		Client:    client,
		AppID:     appID,
		AppSecret: appSecret,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Logger:    logger,
	}
}

// Name implements Provider.
func (m *MoMo) Name() string { return "momo" }

type momoCollectRequest struct {
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	ExternalID string `json:"externalId"`
	Phone      string `json:"phone"`
}

// Initiate records a pending transaction and pushes a request-to-pay to the
// gateway. The push failing does not fail the initiation: the row stays
// pending and the reference is still returned for polling.
func (m *MoMo) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	if !req.Amount.IsPositive() || req.Phone == "" || req.OrderRef == "" {
		return InitiateResponse{}, ErrInvalidInput
	}

	reference := uuid.NewString()
	_, err := m.Store.Create(ctx, repo.PaymentTransaction{
		OrderRef:    repo.Text(req.OrderRef),
		Reference:   reference,
		Method:      m.Name(),
		Phone:       repo.Text(req.Phone),
		Amount:      req.Amount,
		TotalAmount: req.Amount,
		Status:      momoStatusPending,
	})
	if err != nil {
		return InitiateResponse{}, err
	}

	m.requestToPay(ctx, reference, req)

	return InitiateResponse{
		Reference:   reference,
		Status:      momoStatusPending,
		Message:     momoInitiatedMessage,
		Amount:      req.Amount,
		TotalAmount: req.Amount,
	}, nil
}

func (m *MoMo) requestToPay(ctx context.Context, reference string, req InitiateRequest) {
	body, err := json.Marshal(momoCollectRequest{
		Amount:     req.Amount.StringFixed(0),
		Currency:   "RWF",
		ExternalID: reference,
		Phone:      req.Phone,
	})
	if err != nil {
		m.Logger.Error().Err(err).Msg("momo encode request-to-pay")
		return
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.BaseURL+"/collection/v1_0/requesttopay", bytes.NewReader(body))
	if err != nil {
		m.Logger.Error().Err(err).Msg("momo build request-to-pay")
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Reference-Id", reference)
	httpReq.Header.Set("X-App-Id", m.AppID)
	httpReq.Header.Set("X-Signature", m.sign(body))

	resp, err := m.Client.Do(ctx, httpReq)
	if err != nil {
		countGateway(m.Name(), "failure")
		m.Logger.Warn().Err(err).Str("reference", reference).Msg("momo request-to-pay failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		countGateway(m.Name(), "failure")
		m.Logger.Warn().Int("status", resp.StatusCode).Str("reference", reference).
			Msg("momo request-to-pay rejected")
		return
	}
	countGateway(m.Name(), "success")
}

func (m *MoMo) sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(m.AppSecret))
	mac.Write([]byte(m.AppID))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports the state of a transaction by reference. Unknown references
// surface repo.ErrNotFound.
func (m *MoMo) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	tx, err := m.Store.GetByReference(ctx, reference)
	if err != nil {
		return VerifyResult{}, err
	}
	paymentStatus := momoStatusPending
	if tx.Status == momoStatusCompleted {
		paymentStatus = momoStatusCompleted
	}
	return VerifyResult{
		Success:       tx.Status == momoStatusCompleted,
		Status:        tx.Status,
		PaymentStatus: paymentStatus,
	}, nil
}

var _ Provider = (*MoMo)(nil)
