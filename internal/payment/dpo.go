package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gbdelivering/backend-butchery/internal/repo"
	"github.com/gbdelivering/backend-butchery/internal/resilience"
)

const (
	dpoResultSuccess = "000"

	dpoStatusCreated   = "created"
	dpoStatusCompleted = "completed"
	dpoStatusFailed    = "failed"
)

// dpoSurcharge is the card processing fee added on top of the order amount.
var dpoSurcharge = decimal.NewFromFloat(0.03)

// DPO drives hosted card payments through the API3G XML gateway. A token is
// created per order, the customer pays on the hosted page, and the merchant
// verifies the token afterwards.
type DPO struct {
	Store        paymentStore
	Client       *resilience.HTTPClient
	CompanyToken string
	ServiceType  string
	BaseURL      string
	Now          func() time.Time
	Logger       zerolog.Logger
}

// NewDPO constructs the card provider.
func NewDPO(store paymentStore, client *resilience.HTTPClient, companyToken, serviceType, baseURL string, logger zerolog.Logger) *DPO {
	return &DPO{
		Store:        store,
		Client:       client,
		CompanyToken: companyToken,
		ServiceType:  serviceType,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		Now:          time.Now,
		Logger:       logger,
	}
}

// Name implements Provider.
func (d *DPO) Name() string { return "dpo" }

type api3gTransaction struct {
	PaymentAmount    string `xml:"PaymentAmount"`
	PaymentCurrency  string `xml:"PaymentCurrency"`
	CompanyRef       string `xml:"CompanyRef"`
	RedirectURL      string `xml:"RedirectURL"`
	BackURL          string `xml:"BackURL"`
	CompanyRefUnique string `xml:"CompanyRefUnique"`
	PTL              string `xml:"PTL"`
}

type api3gService struct {
	ServiceType        string `xml:"ServiceType"`
	ServiceDescription string `xml:"ServiceDescription"`
	ServiceDate        string `xml:"ServiceDate"`
}

type api3gServices struct {
	Service api3gService `xml:"Service"`
}

type api3gRequest struct {
	XMLName          xml.Name          `xml:"API3G"`
	CompanyToken     string            `xml:"CompanyToken"`
	Request          string            `xml:"Request"`
	Transaction      *api3gTransaction `xml:"Transaction,omitempty"`
	Services         *api3gServices    `xml:"Services,omitempty"`
	TransactionToken string            `xml:"TransactionToken,omitempty"`
}

// Initiate creates a hosted-payment token. Gateway or parse failures come
// back as an unsuccessful response, never an error: a flaky upstream must not
// take the checkout flow down with it.
func (d *DPO) Initiate(ctx context.Context, req InitiateRequest) (InitiateResponse, error) {
	if !req.Amount.IsPositive() {
		return InitiateResponse{}, ErrInvalidInput
	}

	total := req.Amount.Mul(decimal.NewFromInt(1).Add(dpoSurcharge)).Round(2)
	body := api3gRequest{
		CompanyToken: d.CompanyToken,
		Request:      "createToken",
		Transaction: &api3gTransaction{
			PaymentAmount:    total.StringFixed(2),
			PaymentCurrency:  "RWF",
			CompanyRef:       companyRef(),
			RedirectURL:      req.RedirectURL,
			BackURL:          req.BackURL,
			CompanyRefUnique: "0",
			PTL:              "5",
		},
		Services: &api3gServices{Service: api3gService{
			ServiceType:        d.ServiceType,
			ServiceDescription: req.Description,
			ServiceDate:        d.Now().Format("2006/01/02 15:04"),
		}},
	}

	fields, err := d.post(ctx, body)
	if err != nil {
		countGateway(d.Name(), "failure")
		d.Logger.Warn().Err(err).Msg("dpo create token failed")
		return InitiateResponse{Message: err.Error()}, nil
	}

	token := fields["TransToken"]
	if token == "" {
		countGateway(d.Name(), "failure")
		msg := fields["ResultExplanation"]
		if msg == "" {
			msg = "gateway did not return a transaction token"
		}
		return InitiateResponse{Message: msg}, nil
	}

	var orderRef pgtype.Text
	if req.OrderRef != "" {
		orderRef = repo.Text(req.OrderRef)
	}
	if _, err := d.Store.Create(ctx, repo.PaymentTransaction{
		OrderRef:    orderRef,
		Reference:   token,
		Method:      d.Name(),
		Amount:      req.Amount,
		TotalAmount: total,
		Status:      dpoStatusCreated,
	}); err != nil {
		return InitiateResponse{}, err
	}
	countGateway(d.Name(), "success")

	return InitiateResponse{
		Reference:     token,
		Status:        dpoStatusCreated,
		PaymentURL:    d.BaseURL + "/payv2.php?ID=" + token,
		Amount:        req.Amount,
		TotalAmount:   total,
		ProcessingFee: total.Sub(req.Amount),
	}, nil
}

// Verify checks a token with the gateway and records the outcome against the
// stored transaction. Anything other than result code 000 is a failure.
func (d *DPO) Verify(ctx context.Context, token string) (VerifyResult, error) {
	if token == "" {
		return VerifyResult{}, ErrInvalidInput
	}

	fields, err := d.post(ctx, api3gRequest{
		CompanyToken:     d.CompanyToken,
		Request:          "verifyToken",
		TransactionToken: token,
	})
	if err != nil {
		countGateway(d.Name(), "failure")
		d.Logger.Warn().Err(err).Msg("dpo verify token failed")
		fields = map[string]string{"error": err.Error()}
	}

	success := fields["Result"] == dpoResultSuccess
	status := dpoStatusFailed
	paymentStatus := "failed"
	if success {
		countGateway(d.Name(), "success")
		status = dpoStatusCompleted
		paymentStatus = "paid"
	}

	raw, merr := json.Marshal(fields)
	if merr != nil {
		raw = nil
	}
	if _, err := d.Store.RecordVerification(ctx, token, status, raw); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return VerifyResult{}, err
	}

	return VerifyResult{
		Success:         success,
		Status:          status,
		PaymentStatus:   paymentStatus,
		ProviderPayload: fields,
	}, nil
}

func (d *DPO) post(ctx context.Context, body api3gRequest) (map[string]string, error) {
	payload, err := xml.Marshal(body)
	if err != nil {
		return nil, err
	}
	payload = append([]byte(xml.Header), payload...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/API/v6/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/xml")

	resp, err := d.Client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return parseAPI3G(raw)
}

// parseAPI3G flattens the first-level children of the API3G response element
// into a key/value map.
func parseAPI3G(raw []byte) (map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	fields := make(map[string]string)
	depth := 0
	var current string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New("invalid XML response")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 {
				current = t.Name.Local
			}
		case xml.EndElement:
			depth--
			current = ""
		case xml.CharData:
			if depth == 2 && current != "" {
				fields[current] += string(t)
			}
		}
	}
	if depth != 0 || len(fields) == 0 {
		return nil, errors.New("invalid XML response")
	}
	return fields, nil
}

func companyRef() string {
	return "ORDER_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

var _ Provider = (*DPO)(nil)
