package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/lawgate/consult-server-go/internal/config"
	"github.com/lawgate/consult-server-go/internal/model"
)

const defaultYooKassaURL = "https://api.yookassa.ru/v3"

// YooKassaClient talks to the YooKassa payments API.
type YooKassaClient struct {
	client    *http.Client
	baseURL   string
	shopID    string
	secretKey string
	returnURL string
}

func NewYooKassaClient(shopID, secretKey, returnURL string) *YooKassaClient {
	return &YooKassaClient{
		client:    &http.Client{Timeout: config.PaymentAPITimeout},
		baseURL:   defaultYooKassaURL,
		shopID:    shopID,
		secretKey: secretKey,
		returnURL: returnURL,
	}
}

// WithBaseURL points the client at another endpoint, e.g. a test server.
func (c *YooKassaClient) WithBaseURL(baseURL string) *YooKassaClient {
	c.baseURL = baseURL
	return c
}

type yooAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooReceiptItem struct {
	Description    string    `json:"description"`
	Quantity       string    `json:"quantity"`
	Amount         yooAmount `json:"amount"`
	VatCode        int       `json:"vat_code"`
	PaymentSubject string    `json:"payment_subject"`
	PaymentMode    string    `json:"payment_mode"`
}

type yooReceipt struct {
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
	Items []yooReceiptItem `json:"items"`
}

type yooCreateRequest struct {
	Amount       yooAmount `json:"amount"`
	Capture      bool      `json:"capture"`
	Description  string    `json:"description"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url"`
	} `json:"confirmation"`
	Receipt  *yooReceipt       `json:"receipt,omitempty"`
	Metadata map[string]string `json:"metadata"`
}

type yooPayment struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	Paid         bool      `json:"paid"`
	Amount       yooAmount `json:"amount"`
	Confirmation *struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation,omitempty"`
	Metadata map[string]string `json:"metadata"`
}

func (c *YooKassaClient) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*ProviderPayment, error) {
	amount := yooAmount{Value: req.Amount.StringFixed(2), Currency: "RUB"}

	body := yooCreateRequest{
		Amount:      amount,
		Capture:     true,
		Description: req.Kind.Title(),
		Metadata: map[string]string{
			"client_id":         strconv.FormatInt(req.ClientID, 10),
			"consultation_type": string(req.Kind),
		},
	}
	body.Confirmation.Type = "redirect"
	body.Confirmation.ReturnURL = c.returnURL

	if req.Email != nil && *req.Email != "" {
		receipt := &yooReceipt{Items: []yooReceiptItem{{
			Description:    req.Kind.Title(),
			Quantity:       "1",
			Amount:         amount,
			VatCode:        1,
			PaymentSubject: "service",
			PaymentMode:    "full_payment",
		}}}
		receipt.Customer.Email = *req.Email
		body.Receipt = receipt
		body.Metadata["receipt_email"] = *req.Email
	}

	var payment yooPayment
	if err := c.do(ctx, http.MethodPost, "/payments", body, &payment); err != nil {
		return nil, err
	}

	log.Info().
		Str("paymentRef", payment.ID).
		Int64("clientId", req.ClientID).
		Str("kind", string(req.Kind)).
		Msg("payment created")

	return payment.toProvider(), nil
}

func (c *YooKassaClient) CheckStatus(ctx context.Context, paymentRef string) (*ProviderPayment, error) {
	if paymentRef == "" {
		return nil, fmt.Errorf("empty payment ref")
	}
	var payment yooPayment
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentRef, nil, &payment); err != nil {
		return nil, err
	}
	return payment.toProvider(), nil
}

func (p yooPayment) toProvider() *ProviderPayment {
	out := &ProviderPayment{
		ID:       p.ID,
		Status:   p.Status,
		Metadata: p.Metadata,
	}
	if amount, err := decimal.NewFromString(p.Amount.Value); err == nil {
		out.Amount = amount
	}
	if p.Confirmation != nil {
		out.ConfirmationURL = p.Confirmation.ConfirmationURL
	}
	return out
}

func (c *YooKassaClient) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotence-Key", uuid.NewString())
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("path", path).Dur("elapsed", elapsed).Msg("yookassa request error")
		return fmt.Errorf("yookassa request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
		log.Error().
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("code", apiErr.Code).
			Dur("elapsed", elapsed).
			Msg("yookassa request rejected")
		return fmt.Errorf("yookassa status %d: %s %s", resp.StatusCode, apiErr.Code, apiErr.Description)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// kindFromMetadata falls back to oral, as the checkout always sets the key.
func kindFromMetadata(meta map[string]string) model.ConsultationKind {
	kind := model.ConsultationKind(meta["consultation_type"])
	if !kind.Valid() {
		return model.ConsultationKindOral
	}
	return kind
}

// emailFromMetadata returns the receipt address given at checkout, if any.
func emailFromMetadata(meta map[string]string) *string {
	if email := meta["receipt_email"]; email != "" {
		return &email
	}
	return nil
}

func clientFromMetadata(meta map[string]string) (int64, bool) {
	id, err := strconv.ParseInt(meta["client_id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
