package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	apperrors "github.com/lawgate/consult-server-go/internal/errors"
	"github.com/lawgate/consult-server-go/internal/httputil"
	"github.com/lawgate/consult-server-go/internal/model"
	"github.com/lawgate/consult-server-go/internal/service"
)

// OperatorHandler exposes verification to operator tooling over HTTP.
type OperatorHandler struct {
	verifier Verifier
	contacts ContactLister
	auth     func(http.Handler) http.Handler
}

func NewOperatorHandler(verifier Verifier, contacts ContactLister, auth func(http.Handler) http.Handler) *OperatorHandler {
	return &OperatorHandler{
		verifier: verifier,
		contacts: contacts,
		auth:     auth,
	}
}

func (h *OperatorHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.auth)
	r.Post("/verify", h.Verify)
	r.Get("/contacts", h.Contacts)
	return r
}

type verifyRequest struct {
	Text     string `json:"text"`
	ClientID int64  `json:"clientId"`
	Secret   string `json:"secret"`
}

type verifyResponse struct {
	Verified    bool                   `json:"verified"`
	ClientID    int64                  `json:"clientId"`
	Kind        model.ConsultationKind `json:"kind,omitempty"`
	Amount      *decimal.Decimal       `json:"amount,omitempty"`
	PaymentRef  string                 `json:"paymentRef,omitempty"`
	Client      *model.ClientFields    `json:"client,omitempty"`
	TotalCount  int                    `json:"totalConsultations,omitempty"`
	TotalAmount *decimal.Decimal       `json:"totalAmount,omitempty"`
	Receipt     string                 `json:"receipt"`
}

func (h *OperatorHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	ctx := r.Context()
	var (
		result *service.VerifyResult
		err    error
	)
	switch {
	case req.Text != "":
		result, err = h.verifier.VerifyText(ctx, req.Text, service.ChannelHTTP)
	case req.ClientID > 0 && req.Secret != "":
		result, err = h.verifier.Verify(ctx, req.ClientID, req.Secret, service.ChannelHTTP)
	default:
		httputil.WriteError(w, apperrors.MissingRequired("text or clientId and secret"))
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	switch result.Outcome {
	case service.OutcomeNeedsIdentity:
		httputil.WriteError(w, apperrors.MissingRequired("clientId"))
		return
	case service.OutcomeNeedsSecret:
		httputil.WriteError(w, apperrors.MissingRequired("secret"))
		return
	case service.OutcomeRejected:
		httputil.WriteError(w, apperrors.VerificationRejected())
		return
	}

	resp := verifyResponse{
		Verified: true,
		ClientID: result.ClientID,
		Receipt:  service.OperatorReceipt(result.ClientID, result.Record, result.Stats),
	}
	if rec := result.Record; rec != nil {
		resp.Kind = rec.Kind
		resp.Amount = &rec.Amount
		resp.PaymentRef = rec.PaymentRef
		resp.Client = &rec.ClientFields
	}
	if stats := result.Stats; stats != nil {
		resp.TotalCount = stats.TotalConsultations
		resp.TotalAmount = &stats.TotalAmount
	}

	log.Info().Int64("clientId", result.ClientID).Msg("operator verification via http")
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *OperatorHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	entries, err := h.contacts.List(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list operator contacts")
		httputil.WriteError(w, apperrors.External("redis", err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"contacts": entries,
		"total":    len(entries),
	})
}
