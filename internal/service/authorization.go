package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lawgate/consult-server-go/internal/audit"
	"github.com/lawgate/consult-server-go/internal/database"
	apperrors "github.com/lawgate/consult-server-go/internal/errors"
	"github.com/lawgate/consult-server-go/internal/metrics"
	"github.com/lawgate/consult-server-go/internal/model"
	"github.com/lawgate/consult-server-go/internal/repository"
	"github.com/lawgate/consult-server-go/internal/util"
)

var identityPattern = regexp.MustCompile(`\d{8,}`)

type VerifyOutcome string

const (
	OutcomeVerified      VerifyOutcome = "verified"
	OutcomeRejected      VerifyOutcome = "rejected"
	OutcomeNeedsIdentity VerifyOutcome = "needs_identity"
	OutcomeNeedsSecret   VerifyOutcome = "needs_secret"
)

// Verification channels, used for logs and metrics.
const (
	ChannelCommand  = "command"
	ChannelBotText  = "bot_text"
	ChannelOperator = "operator_identity"
	ChannelHTTP     = "http"
)

// Credentials is what could be pulled out of a free-text message.
type Credentials struct {
	ClientID    int64
	Secret      string
	HasIdentity bool
	HasSecret   bool
}

type VerifyResult struct {
	Outcome  VerifyOutcome
	ClientID int64
	Record   *model.ConsultationRecord
	Stats    *model.ClientStats
}

// ContactRecorder keeps track of verified clients for the operator.
type ContactRecorder interface {
	Record(ctx context.Context, entry ContactEntry) error
}

type AuthorizationService struct {
	ledger   repository.ConsultationRepository
	contacts ContactRecorder
	codeWord string
	secretRe *regexp.Regexp
}

func NewAuthorizationService(ledger repository.ConsultationRepository, contacts ContactRecorder, codeWord string) *AuthorizationService {
	return &AuthorizationService{
		ledger:   ledger,
		contacts: contacts,
		codeWord: codeWord,
		secretRe: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(codeWord)),
	}
}

func (s *AuthorizationService) CodeWord() string {
	return s.codeWord
}

// ExtractCredentials takes the first run of at least eight digits that fits
// an int64 as the identity and the first case-insensitive occurrence of the code word as
// the secret.
func (s *AuthorizationService) ExtractCredentials(text string) Credentials {
	var creds Credentials

	if s.secretRe.MatchString(text) {
		creds.HasSecret = true
		creds.Secret = s.codeWord
	}

	for _, match := range identityPattern.FindAllString(text, -1) {
		if id, err := strconv.ParseInt(match, 10, 64); err == nil {
			creds.ClientID = id
			creds.HasIdentity = true
			break
		}
	}

	return creds
}

// VerifyText runs the protocol on a free-text message. Missing identity or
// secret yields a guidance outcome rather than a rejection.
func (s *AuthorizationService) VerifyText(ctx context.Context, text, channel string) (*VerifyResult, error) {
	creds := s.ExtractCredentials(text)
	switch {
	case !creds.HasSecret:
		return &VerifyResult{Outcome: OutcomeNeedsSecret}, nil
	case !creds.HasIdentity:
		return &VerifyResult{Outcome: OutcomeNeedsIdentity}, nil
	}
	return s.Verify(ctx, creds.ClientID, creds.Secret, channel)
}

// Verify checks secret against the ledger for clientID. A rejection is a
// result, not an error; errors are reserved for storage failures.
func (s *AuthorizationService) Verify(ctx context.Context, clientID int64, secret, channel string) (*VerifyResult, error) {
	secret = s.canonicalSecret(secret)

	ok, err := s.ledger.HasSecret(ctx, clientID, secret)
	if err != nil {
		return nil, s.storageError(err, clientID, channel)
	}

	if !ok {
		metrics.Verifications.WithLabelValues(string(OutcomeRejected), channel).Inc()
		log.Warn().Int64("clientId", clientID).Str("channel", channel).Msg("code word rejected")
		audit.Log(ctx, audit.Event{
			Type:     audit.EventVerificationRejected,
			ClientID: clientID,
			Details:  map[string]interface{}{"channel": channel, "attempt": util.MaskSecret(secret)},
		})
		return &VerifyResult{Outcome: OutcomeRejected, ClientID: clientID}, nil
	}

	rec, err := s.ledger.FindBySecret(ctx, clientID, secret)
	if err != nil {
		return nil, s.storageError(err, clientID, channel)
	}

	var stats *model.ClientStats
	if rec != nil {
		stats, err = s.ledger.Stats(ctx, clientID)
		if err != nil {
			log.Warn().Err(err).Int64("clientId", clientID).Msg("client stats unavailable")
		}
	}

	metrics.Verifications.WithLabelValues(string(OutcomeVerified), channel).Inc()
	details := map[string]interface{}{"channel": channel}
	if rec != nil {
		details["paymentRef"] = rec.PaymentRef
	}
	audit.Log(ctx, audit.Event{
		Type:     audit.EventVerificationSuccess,
		ClientID: clientID,
		Details:  details,
	})

	if rec != nil && s.contacts != nil {
		entry := ContactEntry{
			ClientID:    clientID,
			Name:        rec.DisplayName(),
			Handle:      rec.Handle(),
			Amount:      rec.Amount,
			Kind:        rec.Kind,
			LastContact: time.Now(),
		}
		if err := s.contacts.Record(ctx, entry); err != nil {
			log.Warn().Err(err).Int64("clientId", clientID).Msg("failed to record operator contact")
		}
	}

	return &VerifyResult{Outcome: OutcomeVerified, ClientID: clientID, Record: rec, Stats: stats}, nil
}

// ParseCheckArgs parses the arguments of "/check <identity> <secret>".
func ParseCheckArgs(args string) (int64, string, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return 0, "", apperrors.MissingRequired("identity and code word")
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", apperrors.InvalidInput("telegram_id", "must be a number")
	}
	return id, fields[1], nil
}

func (s *AuthorizationService) canonicalSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if strings.EqualFold(secret, s.codeWord) {
		return s.codeWord
	}
	return secret
}

func (s *AuthorizationService) storageError(err error, clientID int64, channel string) error {
	metrics.Verifications.WithLabelValues("error", channel).Inc()
	log.Error().Err(err).Int64("clientId", clientID).Str("channel", channel).Msg("verification storage failure")
	if errors.Is(err, database.ErrUnavailable) {
		return apperrors.Unavailable(err)
	}
	return apperrors.Database(fmt.Errorf("verify: %w", err))
}
