package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tdsession "github.com/gotd/td/session"
	"github.com/rs/zerolog/log"

	"github.com/lawgate/consult-server-go/internal/audit"
	"github.com/lawgate/consult-server-go/internal/metrics"
)

// ErrPasswordRequired is returned by Authenticator.SignIn when the account
// has a second factor.
var ErrPasswordRequired = errors.New("two-factor password required")

// Authenticator is the identity provider side of the login ceremony.
type Authenticator interface {
	// Authorized probes whether the loaded session is still accepted.
	Authorized(ctx context.Context) (bool, error)
	// SendCode sends a login code to phone and returns the code hash.
	SendCode(ctx context.Context, phone string) (string, error)
	SignIn(ctx context.Context, phone, code, codeHash string) error
	Password(ctx context.Context, password string) error
}

// BlobLoader reads the persisted session blob.
type BlobLoader interface {
	LoadSession(ctx context.Context) ([]byte, error)
}

type Config struct {
	AppID   int
	AppHash string
	Phone   string
}

func (c Config) Configured() bool {
	return c.AppID != 0 && c.AppHash != "" && c.Phone != ""
}

// Manager drives the operator identity from a stored blob (or nothing) to a
// valid session. The blob itself is written by the provider client through
// FileStorage once sign-in succeeds.
type Manager struct {
	cfg      Config
	blobs    BlobLoader
	prompter Prompter

	mu    sync.RWMutex
	state State
}

// NewManager builds a manager. prompter may be nil when no human can answer,
// in which case a needed login ends in StateDegraded.
func NewManager(cfg Config, blobs BlobLoader, prompter Prompter) *Manager {
	m := &Manager{
		cfg:      cfg,
		blobs:    blobs,
		prompter: prompter,
		state:    StateNoSession,
	}
	if !cfg.Configured() {
		m.state = StateUnavailable
	}
	return m
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) StateName() string {
	return string(m.State())
}

// Degraded reports whether verification is limited to explicit commands.
func (m *Manager) Degraded() bool {
	s := m.State()
	return s == StateDegraded || s == StateUnavailable
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()

	if s == StateValid {
		metrics.OperatorSession.Set(1)
	} else {
		metrics.OperatorSession.Set(0)
	}
	if prev != s {
		log.Info().Str("from", string(prev)).Str("to", string(s)).Msg("operator session state changed")
	}
}

// Establish loads, probes and if necessary renews the session. It returns
// the final state; the error explains a StateDegraded outcome. It never
// panics for lack of input and only blocks for as long as the prompter does.
func (m *Manager) Establish(ctx context.Context, auth Authenticator) (State, error) {
	if !m.cfg.Configured() {
		m.setState(StateUnavailable)
		log.Warn().Msg("TELEGRAM_API_ID, TELEGRAM_API_HASH or TELEGRAM_PHONE missing: operator identity unavailable, use /check")
		return StateUnavailable, nil
	}

	m.setState(m.loadState(ctx))

	if m.State() == StateUntested {
		ok, err := auth.Authorized(ctx)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("operator session probe failed")
			m.setState(StateInvalid)
		case ok:
			m.setState(StateValid)
			return StateValid, nil
		default:
			m.setState(StateInvalid)
		}
		audit.Log(ctx, audit.Event{
			Type:    audit.EventSessionInvalid,
			Details: map[string]interface{}{"probeError": err != nil},
		})
	}

	if err := m.login(ctx, auth); err != nil {
		m.setState(StateDegraded)
		log.Warn().Err(err).Msg("operator login did not complete, running degraded")
		return StateDegraded, err
	}

	m.setState(StateValid)
	audit.Log(ctx, audit.Event{Type: audit.EventSessionLogin})
	return StateValid, nil
}

func (m *Manager) loadState(ctx context.Context) State {
	blob, err := m.blobs.LoadSession(ctx)
	switch {
	case errors.Is(err, tdsession.ErrNotFound):
		return StateNoSession
	case err != nil:
		log.Warn().Err(err).Msg("stored operator session unreadable, a new login is required")
		return StateNoSession
	case len(blob) == 0:
		return StateNoSession
	default:
		return StateUntested
	}
}

func (m *Manager) login(ctx context.Context, auth Authenticator) error {
	if m.prompter == nil {
		return ErrNoInput
	}

	hash, err := auth.SendCode(ctx, m.cfg.Phone)
	if err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	log.Info().Msg("login code sent to operator phone")

	code, err := m.prompter.Code(ctx)
	if err != nil {
		return fmt.Errorf("read code: %w", err)
	}

	err = auth.SignIn(ctx, m.cfg.Phone, code, hash)
	if errors.Is(err, ErrPasswordRequired) {
		password, perr := m.prompter.Password(ctx)
		if perr != nil {
			return fmt.Errorf("read password: %w", perr)
		}
		err = auth.Password(ctx, password)
	}
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}
