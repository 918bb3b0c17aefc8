package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lawgate/consult-server-go/internal/audit"
	"github.com/lawgate/consult-server-go/internal/util"
)

const (
	operatorMaxFailures   = 5
	operatorFailureWindow = time.Minute
	operatorCleanupPeriod = 5 * time.Minute
)

type failureWindow struct {
	count       int
	windowStart time.Time
}

// OperatorAuthMiddleware guards the operator API with HTTP basic auth
// against a bcrypt hash. Repeated failures from one address are locked out
// for the rest of the window.
type OperatorAuthMiddleware struct {
	passwordHash string

	mu          sync.Mutex
	failures    map[string]*failureWindow
	lastCleanup time.Time
	now         func() time.Time
}

func NewOperatorAuthMiddleware(passwordHash string) *OperatorAuthMiddleware {
	return &OperatorAuthMiddleware{
		passwordHash: passwordHash,
		failures:     make(map[string]*failureWindow),
		lastCleanup:  time.Now(),
		now:          time.Now,
	}
}

func (m *OperatorAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.passwordHash == "" {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Operator API is not configured",
			})
			return
		}

		ip := r.RemoteAddr
		if m.lockedOut(ip) {
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Too many failed attempts. Please try again later.",
			})
			return
		}

		_, password, ok := r.BasicAuth()
		if !ok || !util.CheckPasswordHash(password, m.passwordHash) {
			m.recordFailure(ip)
			log.Warn().Str("ip", ip).Bool("missing", !ok).Msg("operator auth middleware: rejected credentials")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventOperatorAuthFailure,
				Details: map[string]interface{}{"missing": !ok},
			})
			w.Header().Set("WWW-Authenticate", `Basic realm="operator"`)
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid credentials",
			})
			return
		}

		m.reset(ip)
		next.ServeHTTP(w, r)
	})
}

func (m *OperatorAuthMiddleware) lockedOut(ip string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanup()
	f, ok := m.failures[ip]
	if !ok {
		return false
	}
	if m.now().Sub(f.windowStart) > operatorFailureWindow {
		delete(m.failures, ip)
		return false
	}
	return f.count >= operatorMaxFailures
}

func (m *OperatorAuthMiddleware) recordFailure(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	f, ok := m.failures[ip]
	if !ok || now.Sub(f.windowStart) > operatorFailureWindow {
		m.failures[ip] = &failureWindow{count: 1, windowStart: now}
		return
	}
	f.count++
}

func (m *OperatorAuthMiddleware) reset(ip string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, ip)
}

// cleanup must be called with mu held.
func (m *OperatorAuthMiddleware) cleanup() {
	now := m.now()
	if now.Sub(m.lastCleanup) < operatorCleanupPeriod {
		return
	}
	m.lastCleanup = now

	for ip, f := range m.failures {
		if now.Sub(f.windowStart) > operatorFailureWindow {
			delete(m.failures, ip)
		}
	}
}
