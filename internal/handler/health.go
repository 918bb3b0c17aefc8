package handler

import (
	"context"
	"net/http"
	"time"
)

// StoreProbe reports whether the database answers.
type StoreProbe interface {
	EnsureConnection(ctx context.Context) bool
}

// SessionProbe reports the operator identity's state.
type SessionProbe interface {
	StateName() string
}

type HealthHandler struct {
	store   StoreProbe
	session SessionProbe
}

// NewHealthHandler builds the handler. session may be nil when the
// operator identity is disabled.
func NewHealthHandler(store StoreProbe, session SessionProbe) *HealthHandler {
	return &HealthHandler{store: store, session: session}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbOK := h.store.EnsureConnection(ctx)
	status := "ok"
	code := http.StatusOK
	if !dbOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	body := map[string]any{
		"status":   status,
		"database": dbOK,
	}
	if h.session != nil {
		body["operatorSession"] = h.session.StateName()
	}
	writeJSON(w, code, body)
}
