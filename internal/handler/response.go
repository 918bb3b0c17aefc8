package handler

import (
	"net/http"

	"github.com/lawgate/consult-server-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
