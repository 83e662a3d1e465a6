package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brunomcebola/argos/internal/audit"
)

type AuditMiddleware struct {
	service *audit.Service
}

func NewAuditMiddleware(s *audit.Service) *AuditMiddleware {
	return &AuditMiddleware{service: s}
}

// LogRequest writes one audit event per mutating request (POST/PUT/PATCH/
// DELETE) against the master's HTTP surface.
func (m *AuditMiddleware) LogRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseCapture{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		isMutating := r.Method == http.MethodPost || r.Method == http.MethodPut ||
			r.Method == http.MethodPatch || r.Method == http.MethodDelete
		if !isMutating {
			return
		}

		evt := audit.Event{
			EventID:    uuid.New(),
			Action:     truncate(fmt.Sprintf("http.%s", strings.ToLower(r.Method)), 100),
			TargetType: "http_route",
			TargetID:   truncate(r.URL.Path, 100),
			Result:     "success",
			CreatedAt:  time.Now(),
		}

		duration := time.Since(start)
		evt.Metadata = json.RawMessage(fmt.Sprintf(`{"latency_ms": %d}`, duration.Milliseconds()))

		if ww.status >= 400 {
			evt.Result = "error"
			evt.Reason = truncate(fmt.Sprintf("http_%d", ww.status), 50)
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = m.service.WriteEvent(ctx, evt)
		}()
	})
}

type responseCapture struct {
	http.ResponseWriter
	status int
}

func (w *responseCapture) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
