package common

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type ctxKey string

const staffIDKey ctxKey = "staff/id"

// StaffHeader carries the acting staff member. Identity is established upstream.
const StaffHeader = "X-Staff-ID"

// WithStaffID stores the acting staff identifier on the provided context.
func WithStaffID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, staffIDKey, id)
}

// StaffID extracts the acting staff identifier from the context if present.
func StaffID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(staffIDKey).(uuid.UUID)
	return id, ok
}

// StaffContext copies a well-formed X-Staff-ID header onto the request context.
// Malformed values are ignored.
func StaffContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(StaffHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithStaffID(r.Context(), id)))
	})
}
