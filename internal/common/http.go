package common

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ClientIP returns the host part of RemoteAddr. Routers run chi's RealIP
// first, so proxy headers are already folded in.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// IfMatchVersion parses an optional If-Match header carrying an entity version.
// Quotes and a weak prefix are tolerated.
func IfMatchVersion(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return nil, Validation("invalid If-Match header", map[string]any{"If-Match": "must be a version number"})
	}
	return &v, nil
}

// ETagVersion renders a version as a strong ETag.
func ETagVersion(w http.ResponseWriter, version int64) {
	w.Header().Set("ETag", `"`+strconv.FormatInt(version, 10)+`"`)
}
