package obs

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-resto/internal/common"
)

// NewLogger builds the process logger. format "console" (or "text") selects
// the human readable writer, anything else emits JSON. Unknown levels fall
// back to info.
func NewLogger(format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var out io.Writer = os.Stdout
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// RequestLogger attaches a request scoped logger for zerolog.Ctx and writes
// one access line per request once the handler returns.
type RequestLogger struct {
	Logger zerolog.Logger
}

func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := newRecorder(w)

		fields := requestFields(r)
		scoped := l.Logger.With().Fields(fields).Logger()
		next.ServeHTTP(rec, r.WithContext(scoped.WithContext(r.Context())))

		route := RouteOf(r)
		if route == "" {
			route = r.URL.Path
		}
		evt := l.Logger.WithLevel(levelFor(rec.status)).
			Fields(fields).
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Int64("duration_ms", time.Since(started).Milliseconds()).
			Int64("bytes", rec.bytes).
			Str("remote_addr", common.ClientIP(r))
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			evt = evt.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		if ua := r.UserAgent(); ua != "" {
			evt = evt.Str("user_agent", ua)
		}
		evt.Msg("http_request")
	})
}

// requestFields are shared by the scoped logger and the access line.
func requestFields(r *http.Request) map[string]any {
	fields := map[string]any{}
	if id := middleware.GetReqID(r.Context()); id != "" {
		fields["request_id"] = id
	}
	if staff, ok := common.StaffID(r.Context()); ok {
		fields["staff_id"] = staff.String()
	}
	return fields
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
