package obs

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLen = 300

type querySpanKey struct{}

// PGXTracer is a pgx.QueryTracer that wraps each statement in a client span
// named after its SQL verb, e.g. "db SELECT".
type PGXTracer struct{}

var _ pgx.QueryTracer = PGXTracer{}

func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	stmt := compactSQL(data.SQL)
	op := sqlVerb(stmt)
	ctx, span := otel.Tracer("resto/db").Start(ctx, "db "+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			attribute.String("db.operation", op),
			attribute.String("db.statement", stmt),
		),
	)
	return context.WithValue(ctx, querySpanKey{}, span)
}

// TraceQueryEnd closes the span. pgx.ErrNoRows is a lookup miss and leaves
// the span status unset.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(querySpanKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()
	span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	if data.Err == nil || errors.Is(data.Err, pgx.ErrNoRows) {
		return
	}
	span.RecordError(data.Err)
	span.SetStatus(codes.Error, data.Err.Error())
}

func compactSQL(sql string) string {
	stmt := strings.Join(strings.Fields(sql), " ")
	if len(stmt) > maxStatementLen {
		stmt = stmt[:maxStatementLen] + "..."
	}
	return stmt
}

func sqlVerb(stmt string) string {
	verb, _, _ := strings.Cut(stmt, " ")
	if verb == "" {
		return "QUERY"
	}
	return strings.ToUpper(verb)
}
