package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLen = 200

// catalogTables are the tables a bundle catalog query can touch, most specific first.
var catalogTables = []string{"bundle_components", "bundle_definitions", "schema_migrations"}

type ctxSpanKey struct{}

// PGXTracer implements pgx.QueryTracer, naming each span after the SQL verb and the
// catalog table it reads or writes.
type PGXTracer struct{}

// TraceQueryStart starts a span for the SQL statement.
func (PGXTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op, table := describeSQL(data.SQL)
	ctx, span := otel.Tracer("db.pgx").Start(ctx, spanName(op, table), trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", truncateSQL(data.SQL)),
	)
	if op != "" {
		span.SetAttributes(attribute.String("db.operation", op))
	}
	if table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}
	return context.WithValue(ctx, ctxSpanKey{}, span)
}

// TraceQueryEnd ends the span, marking it failed when the query errored.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span, ok := ctx.Value(ctxSpanKey{}).(trace.Span)
	if !ok {
		return
	}
	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, "query failed")
	} else {
		span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	}
	span.End()
}

// describeSQL returns the upper-cased leading verb and the first catalog table named in sql.
func describeSQL(sql string) (op, table string) {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "", ""
	}
	op = strings.ToUpper(fields[0])
	lower := strings.ToLower(sql)
	for _, t := range catalogTables {
		if strings.Contains(lower, t) {
			return op, t
		}
	}
	return op, ""
}

func spanName(op, table string) string {
	switch {
	case op == "":
		return "pgx.query"
	case table == "":
		return "pgx " + op
	default:
		return "pgx " + op + " " + table
	}
}

// truncateSQL collapses whitespace and caps the statement length.
func truncateSQL(sql string) string {
	flat := strings.Join(strings.Fields(sql), " ")
	if len(flat) > maxStatementLen {
		return flat[:maxStatementLen] + "..."
	}
	return flat
}
