package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const maxStatementLen = 256

var (
	dbTracer = otel.Tracer("payalert/postgres")
	dbMeter  = otel.Meter("payalert/postgres")

	statementDuration, _ = dbMeter.Float64Histogram("payalert.db.statement.duration",
		metric.WithDescription("Round trip time of a SQL statement"),
		metric.WithUnit("s"),
	)
)

// statement is the low-cardinality description of a query attached to spans
// and metrics.
type statement struct {
	op    string
	table string
	text  string
}

func describe(query string) statement {
	text := normalizeStatement(query)
	fields := strings.Fields(text)

	s := statement{text: text}
	if len(fields) == 0 {
		return s
	}
	s.op = strings.ToUpper(fields[0])

	var after string
	switch s.op {
	case "SELECT", "DELETE":
		after = "FROM"
	case "INSERT":
		after = "INTO"
	case "UPDATE":
		if len(fields) > 1 {
			s.table = fields[1]
		}
		return s
	default:
		return s
	}
	for i := 1; i < len(fields)-1; i++ {
		if strings.EqualFold(fields[i], after) {
			s.table = strings.TrimRight(fields[i+1], "(,;")
			break
		}
	}
	return s
}

func (s statement) spanName() string {
	if s.table == "" {
		return s.op
	}
	return s.op + " " + s.table
}

// start opens a client span for the statement. The returned func ends it and
// records the duration; pass the statement error, or nil.
func (db *DB) start(ctx context.Context, query string) (context.Context, func(error)) {
	s := describe(query)
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", s.op),
	}
	if s.table != "" {
		attrs = append(attrs, attribute.String("db.collection.name", s.table))
	}

	ctx, span := dbTracer.Start(ctx, s.spanName(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
		trace.WithAttributes(attribute.String("db.query.text", s.text)),
	)
	began := time.Now()

	return ctx, func(err error) {
		// sql.ErrNoRows is an answer, not a failure.
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		statementDuration.Record(ctx, time.Since(began).Seconds(), metric.WithAttributes(attrs...))
		span.End()
	}
}

// QueryContext wraps sql.DB.QueryContext with tracing.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, end := db.start(ctx, query)
	rows, err := db.DB.QueryContext(ctx, query, args...)
	end(err)
	return rows, err
}

// ExecContext wraps sql.DB.ExecContext with tracing.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, end := db.start(ctx, query)
	result, err := db.DB.ExecContext(ctx, query, args...)
	end(err)
	return result, err
}

// Row is a single-row result. sql.Row only reports errors from Scan, so the
// span stays open until then.
type Row struct {
	row *sql.Row
	end func(error)
}

func (r *Row) Scan(dest ...any) error {
	err := r.row.Scan(dest...)
	if r.end != nil {
		r.end(err)
		r.end = nil
	}
	return err
}

// QueryRowContext wraps sql.DB.QueryRowContext with tracing.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	ctx, end := db.start(ctx, query)
	return &Row{row: db.DB.QueryRowContext(ctx, query, args...), end: end}
}

// normalizeStatement collapses whitespace and masks literal values so the
// statement text can be exported without leaking email bodies or PINs.
// Positional parameters ($1, $2) are kept.
func normalizeStatement(q string) string {
	var b strings.Builder
	b.Grow(len(q))

	space := false
	for i := 0; i < len(q); i++ {
		c := q[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			space = b.Len() > 0
			continue
		case space:
			b.WriteByte(' ')
			space = false
		}

		switch {
		case c == '\'':
			b.WriteString("'?'")
			i = skipQuoted(q, i+1)
		case isDigit(c) && !continuesWord(q, i):
			b.WriteByte('?')
			for i+1 < len(q) && (isDigit(q[i+1]) || q[i+1] == '.') {
				i++
			}
		default:
			b.WriteByte(c)
		}
	}

	out := b.String()
	if len(out) > maxStatementLen {
		out = out[:maxStatementLen] + "..."
	}
	return out
}

// skipQuoted returns the index of the quote closing a literal that starts at
// i, honouring doubled quotes.
func skipQuoted(q string, i int) int {
	for ; i < len(q); i++ {
		if q[i] != '\'' {
			continue
		}
		if i+1 < len(q) && q[i+1] == '\'' {
			i++
			continue
		}
		return i
	}
	return len(q)
}

func continuesWord(q string, i int) bool {
	if i == 0 {
		return false
	}
	p := q[i-1]
	return p == '$' || p == '_' || isDigit(p) || (p|0x20 >= 'a' && p|0x20 <= 'z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
