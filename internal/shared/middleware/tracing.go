package middleware

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const unmatchedRoute = "unmatched"

var (
	httpTracer = otel.Tracer("payalert/http")
	httpMeter  = otel.Meter("payalert/http")

	requestDuration, _ = httpMeter.Float64Histogram("payalert.http.request.duration",
		metric.WithDescription("Time to complete a non-streaming API request"),
		metric.WithUnit("s"),
	)
	requestCount, _ = httpMeter.Int64Counter("payalert.http.requests",
		metric.WithDescription("API requests by route and status"),
	)
	openStreams, _ = httpMeter.Int64UpDownCounter("payalert.http.open_streams",
		metric.WithDescription("Dashboard event streams currently connected"),
	)
)

// Tracing opens a server span per request and records per-route metrics.
// Spans and metrics are keyed by the mux pattern rather than the raw path so
// transaction ids do not explode cardinality. Callers sending a traceparent
// header join the caller's trace.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := httpTracer.Start(ctx, r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("http.request.method", r.Method)),
		)
		defer span.End()

		streaming := r.Header.Get("Accept") == "text/event-stream"
		if streaming {
			openStreams.Add(ctx, 1)
			defer openStreams.Add(ctx, -1)
		}

		start := time.Now()
		rw := wrapResponseWriter(w)
		req := r.WithContext(ctx)
		next.ServeHTTP(rw, req)

		// ServeMux records the matched pattern on the request it was handed.
		route := req.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		status := rw.status
		if status == 0 {
			status = http.StatusOK
		}

		span.SetName(route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}

		attrs := metric.WithAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		)
		requestCount.Add(ctx, 1, attrs)
		if !streaming {
			requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		}
	})
}
