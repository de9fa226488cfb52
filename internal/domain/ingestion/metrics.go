package ingestion

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	ingestTracer = otel.Tracer("payalert/ingestion")
	ingestMeter  = otel.Meter("payalert/ingestion")

	outcomeTotal, _ = ingestMeter.Int64Counter("ingest.outcome.total",
		metric.WithDescription("Ingestion outcomes by mode and outcome"),
	)
	batchItems, _ = ingestMeter.Int64Counter("ingest.batch.items",
		metric.WithDescription("Two-phase batch items by result"),
	)
	extractionTotal, _ = ingestMeter.Int64Counter("ingest.extraction.total",
		metric.WithDescription("Extraction attempts by result"),
	)
	extractionDuration, _ = ingestMeter.Float64Histogram("ingest.extraction.duration",
		metric.WithDescription("Model extraction latency in seconds"),
		metric.WithUnit("s"),
	)
)
