package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/timelapser/server/internal/observability"

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// CaptureMetrics holds capture and timelapse pipeline metrics
type CaptureMetrics struct {
	captureCount    metric.Int64Counter
	captureFailures metric.Int64Counter
	captureDuration metric.Float64Histogram
	encodeCount     metric.Int64Counter
	encodeDuration  metric.Float64Histogram
	framesOnDisk    metric.Int64UpDownCounter
}

// NewCaptureMetrics creates capture metrics instruments
func NewCaptureMetrics() (*CaptureMetrics, error) {
	meter := otel.Meter(instrumentationName)

	captureCount, err := meter.Int64Counter(
		"timelapser.capture.count",
		metric.WithDescription("Total number of capture attempts"),
		metric.WithUnit("{captures}"),
	)
	if err != nil {
		return nil, err
	}

	captureFailures, err := meter.Int64Counter(
		"timelapser.capture.failures",
		metric.WithDescription("Total number of failed captures"),
		metric.WithUnit("{failures}"),
	)
	if err != nil {
		return nil, err
	}

	captureDuration, err := meter.Float64Histogram(
		"timelapser.capture.duration",
		metric.WithDescription("Frame capture duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	encodeCount, err := meter.Int64Counter(
		"timelapser.encode.count",
		metric.WithDescription("Total number of timelapse encodes"),
		metric.WithUnit("{encodes}"),
	)
	if err != nil {
		return nil, err
	}

	encodeDuration, err := meter.Float64Histogram(
		"timelapser.encode.duration",
		metric.WithDescription("Timelapse encode duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	framesOnDisk, err := meter.Int64UpDownCounter(
		"timelapser.frames.on_disk",
		metric.WithDescription("Number of frame files currently on disk"),
		metric.WithUnit("{frames}"),
	)
	if err != nil {
		return nil, err
	}

	return &CaptureMetrics{
		captureCount:    captureCount,
		captureFailures: captureFailures,
		captureDuration: captureDuration,
		encodeCount:     encodeCount,
		encodeDuration:  encodeDuration,
		framesOnDisk:    framesOnDisk,
	}, nil
}

// RecordCapture records a capture attempt outcome
func (m *CaptureMetrics) RecordCapture(ctx context.Context, camera string, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		CameraName(camera),
		attribute.Bool("success", success),
	}

	m.captureCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.captureDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if success {
		m.framesOnDisk.Add(ctx, 1, metric.WithAttributes(CameraName(camera)))
	} else {
		m.captureFailures.Add(ctx, 1, metric.WithAttributes(CameraName(camera)))
	}
}

// RecordEncode records a timelapse encode
func (m *CaptureMetrics) RecordEncode(ctx context.Context, camera, batchType string, duration time.Duration, success bool) {
	attrs := []attribute.KeyValue{
		CameraName(camera),
		BatchType(batchType),
		attribute.Bool("success", success),
	}

	m.encodeCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.encodeDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordFramesPurged records frames removed by retention cleanup
func (m *CaptureMetrics) RecordFramesPurged(ctx context.Context, camera string, count int) {
	m.framesOnDisk.Add(ctx, -int64(count), metric.WithAttributes(CameraName(camera)))
}
