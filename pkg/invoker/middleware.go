package invoker

import (
	"context"
	"errors"
	"time"

	"github.com/aws/smithy-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Middleware decorates an Invoker. Decorators observe calls; they never
// retry them or change the error a call returns.
type Middleware func(Invoker) Invoker

// Chain wraps inv so the first middleware is the outermost
func Chain(inv Invoker, mws ...Middleware) Invoker {
	for i := len(mws) - 1; i >= 0; i-- {
		inv = mws[i](inv)
	}
	return inv
}

// ErrorCode classifies err for logs and metric labels
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var apiErr smithy.APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.ErrorCode()
	case errors.Is(err, ErrUnknownOperation):
		return "UnknownOperation"
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "DeadlineExceeded"
	default:
		return "Error"
	}
}

// WithLogging logs every call at debug level and failures at warn level
func WithLogging(logger *zap.Logger) Middleware {
	return func(next Invoker) Invoker {
		return &loggingInvoker{next: next, logger: logger}
	}
}

type loggingInvoker struct {
	next   Invoker
	logger *zap.Logger
}

func (l *loggingInvoker) ExpectedParams(op string) ([]Param, error) {
	return l.next.ExpectedParams(op)
}

func (l *loggingInvoker) Invoke(ctx context.Context, op string, params map[string]any) (map[string]any, error) {
	start := time.Now()
	result, err := l.next.Invoke(ctx, op, params)
	duration := time.Since(start)

	if err != nil {
		l.logger.Warn("operation failed",
			zap.String("operation", op),
			zap.String("code", ErrorCode(err)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return result, err
	}

	l.logger.Debug("operation invoked",
		zap.String("operation", op),
		zap.Int("params", len(params)),
		zap.Int("result_keys", len(result)),
		zap.Duration("duration", duration),
	)
	return result, nil
}

// Metrics holds the Prometheus collectors used by WithMetrics
type Metrics struct {
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates and registers invoker collectors on reg. Collectors
// already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dynres",
			Subsystem: "invoker",
			Name:      "calls_total",
			Help:      "Remote operations invoked, by operation.",
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dynres",
			Subsystem: "invoker",
			Name:      "errors_total",
			Help:      "Remote operations that failed, by operation and error code.",
		}, []string{"operation", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dynres",
			Subsystem: "invoker",
			Name:      "duration_seconds",
			Help:      "Time spent in remote operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	var err error
	if m.calls, err = register(reg, m.calls); err != nil {
		return nil, err
	}
	if m.errors, err = register(reg, m.errors); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// WithMetrics records call counts, error codes and latency
func WithMetrics(m *Metrics) Middleware {
	return func(next Invoker) Invoker {
		return &metricsInvoker{next: next, metrics: m}
	}
}

type metricsInvoker struct {
	next    Invoker
	metrics *Metrics
}

func (m *metricsInvoker) ExpectedParams(op string) ([]Param, error) {
	return m.next.ExpectedParams(op)
}

func (m *metricsInvoker) Invoke(ctx context.Context, op string, params map[string]any) (map[string]any, error) {
	start := time.Now()
	result, err := m.next.Invoke(ctx, op, params)

	m.metrics.calls.WithLabelValues(op).Inc()
	m.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.metrics.errors.WithLabelValues(op, ErrorCode(err)).Inc()
	}
	return result, err
}

// TracerName is the instrumentation name used when no tracer is supplied
const TracerName = "github.com/conduit-lang/dynres/pkg/invoker"

// WithTracing wraps each call in a span. A nil tracer uses the global provider.
func WithTracing(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	return func(next Invoker) Invoker {
		return &tracingInvoker{next: next, tracer: tracer}
	}
}

type tracingInvoker struct {
	next   Invoker
	tracer trace.Tracer
}

func (t *tracingInvoker) ExpectedParams(op string) ([]Param, error) {
	return t.next.ExpectedParams(op)
}

func (t *tracingInvoker) Invoke(ctx context.Context, op string, params map[string]any) (map[string]any, error) {
	ctx, span := t.tracer.Start(ctx, "invoke "+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("rpc.method", op),
		attribute.Int("dynres.params", len(params)),
	)

	result, err := t.next.Invoke(ctx, op, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorCode(err))
		return result, err
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}
