package dbx

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
	"go.mongodb.org/mongo-driver/event"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CommandMetrics holds the Prometheus collectors fed by the command monitor.
type CommandMetrics struct {
	commandDuration *prometheus.HistogramVec
	commandTotal    *prometheus.CounterVec
	commandErrors   *prometheus.CounterVec
}

// NewCommandMetrics creates the collectors and registers them. Collectors already registered
// by another connection are reused.
func NewCommandMetrics(registry prometheus.Registerer) (*CommandMetrics, error) {
	m := &CommandMetrics{
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mongodb_command_duration_seconds",
				Help:    "Duration of MongoDB commands in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"connection", "command"},
		),
		commandTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mongodb_commands_total",
				Help: "Total number of MongoDB commands",
			},
			[]string{"connection", "command"},
		),
		commandErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mongodb_command_errors_total",
				Help: "Total number of failed MongoDB commands",
			},
			[]string{"connection", "command"},
		),
	}

	if registry == nil {
		return m, nil
	}

	var err error
	if m.commandDuration, err = register(registry, m.commandDuration); err != nil {
		return nil, err
	}

	if m.commandTotal, err = register(registry, m.commandTotal); err != nil {
		return nil, err
	}

	if m.commandErrors, err = register(registry, m.commandErrors); err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](registry prometheus.Registerer, c C) (C, error) {
	err := registry.Register(c)
	if err == nil {
		return c, nil
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(C); ok {
			return existing, nil
		}
	}

	return c, err
}

// MonitorOption configures NewCommandMonitor.
type MonitorOption func(*commandMonitor)

// WithMetrics records command durations, counts and errors.
func WithMetrics(metrics *CommandMetrics) MonitorOption {
	return func(m *commandMonitor) {
		m.metrics = metrics
	}
}

// WithTracer opens a client span per command.
func WithTracer(tracer trace.Tracer) MonitorOption {
	return func(m *commandMonitor) {
		m.tracer = tracer
	}
}

// WithCommandLogging debug-logs every command.
func WithCommandLogging(logger logx.Logger) MonitorOption {
	return func(m *commandMonitor) {
		m.logger = logger
		m.logCommands = true
	}
}

type commandMonitor struct {
	connection  string
	metrics     *CommandMetrics
	tracer      trace.Tracer
	logger      logx.Logger
	logCommands bool
	spans       sync.Map // request id -> trace.Span
}

// NewCommandMonitor builds the driver command monitor of a connection.
//
// Example Usage:
//
//	metrics, _ := dbx.NewCommandMetrics(prometheus.DefaultRegisterer)
//	monitor := dbx.NewCommandMonitor("main", dbx.WithMetrics(metrics), dbx.WithTracer(otel.Tracer("mongodb")))
//	conn, err := dbx.NewConnection("main", cfg, dbx.WithCommandMonitor(monitor))
func NewCommandMonitor(connectionName string, opts ...MonitorOption) *event.CommandMonitor {
	m := &commandMonitor{connection: connectionName}
	for _, opt := range opts {
		opt(m)
	}

	return &event.CommandMonitor{
		Started:   m.started,
		Succeeded: m.succeeded,
		Failed:    m.failed,
	}
}

func (m *commandMonitor) started(ctx context.Context, evt *event.CommandStartedEvent) {
	if m.logCommands {
		m.logger.LogDebug(ctx, fmt.Sprintf("mongodb %s: %s on %s (request %d)", m.connection, evt.CommandName, evt.DatabaseName, evt.RequestID))
	}

	if m.tracer == nil {
		return
	}

	_, span := m.tracer.Start(ctx, "mongodb."+evt.CommandName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "mongodb"),
			attribute.String("db.name", evt.DatabaseName),
			attribute.String("db.operation", evt.CommandName),
			attribute.String("db.mongodb.connection", m.connection),
		),
	)

	m.spans.Store(evt.RequestID, span)
}

func (m *commandMonitor) succeeded(_ context.Context, evt *event.CommandSucceededEvent) {
	m.finish(evt.RequestID, evt.CommandName, evt.Duration.Seconds(), nil)
}

func (m *commandMonitor) failed(ctx context.Context, evt *event.CommandFailedEvent) {
	if m.logCommands {
		m.logger.LogDebug(ctx, fmt.Sprintf("mongodb %s: %s failed: %s", m.connection, evt.CommandName, evt.Failure))
	}

	m.finish(evt.RequestID, evt.CommandName, evt.Duration.Seconds(), fmt.Errorf("%s", evt.Failure))
}

func (m *commandMonitor) finish(requestID int64, command string, seconds float64, failure error) {
	if m.metrics != nil {
		m.metrics.commandDuration.WithLabelValues(m.connection, command).Observe(seconds)
		m.metrics.commandTotal.WithLabelValues(m.connection, command).Inc()

		if failure != nil {
			m.metrics.commandErrors.WithLabelValues(m.connection, command).Inc()
		}
	}

	spanVal, ok := m.spans.LoadAndDelete(requestID)
	if !ok {
		return
	}

	span, ok := spanVal.(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	if failure != nil {
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
