package dbx_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakodium/adonis-mongodb/pkg/dbx"
	"go.mongodb.org/mongo-driver/event"
	"go.opentelemetry.io/otel/trace/noop"
)

// TestCommandMonitorRecordsMetrics verifies successes and failures are counted per command.
func TestCommandMonitorRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := dbx.NewCommandMetrics(registry)
	require.NoError(t, err)

	monitor := dbx.NewCommandMonitor("main",
		dbx.WithMetrics(metrics),
		dbx.WithTracer(noop.NewTracerProvider().Tracer("test")),
	)

	ctx := context.Background()

	monitor.Started(ctx, &event.CommandStartedEvent{CommandName: "find", DatabaseName: "blog", RequestID: 1})
	monitor.Succeeded(ctx, &event.CommandSucceededEvent{
		CommandFinishedEvent: event.CommandFinishedEvent{CommandName: "find", RequestID: 1, Duration: 3 * time.Millisecond},
	})

	monitor.Started(ctx, &event.CommandStartedEvent{CommandName: "insert", DatabaseName: "blog", RequestID: 2})
	monitor.Failed(ctx, &event.CommandFailedEvent{
		CommandFinishedEvent: event.CommandFinishedEvent{CommandName: "insert", RequestID: 2, Duration: time.Millisecond},
		Failure:              "E11000 duplicate key error",
	})

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 3)

	errorSeries, err := testutil.GatherAndCount(registry, "mongodb_command_errors_total")
	require.NoError(t, err)
	assert.Equal(t, 1, errorSeries)

	commandSeries, err := testutil.GatherAndCount(registry, "mongodb_commands_total")
	require.NoError(t, err)
	assert.Equal(t, 2, commandSeries)
}

// TestCommandMetricsReuseRegisteredCollectors verifies several connections share the collectors.
func TestCommandMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	_, err := dbx.NewCommandMetrics(registry)
	require.NoError(t, err)

	_, err = dbx.NewCommandMetrics(registry)
	assert.NoError(t, err)
}

// TestConnectionWithMonitor verifies a monitor can be attached to a connection.
func TestConnectionWithMonitor(t *testing.T) {
	monitor := dbx.NewCommandMonitor("main")
	conn, err := dbx.NewConnection("main", testConfig(), dbx.WithCommandMonitor(monitor), dbx.WithDialer(newFakeDialer().dial))
	require.NoError(t, err)

	_, err = conn.Database(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Disconnect(context.Background()))
}
