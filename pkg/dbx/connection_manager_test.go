package dbx_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakodium/adonis-mongodb/pkg/dbx"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func waitForState(t *testing.T, manager *dbx.ConnectionManager, name string, want dbx.ConnectionState) {
	t.Helper()

	assert.Eventually(t, func() bool {
		node, err := manager.Get(name)
		return err == nil && node.State == want
	}, time.Second, 5*time.Millisecond, "connection %q never reached state %s", name, want)
}

// TestManagerNamesIgnoreCase verifies every lookup uses the normalized connection name.
func TestManagerNamesIgnoreCase(t *testing.T) {
	manager := dbx.NewConnectionManager(nil, dbx.WithDialer(newFakeDialer().dial))

	require.NoError(t, manager.Add("Analytics", testConfig()))
	assert.ErrorIs(t, manager.Add("ANALYTICS", testConfig()), errorx.ErrDuplicateConnection)
	assert.Equal(t, []string{"analytics"}, manager.Names())

	node, err := manager.Get("aNaLyTiCs")
	require.NoError(t, err)
	assert.Equal(t, "analytics", node.Name)
	assert.True(t, manager.Has("Analytics"))

	require.NoError(t, manager.Connect("ANALYTICS"))
	assert.True(t, manager.IsConnected("Analytics"))

	require.NoError(t, manager.Close(context.Background(), "Analytics"))
	waitForState(t, manager, "analytics", dbx.StateClosed)
}

// TestManagerRegistration verifies name validation, duplicates and lookups.
func TestManagerRegistration(t *testing.T) {
	manager := dbx.NewConnectionManager(nil, dbx.WithDialer(newFakeDialer().dial))

	assert.ErrorIs(t, manager.Add("", testConfig()), errorx.ErrInvalidName)
	assert.ErrorIs(t, manager.Add("  ", testConfig()), errorx.ErrInvalidName)

	require.NoError(t, manager.Add("main", testConfig()))
	assert.ErrorIs(t, manager.Add("main", testConfig()), errorx.ErrDuplicateConnection)

	node, err := manager.Get("main")
	require.NoError(t, err)
	assert.Equal(t, "main", node.Name)
	assert.Equal(t, dbx.StateRegistered, node.State)
	assert.Equal(t, "blog", node.Config.Database)
	require.NotNil(t, node.Connection)

	_, err = manager.Get("missing")
	assert.ErrorIs(t, err, errorx.ErrUnknownConnection)
	assert.ErrorIs(t, manager.Connect("missing"), errorx.ErrUnknownConnection)

	assert.True(t, manager.Has("main"))
	assert.False(t, manager.Has("missing"))
	assert.False(t, manager.IsConnected("main"))
	assert.NoError(t, manager.Close(context.Background(), "missing"))
}

// TestManagerTracksLifecycle verifies node states follow the connection events.
func TestManagerTracksLifecycle(t *testing.T) {
	manager := dbx.NewConnectionManager(nil, dbx.WithDialer(newFakeDialer().dial))
	require.NoError(t, manager.Add("main", testConfig()))

	require.NoError(t, manager.Connect("main"))
	assert.True(t, manager.IsConnected("main"))
	assert.Equal(t, map[string]dbx.ConnectionState{"main": dbx.StateOpen}, manager.States())

	require.NoError(t, manager.Close(context.Background(), "main"))
	waitForState(t, manager, "main", dbx.StateClosed)
	assert.False(t, manager.IsConnected("main"))

	require.NoError(t, manager.Connect("main"))
	waitForState(t, manager, "main", dbx.StateOpen)
}

// TestManagerMarksFailedConnectionsClosed verifies a dial error moves the node to closed.
func TestManagerMarksFailedConnectionsClosed(t *testing.T) {
	dialer := newFakeDialer()
	dialer.fail.Store(true)

	manager := dbx.NewConnectionManager(nil, dbx.WithDialer(dialer.dial))
	require.NoError(t, manager.Add("main", testConfig()))

	require.NoError(t, manager.Connect("main"))
	waitForState(t, manager, "main", dbx.StateClosed)
}

// TestCloseAll verifies every connection is closed.
func TestCloseAll(t *testing.T) {
	manager := dbx.NewConnectionManager(nil, dbx.WithDialer(newFakeDialer().dial))
	for _, name := range []string{"main", "analytics", "archive"} {
		require.NoError(t, manager.Add(name, testConfig()))
		require.NoError(t, manager.Connect(name))
	}

	assert.Equal(t, []string{"analytics", "archive", "main"}, manager.Names())

	require.NoError(t, manager.CloseAll(context.Background()))
	for _, name := range manager.Names() {
		waitForState(t, manager, name, dbx.StateClosed)
	}
}

// scriptedDialer fails its first dial once released and dials offline clients afterwards.
type scriptedDialer struct {
	calls   atomic.Int32
	release chan struct{}
}

func (d *scriptedDialer) dial(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	if d.calls.Add(1) == 1 {
		<-d.release
		return nil, errors.New("server selection error: connection refused")
	}

	return mongo.Connect(ctx, opts)
}

// TestAbandonedAttemptDoesNotCloseItsSuccessor verifies a stale dial failure leaves a reopened connection open.
func TestAbandonedAttemptDoesNotCloseItsSuccessor(t *testing.T) {
	dialer := &scriptedDialer{release: make(chan struct{})}
	manager := dbx.NewConnectionManager(nil, dbx.WithDialer(dialer.dial))
	require.NoError(t, manager.Add("main", testConfig()))

	node, err := manager.Get("main")
	require.NoError(t, err)
	conn := node.Connection

	t.Cleanup(func() { _ = conn.Disconnect(context.Background()) })

	conn.Connect()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, conn.Disconnect(cancelled), context.Canceled)
	waitForState(t, manager, "main", dbx.StateClosing)

	_, err = conn.Database(context.Background())
	require.NoError(t, err)
	waitForState(t, manager, "main", dbx.StateOpen)

	close(dialer.release)

	assert.Never(t, func() bool {
		return !manager.IsConnected("main")
	}, 100*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, dbx.StatusConnected, conn.Status())
	assert.EqualValues(t, 2, dialer.calls.Load())
}

// TestLateCloseSettlesTheState verifies a disconnect that gave up waiting still ends in closed.
func TestLateCloseSettlesTheState(t *testing.T) {
	dialer := newBlockingDialer()
	manager := dbx.NewConnectionManager(nil, dbx.WithDialer(dialer.dial))
	require.NoError(t, manager.Add("main", testConfig()))
	require.NoError(t, manager.Connect("main"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, manager.Close(ctx, "main"), context.DeadlineExceeded)
	waitForState(t, manager, "main", dbx.StateClosing)

	close(dialer.release)
	waitForState(t, manager, "main", dbx.StateClosed)
}
