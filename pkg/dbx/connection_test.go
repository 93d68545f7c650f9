package dbx_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakodium/adonis-mongodb/pkg/dbx"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
)

func newTestConnection(t *testing.T, dialer *fakeDialer, rec *eventRecorder) *dbx.Connection {
	t.Helper()

	conn, err := dbx.NewConnection("main", testConfig(), dbx.WithDialer(dialer.dial), dbx.WithEventHook(rec.hook))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Disconnect(context.Background())
	})

	return conn
}

// TestNewConnectionRejectsInvalidConfig verifies configuration errors are raised before any I/O.
func TestNewConnectionRejectsInvalidConfig(t *testing.T) {
	_, err := dbx.NewConnection("main", dbx.ConnectionConfig{URL: "mongodb://localhost"})
	assert.ErrorIs(t, err, errorx.ErrInvalidConfig)

	_, err = dbx.NewConnection("main", dbx.ConnectionConfig{URL: "http://localhost", Database: "db"})
	assert.ErrorIs(t, err, errorx.ErrInvalidConfig)

	cfg := testConfig()
	cfg.ClientOptions["unknownOption"] = 1
	_, err = dbx.NewConnection("main", cfg)
	assert.ErrorIs(t, err, errorx.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "unknownOption")

	cfg = testConfig()
	cfg.ClientOptions["maxPoolSize"] = "many"
	_, err = dbx.NewConnection("main", cfg)
	assert.ErrorIs(t, err, errorx.ErrInvalidConfig)
}

// TestConfigIsCopied verifies later changes to the caller's config do not leak into the connection.
func TestConfigIsCopied(t *testing.T) {
	cfg := testConfig()
	conn, err := dbx.NewConnection("main", cfg)
	require.NoError(t, err)

	cfg.ClientOptions["appName"] = "changed"
	assert.Equal(t, "blog", conn.Config().ClientOptions["appName"])
	assert.Equal(t, "main", conn.Name())
}

// TestConnectIsIdempotent verifies connect is emitted synchronously and the dialer runs once.
func TestConnectIsIdempotent(t *testing.T) {
	dialer := newFakeDialer()
	rec := newEventRecorder()
	conn := newTestConnection(t, dialer, rec)

	assert.Equal(t, dbx.StatusDisconnected, conn.Status())

	conn.Connect()
	assert.Equal(t, []dbx.EventKind{dbx.EventConnect}, rec.kinds())
	assert.Equal(t, dbx.StatusConnected, conn.Status())

	conn.Connect()
	conn.Connect()

	db, err := conn.Database(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "blog", db.Name())
	assert.EqualValues(t, 1, dialer.calls.Load())
	assert.Equal(t, []dbx.EventKind{dbx.EventConnect}, rec.kinds())
}

// TestConcurrentCallersShareTheDial verifies concurrent first uses wait on a single attempt.
func TestConcurrentCallersShareTheDial(t *testing.T) {
	dialer := newBlockingDialer()
	rec := newEventRecorder()
	conn := newTestConnection(t, dialer, rec)

	const callers = 10

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = conn.Collection(context.Background(), "posts")
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(dialer.release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	assert.EqualValues(t, 1, dialer.calls.Load())
}

// TestDialFailureResetsTheConnection verifies a failed attempt is reported and can be retried.
func TestDialFailureResetsTheConnection(t *testing.T) {
	dialer := newFakeDialer()
	dialer.fail.Store(true)
	rec := newEventRecorder()
	conn := newTestConnection(t, dialer, rec)

	_, err := conn.Database(context.Background())
	require.ErrorIs(t, err, errorx.ErrConnectionUnavailable)

	select {
	case evt := <-rec.notify:
		assert.Equal(t, dbx.EventConnect, evt.Kind)
	case <-time.After(time.Second):
		t.Fatal("connect event not received")
	}

	select {
	case evt := <-rec.notify:
		assert.Equal(t, dbx.EventError, evt.Kind)
		assert.Same(t, conn, evt.Connection)
		assert.ErrorIs(t, evt.Err, errorx.ErrConnectionUnavailable)
	case <-time.After(time.Second):
		t.Fatal("error event not received")
	}

	assert.Equal(t, dbx.StatusDisconnected, conn.Status())

	dialer.fail.Store(false)
	_, err = conn.Database(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, dialer.calls.Load())
}

// TestDisconnect verifies the disconnect events and that a new client is dialed afterwards.
func TestDisconnect(t *testing.T) {
	dialer := newFakeDialer()
	rec := newEventRecorder()
	conn := newTestConnection(t, dialer, rec)

	require.NoError(t, conn.Disconnect(context.Background()))
	assert.Empty(t, rec.kinds(), "disconnecting a disconnected connection emits nothing")

	_, err := conn.Database(context.Background())
	require.NoError(t, err)

	require.NoError(t, conn.Disconnect(context.Background()))
	assert.Equal(t, []dbx.EventKind{dbx.EventConnect, dbx.EventDisconnectStart, dbx.EventDisconnect}, rec.kinds())
	assert.Equal(t, dbx.StatusDisconnected, conn.Status())

	_, err = conn.Database(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, dialer.calls.Load())
}

// TestDisconnectWhileConnecting verifies a pending attempt is awaited before closing.
func TestDisconnectWhileConnecting(t *testing.T) {
	dialer := newBlockingDialer()
	rec := newEventRecorder()
	conn := newTestConnection(t, dialer, rec)

	conn.Connect()

	done := make(chan error, 1)
	go func() {
		done <- conn.Disconnect(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	close(dialer.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("disconnect did not complete")
	}

	assert.Equal(t, []dbx.EventKind{dbx.EventConnect, dbx.EventDisconnectStart, dbx.EventDisconnect}, rec.kinds())
}

// TestDatabaseHonoursContext verifies waiting callers give up on ctx without cancelling the attempt.
func TestDatabaseHonoursContext(t *testing.T) {
	dialer := newBlockingDialer()
	rec := newEventRecorder()
	conn := newTestConnection(t, dialer, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := conn.Database(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, dbx.StatusConnected, conn.Status())

	close(dialer.release)

	_, err = conn.Database(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, dialer.calls.Load())
}
