package dbx

import (
	"context"
	"fmt"
	"sync"

	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectionStatus is the internal status of a Connection.
type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnected
)

func (s ConnectionStatus) String() string {
	if s == StatusConnected {
		return "CONNECTED"
	}

	return "DISCONNECTED"
}

// Dialer opens a MongoDB client. The default dialer connects and pings the primary.
type Dialer func(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error)

// ConnectionOption configures a Connection.
type ConnectionOption func(*Connection)

// WithDialer replaces the default dialer.
func WithDialer(dialer Dialer) ConnectionOption {
	return func(c *Connection) {
		c.dialer = dialer
	}
}

// WithLogger sets the logger used by the connection, the global logger otherwise.
func WithLogger(logger logx.Logger) ConnectionOption {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithEventHook registers a lifecycle hook.
func WithEventHook(hook EventHook) ConnectionOption {
	return func(c *Connection) {
		c.hooks = append(c.hooks, hook)
	}
}

// WithCommandMonitor attaches a driver command monitor (see NewCommandMonitor) to the client.
func WithCommandMonitor(monitor *event.CommandMonitor) ConnectionOption {
	return func(c *Connection) {
		c.monitor = monitor
	}
}

// connectFuture is the single in-flight connection attempt shared by every waiter.
type connectFuture struct {
	done   chan struct{}
	client *mongo.Client
	db     *mongo.Database
	err    error
}

// Connection is a named, lazily connected MongoDB client bound to one database.
//
// The client is only dialed on first use (Database, Collection, Transaction) or on an explicit
// Connect. At most one dial is in flight: concurrent callers share the pending attempt.
// Invariant: a pending attempt exists if and only if the status is StatusConnected.
type Connection struct {
	name       string
	config     ConnectionConfig
	clientOpts *options.ClientOptions
	dialer     Dialer
	hooks      []EventHook
	monitor    *event.CommandMonitor
	logger     logx.Logger

	// emitMu orders status changes with the events describing them. Hooks must not call
	// back into the connection.
	emitMu  sync.Mutex
	mu      sync.Mutex
	status  ConnectionStatus
	pending *connectFuture
}

// NewConnection creates a disconnected Connection. No network I/O is performed.
//
// Arguments:
//   - name: the connection name, used in logs, events and errors.
//   - config: the connection configuration. It is copied, later changes have no effect.
//   - opts: optional dialer, logger, event hooks and command monitor.
//
// Returns:
//   - *Connection: the connection, in the StatusDisconnected status.
//   - error: an E_INVALID_CONFIG error when the url, database or client options are invalid.
func NewConnection(name string, config ConnectionConfig, opts ...ConnectionOption) (*Connection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Connection{
		name:   name,
		config: config.clone(),
		dialer: defaultDialer,
		status: StatusDisconnected,
	}

	for _, opt := range opts {
		opt(c)
	}

	clientOpts, err := c.config.clientOptions()
	if err != nil {
		return nil, err
	}

	if c.monitor != nil {
		clientOpts.SetMonitor(c.monitor)
	}

	c.clientOpts = clientOpts

	return c, nil
}

func defaultDialer(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}

// Name returns the connection name.
func (c *Connection) Name() string {
	return c.name
}

// Config returns a copy of the connection configuration.
func (c *Connection) Config() ConnectionConfig {
	return c.config.clone()
}

// Status returns the current status.
func (c *Connection) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// Connect starts connecting and returns immediately. It has no effect when the connection
// is already connected or connecting.
//
// EventConnect is emitted before Connect returns. If the attempt fails, every caller waiting on
// it receives the error. When the attempt is still the current one, the connection also goes
// back to StatusDisconnected, the failure is logged at fatal severity without terminating the
// process and EventError is emitted. An attempt replaced by Disconnect or by a newer Connect
// fails silently.
func (c *Connection) Connect() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.status == StatusConnected {
		c.mu.Unlock()
		return
	}

	fut := &connectFuture{done: make(chan struct{})}
	c.status = StatusConnected
	c.pending = fut
	c.mu.Unlock()

	c.emit(Event{Kind: EventConnect, Connection: c})

	go c.dial(fut)
}

func (c *Connection) dial(fut *connectFuture) {
	client, err := c.dialer(context.Background(), c.clientOpts)
	if err == nil {
		fut.client = client
		fut.db = client.Database(c.config.Database)
		close(fut.done)

		return
	}

	fut.err = errorx.Wrap(err, errorx.CodeConnectionUnavailable, "could not connect to database %q", c.name)

	c.emitMu.Lock()
	c.mu.Lock()
	current := c.pending == fut
	if current {
		c.pending = nil
		c.status = StatusDisconnected
	}
	c.mu.Unlock()

	// a replaced attempt must not report on the state of its successor
	if current {
		c.log().LogFatal(context.Background(), fmt.Sprintf("could not connect to database %q", c.name), err)
		c.emit(Event{Kind: EventError, Connection: c, Err: fut.err})
	}
	c.emitMu.Unlock()

	close(fut.done)

	if !current {
		c.log().LogDebug(context.Background(), fmt.Sprintf("abandoned connection attempt to %q failed: %v", c.name, err))
	}
}

// Disconnect closes the connection. It is a no-op when already disconnected.
//
// EventDisconnectStart is emitted first, then either EventDisconnect or EventDisconnectError.
// A pending connection attempt is awaited so its client gets closed. If ctx expires first,
// EventDisconnectError is emitted with ctx.Err(), which is returned, and the client is closed
// in the background once the attempt settles. That background close emits the final
// EventDisconnect or EventDisconnectError. Final events are dropped when the connection was
// reopened in the meantime.
func (c *Connection) Disconnect(ctx context.Context) error {
	c.emitMu.Lock()
	c.mu.Lock()
	if c.status == StatusDisconnected {
		c.mu.Unlock()
		c.emitMu.Unlock()

		return nil
	}

	fut := c.pending
	c.pending = nil
	c.status = StatusDisconnected
	c.mu.Unlock()

	c.emit(Event{Kind: EventDisconnectStart, Connection: c})
	c.emitMu.Unlock()

	select {
	case <-fut.done:
	case <-ctx.Done():
		c.emitUnlessReopened(Event{Kind: EventDisconnectError, Connection: c, Err: ctx.Err()})

		go c.closeLate(fut)

		return ctx.Err()
	}

	if err := c.closeClient(ctx, fut); err != nil {
		c.emitUnlessReopened(Event{Kind: EventDisconnectError, Connection: c, Err: err})
		return err
	}

	c.emitUnlessReopened(Event{Kind: EventDisconnect, Connection: c})

	return nil
}

// closeLate closes the client of an attempt whose Disconnect gave up waiting.
func (c *Connection) closeLate(fut *connectFuture) {
	<-fut.done

	if err := c.closeClient(context.Background(), fut); err != nil {
		c.emitUnlessReopened(Event{Kind: EventDisconnectError, Connection: c, Err: err})
		return
	}

	c.emitUnlessReopened(Event{Kind: EventDisconnect, Connection: c})
}

func (c *Connection) closeClient(ctx context.Context, fut *connectFuture) error {
	if fut.client != nil {
		if err := fut.client.Disconnect(ctx); err != nil {
			c.log().LogError(ctx, fmt.Sprintf("error closing connection %q", c.name), err)
			return errorx.NewDatabaseErrorWrapper(err, "error closing connection %q", c.name)
		}
	}

	c.log().LogDebug(ctx, fmt.Sprintf("connection %q closed", c.name))

	return nil
}

// emitUnlessReopened emits a closing event only while no newer attempt is pending.
func (c *Connection) emitUnlessReopened(evt Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	reopened := c.pending != nil
	c.mu.Unlock()

	if !reopened {
		c.emit(evt)
	}
}

// Database returns the database handle, connecting first if needed.
//
// It waits for the pending connection attempt or for ctx, whichever comes first. A
// cancelled ctx does not abort the attempt: later callers share it.
func (c *Connection) Database(ctx context.Context) (*mongo.Database, error) {
	fut, err := c.ensure()
	if err != nil {
		return nil, err
	}

	select {
	case <-fut.done:
		if fut.err != nil {
			return nil, fut.err
		}

		return fut.db, nil
	case <-ctx.Done():
		return nil, errorx.Wrap(ctx.Err(), errorx.CodeConnectionUnavailable, "waiting for connection %q", c.name)
	}
}

// Client returns the underlying client, connecting first if needed.
func (c *Connection) Client(ctx context.Context) (*mongo.Client, error) {
	db, err := c.Database(ctx)
	if err != nil {
		return nil, err
	}

	return db.Client(), nil
}

// Collection returns a handle on the named collection. The collection is not required to exist.
func (c *Connection) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := c.Database(ctx)
	if err != nil {
		return nil, err
	}

	return db.Collection(name), nil
}

func (c *Connection) ensure() (*connectFuture, error) {
	c.Connect()

	c.mu.Lock()
	fut := c.pending
	c.mu.Unlock()

	if fut == nil {
		return nil, errorx.New(errorx.CodeConnectionUnavailable, "unexpected MongoDB connection error on %q", c.name)
	}

	return fut, nil
}

func (c *Connection) emit(evt Event) {
	for _, hook := range c.hooks {
		hook(evt)
	}
}

// Logger returns the logger of the connection, the global logger when none was set.
func (c *Connection) Logger() logx.Logger {
	return c.log()
}

func (c *Connection) log() logx.Logger {
	if c.logger != nil {
		return c.logger
	}

	return logx.GetLogger()
}
