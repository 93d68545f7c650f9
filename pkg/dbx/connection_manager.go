package dbx

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
)

// ConnectionState is the state of a registered connection as seen by the ConnectionManager.
type ConnectionState string

const (
	StateRegistered ConnectionState = "registered"
	StateOpen       ConnectionState = "open"
	StateClosing    ConnectionState = "closing"
	StateClosed     ConnectionState = "closed"
)

// ConnectionNode is the registry entry of a named connection.
//
// Fields:
//   - Name: the connection name.
//   - Config: the configuration the connection was registered with.
//   - Connection: the lazily connected Connection.
//   - State: the last state derived from the connection lifecycle events.
type ConnectionNode struct {
	Name       string
	Config     ConnectionConfig
	Connection *Connection
	State      ConnectionState
}

// ConnectionManager keeps the named connections of the application and tracks their state.
//
// Node states only change in reaction to Connection lifecycle events:
//
//	connect          -> open
//	error            -> closed
//	disconnect:start -> closing
//	disconnect       -> closed
//	disconnect:error -> closing
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*ConnectionNode
	connOpts    []ConnectionOption
	logger      logx.Logger
}

// NewConnectionManager is a constructor that ensures the inner map is always initialized.
//
// Arguments:
//   - logger: the logger used for the manager and its connections. nil selects the global logger.
//   - opts: options applied to every connection added later (dialer, monitor, extra hooks).
//
// Returns:
//   - *ConnectionManager: an empty manager.
func NewConnectionManager(logger logx.Logger, opts ...ConnectionOption) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*ConnectionNode),
		connOpts:    opts,
		logger:      logger,
	}
}

// Add registers a new connection in the Registered state. No network I/O is performed.
// Names are case-insensitive everywhere in the manager: they are stored as ConnectionKey(name).
//
// Arguments:
//   - name: the connection name. It must be a non-empty string.
//   - config: the connection configuration.
//
// Returns:
//   - error: E_INVALID_CONNECTION_NAME for an empty name, E_DUPLICATE_CONNECTION if the name is
//     already registered, E_INVALID_CONFIG for an invalid configuration.
//
// Example Usage:
//
//	manager := dbx.NewConnectionManager(nil)
//	err := manager.Add("main", dbx.ConnectionConfig{URL: "mongodb://localhost:27017", Database: "blog"})
func (m *ConnectionManager) Add(name string, config ConnectionConfig) error {
	name = ConnectionKey(name)
	if name == "" {
		return errorx.New(errorx.CodeInvalidName, "")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.connections[name]; ok {
		return errorx.New(errorx.CodeDuplicateConnection, "a connection named %q already exists", name)
	}

	node := &ConnectionNode{
		Name:   name,
		Config: config.clone(),
		State:  StateRegistered,
	}

	opts := make([]ConnectionOption, 0, len(m.connOpts)+2)
	if m.logger != nil {
		opts = append(opts, WithLogger(m.logger))
	}

	opts = append(opts, m.connOpts...)
	opts = append(opts, WithEventHook(m.stateHook(node)))

	conn, err := NewConnection(name, config, opts...)
	if err != nil {
		return err
	}

	node.Connection = conn
	m.connections[name] = node

	return nil
}

func (m *ConnectionManager) stateHook(node *ConnectionNode) EventHook {
	return func(evt Event) {
		var state ConnectionState

		switch evt.Kind {
		case EventConnect:
			state = StateOpen
		case EventError, EventDisconnect:
			state = StateClosed
		case EventDisconnectStart, EventDisconnectError:
			state = StateClosing
		default:
			return
		}

		m.mu.Lock()
		node.State = state
		m.mu.Unlock()

		m.log().LogDebug(context.Background(), fmt.Sprintf("mongodb connection %q: %s -> %s", node.Name, evt.Kind, state))
	}
}

// Get returns a snapshot of the named node.
//
// Returns:
//   - ConnectionNode: a copy of the node. Its Connection pointer is shared.
//   - error: E_NO_MONGODB_CONNECTION if the name is not registered.
func (m *ConnectionManager) Get(name string) (ConnectionNode, error) {
	name = ConnectionKey(name)

	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.connections[name]
	if !ok {
		return ConnectionNode{}, errorx.New(errorx.CodeUnknownConnection, "no MongoDB connection registered with name %q", name)
	}

	return *node, nil
}

// Has reports whether a connection with that name is registered.
func (m *ConnectionManager) Has(name string) bool {
	name = ConnectionKey(name)

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.connections[name]

	return ok
}

// IsConnected reports whether the named connection is in the Open state.
func (m *ConnectionManager) IsConnected(name string) bool {
	name = ConnectionKey(name)

	m.mu.RLock()
	defer m.mu.RUnlock()

	node, ok := m.connections[name]

	return ok && node.State == StateOpen
}

// Connect starts connecting the named connection.
func (m *ConnectionManager) Connect(name string) error {
	node, err := m.Get(name)
	if err != nil {
		return err
	}

	node.Connection.Connect()

	return nil
}

// Close disconnects the named connection and waits for the disconnection to finish.
// Closing an unknown name is a no-op.
func (m *ConnectionManager) Close(ctx context.Context, name string) error {
	m.mu.RLock()
	node, ok := m.connections[ConnectionKey(name)]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	return node.Connection.Disconnect(ctx)
}

// CloseAll closes every registered connection concurrently. A failing connection does not
// prevent the others from closing; all failures are joined in the returned error.
func (m *ConnectionManager) CloseAll(ctx context.Context) error {
	names := m.Names()

	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = m.Close(ctx, name)
		}()
	}

	wg.Wait()

	return errors.Join(errs...)
}

// Names returns the registered connection names, sorted.
func (m *ConnectionManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.connections))
	for name := range m.connections {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// States returns the current state of every registered connection.
func (m *ConnectionManager) States() map[string]ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]ConnectionState, len(m.connections))
	for name, node := range m.connections {
		states[name] = node.State
	}

	return states
}

func (m *ConnectionManager) log() logx.Logger {
	if m.logger != nil {
		return m.logger
	}

	return logx.GetLogger()
}
