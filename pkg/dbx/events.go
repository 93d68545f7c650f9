package dbx

// EventKind identifies a Connection lifecycle transition.
type EventKind string

const (
	// EventConnect is emitted synchronously by Connect when a connection attempt starts.
	EventConnect EventKind = "connect"
	// EventError is emitted when a connection attempt fails.
	EventError EventKind = "error"
	// EventDisconnectStart is emitted when Disconnect starts closing an active connection.
	EventDisconnectStart EventKind = "disconnect:start"
	// EventDisconnect is emitted once the client is closed.
	EventDisconnect EventKind = "disconnect"
	// EventDisconnectError is emitted when closing the client failed.
	EventDisconnectError EventKind = "disconnect:error"
)

// Event describes a lifecycle transition of a Connection. Err is only set for
// EventError and EventDisconnectError.
type Event struct {
	Kind       EventKind
	Connection *Connection
	Err        error
}

// EventHook observes Connection lifecycle events. Hooks run synchronously in the
// goroutine performing the transition and must not block.
type EventHook func(evt Event)
