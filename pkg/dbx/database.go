package dbx

import (
	"context"

	"github.com/zakodium/adonis-mongodb/pkg/logx"
)

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	logger   logx.Logger
	connOpts []ConnectionOption
}

// WithDatabaseLogger sets the logger of the database and of its connections.
func WithDatabaseLogger(logger logx.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// WithConnectionOptions applies opts to every configured connection.
func WithConnectionOptions(opts ...ConnectionOption) DatabaseOption {
	return func(o *databaseOptions) {
		o.connOpts = append(o.connOpts, opts...)
	}
}

// Database is the entry point of the MongoDB layer: it owns the ConnectionManager and knows
// which connection is the primary one.
type Database struct {
	primaryConnectionName string
	manager               *ConnectionManager
}

// NewDatabase validates the configuration and registers every configured connection.
// No connection is opened.
//
// Arguments:
//   - config: the mongodb configuration section.
//   - opts: logger and connection options.
//
// Returns:
//   - *Database: the database façade.
//   - error: E_INVALID_CONFIG when the primary connection name is empty, when no connection
//     is configured, when the primary name is not a configured connection or when a connection
//     configuration is invalid.
//
// Example Usage:
//
//	db, err := dbx.NewDatabase(cfg.GetMongodbConfig())
//	posts, err := db.Connection().Collection(ctx, "posts")
func NewDatabase(config MongodbConfig, opts ...DatabaseOption) (*Database, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := &databaseOptions{}
	for _, opt := range opts {
		opt(o)
	}

	config = config.Normalized()

	manager := NewConnectionManager(o.logger, o.connOpts...)
	for name, connConfig := range config.Connections {
		if err := manager.Add(name, connConfig); err != nil {
			return nil, err
		}
	}

	return &Database{
		primaryConnectionName: config.Connection,
		manager:               manager,
	}, nil
}

// PrimaryConnectionName returns the name of the primary connection.
func (db *Database) PrimaryConnectionName() string {
	return db.primaryConnectionName
}

// Manager returns the connection manager.
func (db *Database) Manager() *ConnectionManager {
	return db.manager
}

// HasConnection reports whether a connection with that name is configured.
func (db *Database) HasConnection(name string) bool {
	return db.manager.Has(name)
}

// Connection returns the named connection, or the primary one when name is omitted. Names
// are case-insensitive. It fails with E_NO_MONGODB_CONNECTION for an unknown name.
func (db *Database) Connection(name ...string) (*Connection, error) {
	connectionName := db.primaryConnectionName
	if len(name) > 0 && name[0] != "" {
		connectionName = name[0]
	}

	node, err := db.manager.Get(connectionName)
	if err != nil {
		return nil, err
	}

	return node.Connection, nil
}

// MustConnection is like Connection but panics on an unknown name.
func (db *Database) MustConnection(name ...string) *Connection {
	conn, err := db.Connection(name...)
	if err != nil {
		panic(err)
	}

	return conn
}

// Transaction runs handler in a transaction on the primary connection.
func (db *Database) Transaction(ctx context.Context, handler TransactionHandler[any], opts ...TransactionOption) (any, error) {
	conn, err := db.Connection()
	if err != nil {
		return nil, err
	}

	return conn.Transaction(ctx, handler, opts...)
}

// CloseConnections closes every connection.
func (db *Database) CloseConnections(ctx context.Context) error {
	return db.manager.CloseAll(ctx)
}
