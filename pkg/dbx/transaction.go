package dbx

import (
	"context"
	"fmt"
	"sync"

	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
	"github.com/zakodium/adonis-mongodb/pkg/utilx"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TransactionOutcome is the final state of a transaction.
type TransactionOutcome int

const (
	TxCommitted TransactionOutcome = iota + 1
	TxAborted
)

func (o TransactionOutcome) String() string {
	switch o {
	case TxCommitted:
		return "committed"
	case TxAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// CommitListener is notified after a transaction committed.
type CommitListener func(sess mongo.Session, db *mongo.Database)

// AbortListener is notified after a transaction aborted. err is the handler error, the commit
// error, or nil when the handler aborted the transaction itself.
type AbortListener func(sess mongo.Session, db *mongo.Database, err error)

// TxEvents collects the listeners of one transaction call. A fresh TxEvents is created for every
// call and handed to the handler, so listeners of concurrent transactions never mix.
type TxEvents struct {
	mu       sync.Mutex
	onCommit []CommitListener
	onAbort  []AbortListener
}

// OnCommit registers a listener fired once if the transaction commits.
func (e *TxEvents) OnCommit(fn CommitListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCommit = append(e.onCommit, fn)
}

// OnAbort registers a listener fired once if the transaction aborts.
func (e *TxEvents) OnAbort(fn AbortListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onAbort = append(e.onAbort, fn)
}

func (e *TxEvents) listeners() ([]CommitListener, []AbortListener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]CommitListener(nil), e.onCommit...), append([]AbortListener(nil), e.onAbort...)
}

// TransactionHandler is the body of a transaction. sc must be passed to every driver call
// that belongs to the transaction.
type TransactionHandler[T any] func(sc mongo.SessionContext, db *mongo.Database, tx *TxEvents) (T, error)

// TransactionOption configures one transaction call.
type TransactionOption func(*transactionConfig)

type transactionConfig struct {
	txOpts      *options.TransactionOptions
	sessionOpts *options.SessionOptions
	onCommit    []CommitListener
	onAbort     []AbortListener
}

// WithTransactionOptions sets the driver transaction options (read/write concern, read preference, ...).
func WithTransactionOptions(opts *options.TransactionOptions) TransactionOption {
	return func(cfg *transactionConfig) {
		cfg.txOpts = opts
	}
}

// WithSessionOptions sets the driver session options.
func WithSessionOptions(opts *options.SessionOptions) TransactionOption {
	return func(cfg *transactionConfig) {
		cfg.sessionOpts = opts
	}
}

// OnCommit registers a commit listener before the transaction starts.
func OnCommit(fn CommitListener) TransactionOption {
	return func(cfg *transactionConfig) {
		cfg.onCommit = append(cfg.onCommit, fn)
	}
}

// OnAbort registers an abort listener before the transaction starts.
func OnAbort(fn AbortListener) TransactionOption {
	return func(cfg *transactionConfig) {
		cfg.onAbort = append(cfg.onAbort, fn)
	}
}

// Transaction runs handler inside a transaction on the connection and returns its result.
// See RunTransactionWithOutcome.
func (c *Connection) Transaction(ctx context.Context, handler TransactionHandler[any], opts ...TransactionOption) (any, error) {
	return RunTransaction(ctx, c, handler, opts...)
}

// RunTransaction is the typed form of Connection.Transaction.
func RunTransaction[T any](ctx context.Context, conn *Connection, handler TransactionHandler[T], opts ...TransactionOption) (T, error) {
	result, _, err := RunTransactionWithOutcome(ctx, conn, handler, opts...)
	return result, err
}

// RunTransactionWithOutcome runs handler inside a transaction and notifies the listeners of the outcome.
//
// The driver retries the handler on transient transaction errors; listeners registered on the
// TxEvents during a failed attempt are discarded before the next attempt.
//
// Exactly one notification is fired per call:
//   - commit, when the transaction committed.
//   - abort with a nil error, when the handler returned normally after aborting the transaction itself.
//   - abort with the error, when the handler or the commit failed.
//
// Listener panics are recovered and logged, they never change the result.
//
// Arguments:
//   - ctx: the parent context.
//   - conn: the connection to run the transaction on. It is connected first if needed.
//   - handler: the transaction body.
//   - opts: driver options and listeners registered upfront.
//
// Returns:
//   - T: the handler result.
//   - TransactionOutcome: TxCommitted or TxAborted (zero when no session could be started).
//   - error: the handler error unchanged, or a wrapped driver error.
//
// Example Usage:
//
//	post, err := dbx.RunTransaction(ctx, conn, func(sc mongo.SessionContext, db *mongo.Database, tx *dbx.TxEvents) (bson.M, error) {
//	    tx.OnCommit(func(mongo.Session, *mongo.Database) { cache.Invalidate("posts") })
//	    _, err := db.Collection("posts").InsertOne(sc, bson.M{"title": "hello"})
//	    return bson.M{"title": "hello"}, err
//	})
func RunTransactionWithOutcome[T any](ctx context.Context, conn *Connection, handler TransactionHandler[T], opts ...TransactionOption) (T, TransactionOutcome, error) {
	var zero T

	cfg := &transactionConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := conn.Database(ctx)
	if err != nil {
		return zero, 0, err
	}

	var sessionOpts []*options.SessionOptions
	if cfg.sessionOpts != nil {
		sessionOpts = append(sessionOpts, cfg.sessionOpts)
	}

	var txOpts []*options.TransactionOptions
	if cfg.txOpts != nil {
		txOpts = append(txOpts, cfg.txOpts)
	}

	sess, err := db.Client().StartSession(sessionOpts...)
	if err != nil {
		return zero, 0, errorx.NewDatabaseErrorWrapper(err, "error starting session on connection %q", conn.name)
	}
	defer sess.EndSession(context.Background())

	txID := utilx.GenerateUUID().String()
	log := conn.log()
	log.LogDebug(ctx, fmt.Sprintf("TxBegin txId: %s on connection %q", txID, conn.name))

	var (
		events     *TxEvents
		result     T
		handlerErr error
	)

	_, txErr := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		events = &TxEvents{}
		result, handlerErr = handler(sc, db, events)

		return nil, handlerErr
	}, txOpts...)

	var handlerCommit []CommitListener
	var handlerAbort []AbortListener
	if events != nil {
		handlerCommit, handlerAbort = events.listeners()
	}

	commitListeners := append(cfg.onCommit, handlerCommit...)
	abortListeners := append(cfg.onAbort, handlerAbort...)

	if txErr != nil {
		err = handlerErr
		if err == nil {
			err = errorx.NewDatabaseErrorWrapper(txErr, "error committing transaction %s", txID)
		}

		log.LogDebug(ctx, fmt.Sprintf("TxRollback txId: %s", txID))
		notifyAbort(ctx, log, abortListeners, sess, db, err)

		return zero, TxAborted, err
	}

	if !committed(sess) {
		log.LogDebug(ctx, fmt.Sprintf("TxRollback txId: %s (aborted by handler)", txID))
		notifyAbort(ctx, log, abortListeners, sess, db, nil)

		return result, TxAborted, nil
	}

	log.LogDebug(ctx, fmt.Sprintf("TxCommit txId: %s", txID))
	notifyCommit(ctx, log, commitListeners, sess, db)

	return result, TxCommitted, nil
}

// committed reads the final transaction state from the driver session.
func committed(sess mongo.Session) bool {
	if xs, ok := sess.(mongo.XSession); ok && xs.ClientSession() != nil {
		return xs.ClientSession().TransactionCommitted()
	}

	return true
}

func notifyCommit(ctx context.Context, log logx.Logger, listeners []CommitListener, sess mongo.Session, db *mongo.Database) {
	for _, fn := range listeners {
		func() {
			defer recoverListener(ctx, log, "commit")
			fn(sess, db)
		}()
	}
}

func notifyAbort(ctx context.Context, log logx.Logger, listeners []AbortListener, sess mongo.Session, db *mongo.Database, err error) {
	for _, fn := range listeners {
		func() {
			defer recoverListener(ctx, log, "abort")
			fn(sess, db, err)
		}()
	}
}

func recoverListener(ctx context.Context, log logx.Logger, kind string) {
	if r := recover(); r != nil {
		log.LogError(ctx, fmt.Sprintf("transaction %s listener panicked: %v", kind, r))
	}
}
