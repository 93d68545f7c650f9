package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/zakodium/adonis-mongodb/pkg/dbx"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// State is the state of a migration on a connection.
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
)

// StatusEntry describes one migration. Batch and Date are only set for completed migrations.
type StatusEntry struct {
	Name        string
	Description string
	State       State
	Batch       int
	Date        time.Time
}

// RunResult is the outcome of Run.
//
// Fields:
//   - Batch: the batch number of the run.
//   - Executed: the migrations applied by the run, in order.
type RunResult struct {
	Batch    int
	Executed []string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the progress logger. The global logger is used by default.
func WithLogger(logger logx.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// Runner applies migrations to one connection.
type Runner struct {
	conn       *dbx.Connection
	migrations []Migration
	logger     logx.Logger
}

// NewRunner returns a Runner for migrations, which must come sorted and validated from Discover.
func NewRunner(conn *dbx.Connection, migrations []Migration, opts ...RunnerOption) *Runner {
	r := &Runner{
		conn:       conn,
		migrations: migrations,
		logger:     logx.GetLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Status returns every known migration with its state.
func (r *Runner) Status(ctx context.Context) ([]StatusEntry, error) {
	db, err := r.conn.Database(ctx)
	if err != nil {
		return nil, err
	}

	records, err := appliedRecords(ctx, db)
	if err != nil {
		return nil, err
	}

	entries := make([]StatusEntry, 0, len(r.migrations))

	for _, m := range r.migrations {
		entry := StatusEntry{Name: m.Name, Description: m.Description, State: StatePending}

		if rec, ok := records[m.Name]; ok {
			entry.State = StateCompleted
			entry.Batch = rec.Batch
			entry.Date = rec.Date
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// Run applies the pending migrations in name order.
//
// The run holds the migration lock of the database. Every migration runs in its own transaction,
// which also stores its record with the batch number max(batch)+1. The run stops at the first
// failing migration; the migrations applied before it stay recorded.
//
// Returns:
//   - RunResult: the batch and the applied migrations, also filled on failure.
//   - error: E_MIGRATION_LOCK_HELD when another run holds the lock, or the failure of a migration.
func (r *Runner) Run(ctx context.Context) (result RunResult, err error) {
	db, err := r.conn.Database(ctx)
	if err != nil {
		return result, err
	}

	if err = acquireLock(ctx, db); err != nil {
		return result, err
	}

	defer func() {
		if releaseErr := releaseLock(context.WithoutCancel(ctx), db); releaseErr != nil {
			r.logger.LogError(ctx, "error releasing the migration lock", releaseErr)

			if err == nil {
				err = releaseErr
			}
		}
	}()

	records, err := appliedRecords(ctx, db)
	if err != nil {
		return result, err
	}

	result.Batch, err = nextBatch(ctx, db)
	if err != nil {
		return result, err
	}

	for _, m := range r.migrations {
		if _, ok := records[m.Name]; ok {
			continue
		}

		if err = r.apply(ctx, m, result.Batch); err != nil {
			return result, errors.Wrapf(err, "migration %s failed", m.Name)
		}

		result.Executed = append(result.Executed, m.Name)
	}

	if len(result.Executed) > 0 {
		r.logger.LogInfo(ctx, fmt.Sprintf("Executed %d migrations", len(result.Executed)))
	} else {
		r.logger.LogInfo(ctx, "No pending migration")
	}

	return result, nil
}

func (r *Runner) apply(ctx context.Context, m Migration, batch int) error {
	msg := "Executing migration: " + m.Name
	if m.Description != "" {
		msg += " - " + m.Description
	}

	r.logger.LogInfo(ctx, msg)

	_, err := dbx.RunTransaction(ctx, r.conn, func(sc mongo.SessionContext, db *mongo.Database, _ *dbx.TxEvents) (struct{}, error) {
		b := NewBuilder()
		m.Up(b)

		if err := b.ExecUp(ctx, sc, db, r.logger); err != nil {
			return struct{}{}, err
		}

		record := Record{Name: m.Name, Date: time.Now().UTC(), Batch: batch}
		if _, err := db.Collection(RecordsCollection).InsertOne(sc, record); err != nil {
			return struct{}{}, errorx.NewDatabaseErrorWrapper(err, "error recording migration %s", m.Name)
		}

		return struct{}{}, nil
	})

	return err
}

// acquireLock flips the lock document to running. The upsert creates it on the first run; when
// another run holds it, the filter does not match and the upsert hits the unique _id.
func acquireLock(ctx context.Context, db *mongo.Database) error {
	res, err := db.Collection(LockCollection).UpdateOne(ctx,
		bson.M{"_id": lockID, "running": false},
		bson.M{"$set": bson.M{"running": true}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errorx.New(errorx.CodeMigrationLockHeld, "")
		}

		return errorx.NewDatabaseErrorWrapper(err, "error acquiring the migration lock")
	}

	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return errorx.New(errorx.CodeMigrationLockHeld, "")
	}

	return nil
}

func releaseLock(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(LockCollection).UpdateOne(ctx,
		bson.M{"_id": lockID, "running": true},
		bson.M{"$set": bson.M{"running": false}},
	)
	if err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error releasing the migration lock")
	}

	return nil
}

func appliedRecords(ctx context.Context, db *mongo.Database) (map[string]Record, error) {
	cursor, err := db.Collection(RecordsCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error reading migration records")
	}

	var list []Record
	if err = cursor.All(ctx, &list); err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error reading migration records")
	}

	records := make(map[string]Record, len(list))
	for _, rec := range list {
		records[rec.Name] = rec
	}

	return records, nil
}

func nextBatch(ctx context.Context, db *mongo.Database) (int, error) {
	var last Record

	err := db.Collection(RecordsCollection).
		FindOne(ctx, bson.M{}, options.FindOne().SetSort(bson.D{{Key: "batch", Value: -1}})).
		Decode(&last)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 1, nil
		}

		return 0, errorx.NewDatabaseErrorWrapper(err, "error reading the last migration batch")
	}

	return last.Batch + 1, nil
}
