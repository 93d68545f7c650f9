package migration

import (
	"context"
	"fmt"

	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeferFunc is custom migration code run after the collections and indexes were changed.
// ctx carries the migration session: pass it to every driver call that belongs to the migration.
type DeferFunc func(ctx context.Context, db *mongo.Database) error

type createIndexOp struct {
	collection string
	keys       bson.D
	opts       *options.IndexOptions
}

type dropIndexOp struct {
	collection string
	name       string
	opts       []*options.DropIndexesOptions
}

// Builder records the operations of a migration. The operations are applied by ExecUp, grouped
// by kind: collections first, then index drops, index creations and deferred functions.
type Builder struct {
	collections []string
	dropIndexes []dropIndexOp
	indexes     []createIndexOp
	deferred    []DeferFunc
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// CreateCollection records the creation of a collection.
func (b *Builder) CreateCollection(name string) *Builder {
	b.collections = append(b.collections, name)
	return b
}

// CreateCollections records the creation of several collections.
func (b *Builder) CreateCollections(names ...string) *Builder {
	for _, name := range names {
		b.CreateCollection(name)
	}

	return b
}

// CreateIndex records the creation of an index. opts may be nil.
func (b *Builder) CreateIndex(collection string, keys bson.D, opts *options.IndexOptions) *Builder {
	b.indexes = append(b.indexes, createIndexOp{collection: collection, keys: keys, opts: opts})
	return b
}

// DropIndex records the removal of a named index. opts are handed to the driver unchanged.
func (b *Builder) DropIndex(collection, name string, opts ...*options.DropIndexesOptions) *Builder {
	b.dropIndexes = append(b.dropIndexes, dropIndexOp{collection: collection, name: name, opts: opts})
	return b
}

// Defer records custom code.
func (b *Builder) Defer(fn DeferFunc) *Builder {
	b.deferred = append(b.deferred, fn)
	return b
}

// Empty reports whether no operation was recorded.
func (b *Builder) Empty() bool {
	return len(b.collections) == 0 && len(b.dropIndexes) == 0 && len(b.indexes) == 0 && len(b.deferred) == 0
}

// ExecUp applies the recorded operations.
//
// Collections are created in the session. MongoDB refuses to drop indexes inside a transaction
// and only allows index creation there for collections created by the same transaction, so
// index drops and index creations on collections that existed before the migration run outside
// the session.
//
// Arguments:
//   - ctx: the parent context, without session.
//   - sess: the migration session. nil runs everything outside a transaction.
//   - db: the database to migrate.
//   - logger: progress logger.
func (b *Builder) ExecUp(ctx context.Context, sess mongo.Session, db *mongo.Database, logger logx.Logger) error {
	sc := ctx
	if sess != nil {
		sc = mongo.NewSessionContext(ctx, sess)
	}

	existing, err := b.existingCollections(ctx, db)
	if err != nil {
		return err
	}

	for _, name := range b.collections {
		logger.LogInfo(ctx, fmt.Sprintf("Creating collection %s", name))

		if err = db.CreateCollection(sc, name); err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "error creating collection %s", name)
		}
	}

	for _, op := range b.dropIndexes {
		logger.LogInfo(ctx, fmt.Sprintf("Dropping index %s on %s", op.name, op.collection))

		if _, err = db.Collection(op.collection).Indexes().DropOne(ctx, op.name, op.opts...); err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "error dropping index %s on %s", op.name, op.collection)
		}
	}

	for _, op := range b.indexes {
		logger.LogInfo(ctx, fmt.Sprintf("Creating index on %s", op.collection))

		indexCtx := sc
		if existing[op.collection] {
			indexCtx = ctx
		}

		model := mongo.IndexModel{Keys: op.keys, Options: op.opts}
		if _, err = db.Collection(op.collection).Indexes().CreateOne(indexCtx, model); err != nil {
			return errorx.NewDatabaseErrorWrapper(err, "error creating index on %s", op.collection)
		}
	}

	for _, fn := range b.deferred {
		if err = fn(sc, db); err != nil {
			return err
		}
	}

	return nil
}

func (b *Builder) existingCollections(ctx context.Context, db *mongo.Database) (map[string]bool, error) {
	if len(b.indexes) == 0 {
		return nil, nil
	}

	names, err := db.ListCollectionNames(ctx, bson.D{}, options.ListCollections().SetNameOnly(true))
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error listing collections")
	}

	existing := make(map[string]bool, len(names))
	for _, name := range names {
		existing[name] = true
	}

	return existing, nil
}
