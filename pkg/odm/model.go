package odm

import (
	"context"
	"errors"
	"reflect"

	"github.com/zakodium/adonis-mongodb/pkg/dbx"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Model gives access to the documents of one model type.
//
// T is a pointer to a struct embedding Document. Every document returned by a Model is bound
// to the model connection and, when WithSession was passed, to that session.
//
// Example Usage:
//
//	type Post struct{ odm.Document }
//
//	odm.Register[*Post](odm.NewSchema(""))
//	posts, err := odm.NewModel[*Post](db)
//	post, err := posts.Create(ctx, map[string]any{"title": "hello"})
//	found, err := posts.FindOrFail(ctx, post.ID())
type Model[T Entity] struct {
	db     *dbx.Database
	schema *Schema
	elem   reflect.Type
}

// NewModel creates the Model of T on db. T gets a default schema when none was registered.
//
// Returns:
//   - *Model[T]: the model.
//   - error: E_INVALID_ARGUMENT when T is not a pointer to a struct or db is nil,
//     E_NO_MONGODB_CONNECTION when the schema names an unknown connection.
func NewModel[T Entity](db *dbx.Database) (*Model[T], error) {
	if db == nil {
		return nil, errorx.New(errorx.CodeInvalidArgument, "database is required")
	}

	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, errorx.New(errorx.CodeInvalidArgument, "model type %s must be a pointer to a struct", t.String())
	}

	schema, err := SchemaOf[T]()
	if err != nil {
		schema = Register[T](NewSchema(""))
	}

	if _, err = db.Connection(schema.connection); err != nil {
		return nil, err
	}

	return &Model[T]{db: db, schema: schema, elem: t.Elem()}, nil
}

// Schema returns the schema of the model.
func (m *Model[T]) Schema() *Schema {
	return m.schema
}

// Connection returns the connection the model is stored on.
func (m *Model[T]) Connection() (*dbx.Connection, error) {
	return m.db.Connection(m.schema.connection)
}

// Collection returns the driver collection of the model, connecting first if needed.
func (m *Model[T]) Collection(ctx context.Context) (*mongo.Collection, error) {
	conn, err := m.Connection()
	if err != nil {
		return nil, err
	}

	return conn.Collection(ctx, m.schema.collection)
}

// New returns a new, unsaved document bound to the model, filled with values.
func (m *Model[T]) New(values map[string]any, opts ...Option) (T, error) {
	var zero T

	conn, err := m.Connection()
	if err != nil {
		return zero, err
	}

	o := collectOptions(opts)

	entity := m.instance()
	entity.Doc().bind(m.schema, conn, o.session)

	if err = entity.Doc().Merge(values); err != nil {
		return zero, err
	}

	return entity, nil
}

// Create inserts a new document built from values.
func (m *Model[T]) Create(ctx context.Context, values map[string]any, opts ...Option) (T, error) {
	var zero T

	entity, err := m.New(values, opts...)
	if err != nil {
		return zero, err
	}

	if _, err = entity.Doc().Save(ctx, opts...); err != nil {
		return zero, err
	}

	return entity, nil
}

// CreateMany inserts one document per entry of values, in order. It stops at the first failure
// and returns the documents saved so far.
func (m *Model[T]) CreateMany(ctx context.Context, values []map[string]any, opts ...Option) ([]T, error) {
	entities := make([]T, 0, len(values))

	for _, v := range values {
		entity, err := m.Create(ctx, v, opts...)
		if err != nil {
			return entities, err
		}

		entities = append(entities, entity)
	}

	return entities, nil
}

// Find returns the document with the given _id. found is false when no document matches.
func (m *Model[T]) Find(ctx context.Context, id any, opts ...Option) (T, bool, error) {
	return m.findOne(ctx, bson.M{idKey: id}, opts)
}

// FindOrFail is like Find but fails with E_DOCUMENT_NOT_FOUND when no document matches.
func (m *Model[T]) FindOrFail(ctx context.Context, id any, opts ...Option) (T, error) {
	return orFail(m.Find(ctx, id, opts...))
}

// FindBy returns the first document whose key equals value.
func (m *Model[T]) FindBy(ctx context.Context, key string, value any, opts ...Option) (T, bool, error) {
	return m.findOne(ctx, bson.M{key: value}, opts)
}

// FindByOrFail is like FindBy but fails with E_DOCUMENT_NOT_FOUND when no document matches.
func (m *Model[T]) FindByOrFail(ctx context.Context, key string, value any, opts ...Option) (T, error) {
	return orFail(m.FindBy(ctx, key, value, opts...))
}

// FindMany returns the documents whose _id is in ids.
func (m *Model[T]) FindMany(ctx context.Context, ids []any, opts ...Option) ([]T, error) {
	o := collectOptions(opts)

	coll, ctx, err := m.collection(ctx, o)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, bson.M{idKey: bson.M{"$in": ids}}, findOptions(o.find)...)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error finding documents in %s", coll.Name())
	}

	return m.hydrateAll(ctx, cursor, o.session)
}

// All returns every document of the collection, newest _id first unless the find options
// set another sort.
func (m *Model[T]) All(ctx context.Context, opts ...Option) ([]T, error) {
	o := collectOptions(opts)

	coll, ctx, err := m.collection(ctx, o)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find()
	if o.find != nil {
		findOpts = options.MergeFindOptions(o.find)
	}

	if findOpts.Sort == nil {
		findOpts.SetSort(bson.D{{Key: idKey, Value: -1}})
	}

	cursor, err := coll.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error finding documents in %s", coll.Name())
	}

	return m.hydrateAll(ctx, cursor, o.session)
}

// Count returns the number of documents matching filter.
func (m *Model[T]) Count(ctx context.Context, filter any, opts ...Option) (int64, error) {
	o := collectOptions(opts)

	coll, ctx, err := m.collection(ctx, o)
	if err != nil {
		return 0, err
	}

	if filter == nil {
		filter = bson.M{}
	}

	count, err := coll.CountDocuments(ctx, filter, countOptions(o.count))
	if err != nil {
		return 0, errorx.NewDatabaseErrorWrapper(err, "error counting documents in %s", coll.Name())
	}

	return count, nil
}

// Query starts a query on the documents matching filter. A nil filter matches everything.
// The find options passed with WithFindOptions must not set Sort, Skip or Limit.
func (m *Model[T]) Query(filter any, opts ...Option) *Query[T] {
	return newQuery(m, filter, opts)
}

func (m *Model[T]) findOne(ctx context.Context, filter any, opts []Option) (T, bool, error) {
	var zero T

	o := collectOptions(opts)

	coll, ctx, err := m.collection(ctx, o)
	if err != nil {
		return zero, false, err
	}

	var findOneOpts []*options.FindOneOptions
	if o.find != nil {
		findOneOpts = append(findOneOpts, findOneFromFind(o.find))
	}

	var raw bson.M

	err = coll.FindOne(ctx, filter, findOneOpts...).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, false, nil
		}

		return zero, false, errorx.NewDatabaseErrorWrapper(err, "error finding document in %s", coll.Name())
	}

	entity, err := m.hydrate(raw, o.session)
	if err != nil {
		return zero, false, err
	}

	return entity, true, nil
}

func (m *Model[T]) collection(ctx context.Context, o operationOptions) (*mongo.Collection, context.Context, error) {
	ctx = sessionContext(ctx, o.session)

	coll, err := m.Collection(ctx)
	if err != nil {
		return nil, ctx, err
	}

	return coll, ctx, nil
}

func (m *Model[T]) hydrateAll(ctx context.Context, cursor *mongo.Cursor, sess mongo.Session) ([]T, error) {
	defer cursor.Close(ctx)

	var entities []T

	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, errorx.NewDatabaseErrorWrapper(err, "error decoding document")
		}

		entity, err := m.hydrate(raw, sess)
		if err != nil {
			return nil, err
		}

		entities = append(entities, entity)
	}

	if err := cursor.Err(); err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error iterating cursor")
	}

	if entities == nil {
		entities = []T{}
	}

	return entities, nil
}

// hydrate builds a persisted document from a stored one.
func (m *Model[T]) hydrate(raw bson.M, sess mongo.Session) (T, error) {
	var zero T

	conn, err := m.Connection()
	if err != nil {
		return zero, err
	}

	entity := m.instance()
	entity.Doc().bind(m.schema, conn, sess)
	entity.Doc().load(map[string]any(raw))

	return entity, nil
}

func (m *Model[T]) instance() T {
	return reflect.New(m.elem).Interface().(T)
}

func orFail[T any](entity T, found bool, err error) (T, error) {
	if err != nil {
		return entity, err
	}

	if !found {
		return entity, errorx.New(errorx.CodeDocumentNotFound, "")
	}

	return entity, nil
}

func findOptions(o *options.FindOptions) []*options.FindOptions {
	if o == nil {
		return nil
	}

	return []*options.FindOptions{o}
}

// findOneFromFind keeps the find options that apply to a single document lookup.
func findOneFromFind(o *options.FindOptions) *options.FindOneOptions {
	one := options.FindOne()
	one.AllowPartialResults = o.AllowPartialResults
	one.Collation = o.Collation
	one.Hint = o.Hint
	one.MaxTime = o.MaxTime
	one.Projection = o.Projection
	one.ReturnKey = o.ReturnKey
	one.ShowRecordID = o.ShowRecordID
	one.Skip = o.Skip
	one.Sort = o.Sort

	return one
}
