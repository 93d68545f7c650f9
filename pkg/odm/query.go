package odm

import (
	"context"
	"errors"
	"iter"

	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SortDirection is the direction of a sort key.
type SortDirection int

const (
	Ascending  SortDirection = 1
	Descending SortDirection = -1
)

// ExplainVerbosity is the verbosity of the explain command.
type ExplainVerbosity string

const (
	QueryPlanner      ExplainVerbosity = "queryPlanner"
	ExecutionStats    ExplainVerbosity = "executionStats"
	AllPlansExecution ExplainVerbosity = "allPlansExecution"
)

// Query is a chained query on a model. It is not safe for concurrent use.
//
// Until Sort or SortBy is called, results are sorted by descending _id. The first sort call
// replaces that default, later calls add keys to it.
//
// Argument errors (negative skip, limit below one, forbidden find options) are kept and
// returned by the terminal operation.
//
// Example Usage:
//
//	posts, err := model.Query(bson.M{"published": true}).
//	    SortBy("title", odm.Ascending).
//	    Skip(20).
//	    Limit(10).
//	    All(ctx)
type Query[T Entity] struct {
	model      *Model[T]
	filter     any
	opts       operationOptions
	sort       bson.D
	customSort bool
	skip       *int64
	limit      *int64
	err        error
}

func newQuery[T Entity](model *Model[T], filter any, opts []Option) *Query[T] {
	if filter == nil {
		filter = bson.M{}
	}

	q := &Query[T]{
		model:  model,
		filter: filter,
		opts:   collectOptions(opts),
		sort:   bson.D{{Key: idKey, Value: int(Descending)}},
	}

	if f := q.opts.find; f != nil {
		switch {
		case f.Sort != nil:
			q.err = errorx.New(errorx.CodeForbiddenOption, "sort is not allowed in query find options")
		case f.Skip != nil:
			q.err = errorx.New(errorx.CodeForbiddenOption, "skip is not allowed in query find options")
		case f.Limit != nil:
			q.err = errorx.New(errorx.CodeForbiddenOption, "limit is not allowed in query find options")
		}
	}

	return q
}

// Sort adds sort keys. Keys already present get the new direction in place.
func (q *Query[T]) Sort(keys bson.D) *Query[T] {
	if !q.customSort {
		q.customSort = true
		q.sort = bson.D{}
	}

	for _, key := range keys {
		q.setSortKey(key.Key, key.Value)
	}

	return q
}

// SortBy adds one sort key, ascending unless a direction is given.
func (q *Query[T]) SortBy(field string, direction ...SortDirection) *Query[T] {
	dir := Ascending
	if len(direction) > 0 {
		dir = direction[0]
	}

	return q.Sort(bson.D{{Key: field, Value: int(dir)}})
}

func (q *Query[T]) setSortKey(key string, value any) {
	for i := range q.sort {
		if q.sort[i].Key == key {
			q.sort[i].Value = value
			return
		}
	}

	q.sort = append(q.sort, bson.E{Key: key, Value: value})
}

// Skip sets the number of documents to skip. It must be at least zero.
func (q *Query[T]) Skip(skip int64) *Query[T] {
	if skip < 0 {
		q.fail(errorx.New(errorx.CodeInvalidArgument, "skip must be at least zero, got %d", skip))
		return q
	}

	q.skip = &skip

	return q
}

// Limit sets the maximum number of documents returned. It must be at least one.
func (q *Query[T]) Limit(limit int64) *Query[T] {
	if limit < 1 {
		q.fail(errorx.New(errorx.CodeInvalidArgument, "limit must be at least one, got %d", limit))
		return q
	}

	q.limit = &limit

	return q
}

func (q *Query[T]) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

// Err returns the first argument error recorded by the builder.
func (q *Query[T]) Err() error {
	return q.err
}

// FindOptions returns the driver find options the query runs with.
func (q *Query[T]) FindOptions() *options.FindOptions {
	opts := options.Find()
	if q.opts.find != nil {
		opts = options.MergeFindOptions(q.opts.find)
	}

	opts.SetSort(q.sort)

	if q.skip != nil {
		opts.SetSkip(*q.skip)
	}

	if q.limit != nil {
		opts.SetLimit(*q.limit)
	}

	return opts
}

// First returns the first matching document. found is false when nothing matches.
func (q *Query[T]) First(ctx context.Context) (T, bool, error) {
	var zero T

	coll, ctx, err := q.prepare(ctx)
	if err != nil {
		return zero, false, err
	}

	var raw bson.M

	err = coll.FindOne(ctx, q.filter, findOneFromFind(q.FindOptions())).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return zero, false, nil
		}

		return zero, false, errorx.NewDatabaseErrorWrapper(err, "error querying %s", coll.Name())
	}

	entity, err := q.model.hydrate(raw, q.opts.session)
	if err != nil {
		return zero, false, err
	}

	return entity, true, nil
}

// FirstOrFail is like First but fails with E_DOCUMENT_NOT_FOUND when nothing matches.
func (q *Query[T]) FirstOrFail(ctx context.Context) (T, error) {
	return orFail(q.First(ctx))
}

// All returns every matching document.
func (q *Query[T]) All(ctx context.Context) ([]T, error) {
	coll, ctx, err := q.prepare(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, q.filter, q.FindOptions())
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error querying %s", coll.Name())
	}

	return q.model.hydrateAll(ctx, cursor, q.opts.session)
}

// Count returns the number of matching documents, honoring skip and limit.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	coll, ctx, err := q.prepare(ctx)
	if err != nil {
		return 0, err
	}

	opts := countOptions(q.opts.count)
	if q.skip != nil {
		opts.SetSkip(*q.skip)
	}

	if q.limit != nil {
		opts.SetLimit(*q.limit)
	}

	count, err := coll.CountDocuments(ctx, q.filter, opts)
	if err != nil {
		return 0, errorx.NewDatabaseErrorWrapper(err, "error counting %s", coll.Name())
	}

	return count, nil
}

// Distinct returns the distinct values of key among the matching documents.
func (q *Query[T]) Distinct(ctx context.Context, key string) ([]any, error) {
	coll, ctx, err := q.prepare(ctx)
	if err != nil {
		return nil, err
	}

	values, err := coll.Distinct(ctx, key, q.filter, distinctOptions(q.opts.distinct)...)
	if err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error reading distinct %s of %s", key, coll.Name())
	}

	return values, nil
}

// Explain returns the query plan of the find command the query would run.
// An empty verbosity selects AllPlansExecution.
func (q *Query[T]) Explain(ctx context.Context, verbosity ExplainVerbosity) (bson.M, error) {
	coll, ctx, err := q.prepare(ctx)
	if err != nil {
		return nil, err
	}

	if verbosity == "" {
		verbosity = AllPlansExecution
	}

	find := bson.D{
		{Key: "find", Value: coll.Name()},
		{Key: "filter", Value: q.filter},
		{Key: "sort", Value: q.sort},
	}

	if q.skip != nil {
		find = append(find, bson.E{Key: "skip", Value: *q.skip})
	}

	if q.limit != nil {
		find = append(find, bson.E{Key: "limit", Value: *q.limit})
	}

	var plan bson.M

	cmd := bson.D{{Key: "explain", Value: find}, {Key: "verbosity", Value: string(verbosity)}}
	if err = coll.Database().RunCommand(ctx, cmd).Decode(&plan); err != nil {
		return nil, errorx.NewDatabaseErrorWrapper(err, "error explaining query on %s", coll.Name())
	}

	return plan, nil
}

// Iter lazily yields the matching documents. Every call runs the query again; iteration stops
// after the first error.
//
// Example Usage:
//
//	for post, err := range model.Query(nil).Iter(ctx) {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(post.GetString("title"))
//	}
func (q *Query[T]) Iter(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		coll, ctx, err := q.prepare(ctx)
		if err != nil {
			yield(zero, err)
			return
		}

		cursor, err := coll.Find(ctx, q.filter, q.FindOptions())
		if err != nil {
			yield(zero, errorx.NewDatabaseErrorWrapper(err, "error querying %s", coll.Name()))
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var raw bson.M
			if err = cursor.Decode(&raw); err != nil {
				yield(zero, errorx.NewDatabaseErrorWrapper(err, "error decoding document"))
				return
			}

			entity, err := q.model.hydrate(raw, q.opts.session)
			if err != nil {
				yield(zero, err)
				return
			}

			if !yield(entity, nil) {
				return
			}
		}

		if err = cursor.Err(); err != nil {
			yield(zero, errorx.NewDatabaseErrorWrapper(err, "error iterating cursor"))
		}
	}
}

func (q *Query[T]) prepare(ctx context.Context) (*mongo.Collection, context.Context, error) {
	if q.err != nil {
		return nil, ctx, q.err
	}

	return q.model.collection(ctx, q.opts)
}
