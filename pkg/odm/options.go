package odm

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Option configures a single model operation.
type Option func(*operationOptions)

type operationOptions struct {
	session  mongo.Session
	find     *options.FindOptions
	count    *options.CountOptions
	distinct *options.DistinctOptions
	insert   *options.InsertOneOptions
	update   *options.UpdateOptions
	delete   *options.DeleteOptions
}

func collectOptions(opts []Option) operationOptions {
	var o operationOptions
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// WithSession runs the operation in the given session. Documents returned by finders stay bound
// to it, so a later Save or Delete joins the same transaction.
func WithSession(sess mongo.Session) Option {
	return func(o *operationOptions) {
		o.session = sess
	}
}

// WithFindOptions passes driver find options. Query rejects bundles that set Sort, Skip or Limit.
func WithFindOptions(opts *options.FindOptions) Option {
	return func(o *operationOptions) {
		o.find = opts
	}
}

// WithCountOptions passes driver count options.
func WithCountOptions(opts *options.CountOptions) Option {
	return func(o *operationOptions) {
		o.count = opts
	}
}

// WithDistinctOptions passes driver distinct options.
func WithDistinctOptions(opts *options.DistinctOptions) Option {
	return func(o *operationOptions) {
		o.distinct = opts
	}
}

// WithInsertOptions passes driver insert options, used when saving a new document.
func WithInsertOptions(opts *options.InsertOneOptions) Option {
	return func(o *operationOptions) {
		o.insert = opts
	}
}

// WithUpdateOptions passes driver update options, used when saving a persisted document.
func WithUpdateOptions(opts *options.UpdateOptions) Option {
	return func(o *operationOptions) {
		o.update = opts
	}
}

// WithDeleteOptions passes driver delete options.
func WithDeleteOptions(opts *options.DeleteOptions) Option {
	return func(o *operationOptions) {
		o.delete = opts
	}
}

// sessionContext attaches sess to ctx. A nil session leaves ctx untouched.
func sessionContext(ctx context.Context, sess mongo.Session) context.Context {
	if sess == nil {
		return ctx
	}

	return mongo.NewSessionContext(ctx, sess)
}

func insertOptions(o *options.InsertOneOptions) []*options.InsertOneOptions {
	if o == nil {
		return nil
	}

	return []*options.InsertOneOptions{o}
}

func updateOptions(o *options.UpdateOptions) []*options.UpdateOptions {
	if o == nil {
		return nil
	}

	return []*options.UpdateOptions{o}
}

func deleteOptions(o *options.DeleteOptions) []*options.DeleteOptions {
	if o == nil {
		return nil
	}

	return []*options.DeleteOptions{o}
}

func countOptions(o *options.CountOptions) *options.CountOptions {
	if o == nil {
		return options.Count()
	}

	c := *o

	return &c
}

func distinctOptions(o *options.DistinctOptions) []*options.DistinctOptions {
	if o == nil {
		return nil
	}

	return []*options.DistinctOptions{o}
}
