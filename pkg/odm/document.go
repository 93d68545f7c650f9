package odm

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/spf13/cast"
	"github.com/zakodium/adonis-mongodb/pkg/dbx"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/utilx/copyx"
	"github.com/zakodium/adonis-mongodb/pkg/utilx/jsonx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	idKey        = "_id"
	createdAtKey = "createdAt"
	updatedAtKey = "updatedAt"
)

// Entity is implemented by every model type through its embedded Document.
type Entity interface {
	Doc() *Document
}

// Document holds the state of one model instance: the attributes as last read from or written
// to the database (original), the current attributes, and the lifecycle flags.
//
// Model types embed Document and expose typed accessors over the attribute map:
//
//	type Post struct {
//	    odm.Document
//	}
//
//	func (p *Post) Title() string         { return p.GetString("title") }
//	func (p *Post) SetTitle(v string) error { return p.Set("title", v) }
//
// Attributes without an accessor stay reachable through Get and Set.
type Document struct {
	original   map[string]any
	attributes map[string]any
	persisted  bool
	fetched    bool
	deleted    bool
	schema     *Schema
	conn       *dbx.Connection
	session    mongo.Session
}

// Doc returns the document itself. It makes every type embedding Document an Entity.
func (d *Document) Doc() *Document {
	return d
}

func (d *Document) bind(schema *Schema, conn *dbx.Connection, sess mongo.Session) {
	d.schema = schema
	d.conn = conn
	d.session = sess
}

func (d *Document) load(attributes map[string]any) {
	d.attributes = attributes
	d.original = copyx.CloneMap(attributes)
	d.persisted = true
	d.fetched = true
}

// Get returns the current value of an attribute, nil when absent.
func (d *Document) Get(key string) any {
	return d.attributes[key]
}

// Has reports whether the attribute is set.
func (d *Document) Has(key string) bool {
	_, ok := d.attributes[key]
	return ok
}

// Set changes the current value of an attribute.
// It fails with E_DOCUMENT_DELETED once the document was deleted.
func (d *Document) Set(key string, value any) error {
	if err := d.ensureNotDeleted(); err != nil {
		return err
	}

	if d.attributes == nil {
		d.attributes = make(map[string]any)
	}

	d.attributes[key] = value

	return nil
}

// Unset removes an attribute. The next Save removes it from the stored document.
func (d *Document) Unset(key string) error {
	if err := d.ensureNotDeleted(); err != nil {
		return err
	}

	delete(d.attributes, key)

	return nil
}

// GetString returns the attribute converted to a string, "" when absent or not convertible.
func (d *Document) GetString(key string) string {
	return cast.ToString(d.Get(key))
}

// GetInt64 returns the attribute converted to an int64.
func (d *Document) GetInt64(key string) int64 {
	return cast.ToInt64(d.Get(key))
}

// GetFloat64 returns the attribute converted to a float64.
func (d *Document) GetFloat64(key string) float64 {
	return cast.ToFloat64(d.Get(key))
}

// GetBool returns the attribute converted to a bool.
func (d *Document) GetBool(key string) bool {
	return cast.ToBool(d.Get(key))
}

// GetTime returns a date attribute, stored as time.Time or as a BSON datetime.
func (d *Document) GetTime(key string) time.Time {
	if t, ok := asTime(d.Get(key)); ok {
		return t
	}

	return cast.ToTime(d.Get(key))
}

// GetObjectID returns an ObjectID attribute, or primitive.NilObjectID.
func (d *Document) GetObjectID(key string) primitive.ObjectID {
	if id, ok := d.Get(key).(primitive.ObjectID); ok {
		return id
	}

	return primitive.NilObjectID
}

// ID returns the _id attribute.
func (d *Document) ID() any {
	return d.Get(idKey)
}

// CreatedAt returns the creation timestamp set by the first Save.
func (d *Document) CreatedAt() time.Time {
	return d.GetTime(createdAtKey)
}

// UpdatedAt returns the timestamp set by the last Save.
func (d *Document) UpdatedAt() time.Time {
	return d.GetTime(updatedAtKey)
}

// Attributes returns a deep copy of the current attributes.
func (d *Document) Attributes() map[string]any {
	if d.attributes == nil {
		return map[string]any{}
	}

	return copyx.CloneMap(d.attributes)
}

// Original returns a deep copy of the attributes as last persisted.
func (d *Document) Original() map[string]any {
	if d.original == nil {
		return map[string]any{}
	}

	return copyx.CloneMap(d.original)
}

// Dirty returns the attributes that are absent from the original snapshot or differ from it.
func (d *Document) Dirty() map[string]any {
	dirty := make(map[string]any)

	for key, value := range d.attributes {
		orig, ok := d.original[key]
		if !ok || !equalValues(orig, value) {
			dirty[key] = value
		}
	}

	return dirty
}

// IsDirty reports whether an attribute was changed, added or removed since the last snapshot.
func (d *Document) IsDirty() bool {
	return len(d.Dirty()) > 0 || len(d.removed()) > 0
}

// removed returns the keys of the original snapshot that are no longer attributes.
func (d *Document) removed() bson.M {
	gone := bson.M{}

	for key := range d.original {
		if _, ok := d.attributes[key]; !ok {
			gone[key] = ""
		}
	}

	return gone
}

// IsNew reports whether the document was never saved.
func (d *Document) IsNew() bool {
	return !d.persisted
}

// IsPersisted reports whether the document exists in the database.
func (d *Document) IsPersisted() bool {
	return d.persisted
}

// IsLocal reports whether the document was created in memory rather than read from the database.
func (d *Document) IsLocal() bool {
	return !d.fetched
}

// IsDeleted reports whether Delete was called.
func (d *Document) IsDeleted() bool {
	return d.deleted
}

// Merge sets every entry of values on the document.
func (d *Document) Merge(values map[string]any) error {
	if err := d.ensureNotDeleted(); err != nil {
		return err
	}

	for key, value := range values {
		if err := d.Set(key, value); err != nil {
			return err
		}
	}

	return nil
}

// Fill replaces the attributes with values, keeping _id and createdAt.
func (d *Document) Fill(values map[string]any) error {
	if err := d.ensureNotDeleted(); err != nil {
		return err
	}

	kept := make(map[string]any, len(values)+2)
	if id, ok := d.attributes[idKey]; ok {
		kept[idKey] = id
	}

	if createdAt, ok := d.attributes[createdAtKey]; ok && createdAt != nil {
		kept[createdAtKey] = createdAt
	}

	d.attributes = kept

	return d.Merge(values)
}

// MergeJSON merges a JSON object into the attributes. _id is ignored.
func (d *Document) MergeJSON(data []byte) error {
	values, err := jsonx.ParseJSON(data, false)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidArgument, "cannot merge JSON into document")
	}

	delete(values, idKey)

	return d.Merge(values)
}

// UseTransaction binds the document to a session: Save and Delete then run inside it.
// It fails with E_ALREADY_IN_TRANSACTION if the document is already bound to a session.
func (d *Document) UseTransaction(sess mongo.Session) error {
	if d.session != nil {
		return errorx.New(errorx.CodeAlreadyInTransaction, "")
	}

	d.session = sess

	return nil
}

// Session returns the session the document is bound to, nil when none.
func (d *Document) Session() mongo.Session {
	return d.session
}

// Schema returns the schema of the model the document belongs to, nil for unbound documents.
func (d *Document) Schema() *Schema {
	return d.schema
}

// Save inserts the document when it is new, otherwise $sets its dirty attributes.
//
// createdAt is set when absent and updatedAt on every write. Saving a persisted document
// without changes is a no-op.
//
// Arguments:
//   - ctx: the request context.
//   - opts: WithSession (used when the document is not bound to a session), WithInsertOptions, WithUpdateOptions.
//
// Returns:
//   - bool: true if a write was sent to the database.
//   - error: E_DOCUMENT_DELETED for a deleted document, or a wrapped driver error.
func (d *Document) Save(ctx context.Context, opts ...Option) (bool, error) {
	if err := d.ensureNotDeleted(); err != nil {
		return false, err
	}

	o := collectOptions(opts)

	if d.persisted && !d.IsDirty() {
		return false, nil
	}

	coll, ctx, err := d.collection(ctx, o)
	if err != nil {
		return false, err
	}

	if d.attributes == nil {
		d.attributes = make(map[string]any)
	}

	// timestamps and a generated _id only reach the attributes once the write succeeded
	now := time.Now().UTC().Truncate(time.Millisecond)

	stamps := map[string]any{updatedAtKey: now}
	if _, ok := d.attributes[createdAtKey]; !ok {
		stamps[createdAtKey] = now
	}

	if !d.persisted {
		err = d.insert(ctx, coll, o, stamps)
	} else {
		err = d.update(ctx, coll, o, stamps)
	}

	if err != nil {
		return false, err
	}

	d.original = copyx.CloneMap(d.attributes)

	return true, nil
}

func (d *Document) insert(ctx context.Context, coll *mongo.Collection, o operationOptions, stamps map[string]any) error {
	doc := make(map[string]any, len(d.attributes)+len(stamps)+1)
	maps.Copy(doc, d.attributes)
	maps.Copy(doc, stamps)

	if _, ok := doc[idKey]; !ok && d.schema.IsAutoIncrement() {
		id, err := nextSequence(ctx, coll.Database(), coll.Name())
		if err != nil {
			return err
		}

		doc[idKey] = id
	}

	res, err := coll.InsertOne(ctx, doc, insertOptions(o.insert)...)
	if err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error inserting document in %s", coll.Name())
	}

	if _, ok := doc[idKey]; !ok {
		doc[idKey] = res.InsertedID
	}

	maps.Copy(d.attributes, doc)
	d.persisted = true

	d.conn.Logger().LogDebug(ctx, fmt.Sprintf("inserted document %v in %s", d.ID(), coll.Name()))

	return nil
}

func (d *Document) update(ctx context.Context, coll *mongo.Collection, o operationOptions, stamps map[string]any) error {
	toSet := d.Dirty()
	delete(toSet, idKey)
	maps.Copy(toSet, stamps)

	update := bson.M{"$set": toSet}
	if toUnset := d.removed(); len(toUnset) > 0 {
		delete(toUnset, idKey)
		update["$unset"] = toUnset
	}

	if _, err := coll.UpdateOne(ctx, bson.M{idKey: d.ID()}, update, updateOptions(o.update)...); err != nil {
		return errorx.NewDatabaseErrorWrapper(err, "error updating document %v in %s", d.ID(), coll.Name())
	}

	maps.Copy(d.attributes, stamps)

	return nil
}

// Delete removes the document and marks it deleted, even when nothing matched.
//
// Returns:
//   - bool: true if exactly one document was removed.
//   - error: E_DOCUMENT_DELETED when already deleted, or a wrapped driver error.
func (d *Document) Delete(ctx context.Context, opts ...Option) (bool, error) {
	if err := d.ensureNotDeleted(); err != nil {
		return false, err
	}

	o := collectOptions(opts)

	coll, ctx, err := d.collection(ctx, o)
	if err != nil {
		return false, err
	}

	res, err := coll.DeleteOne(ctx, bson.M{idKey: d.ID()}, deleteOptions(o.delete)...)
	if err != nil {
		return false, errorx.NewDatabaseErrorWrapper(err, "error deleting document %v from %s", d.ID(), coll.Name())
	}

	d.deleted = true

	return res.DeletedCount == 1, nil
}

// ToJSON returns the attributes and computed properties, honoring the serializeAs and omit
// options of the schema.
func (d *Document) ToJSON() map[string]any {
	out := make(map[string]any, len(d.attributes))

	for key, value := range d.attributes {
		name := key

		if d.schema != nil {
			if f, ok := d.schema.field(key); ok {
				if f.Options.Omit {
					continue
				}

				if f.Options.SerializeAs != "" {
					name = f.Options.SerializeAs
				}
			}
		}

		out[name] = value
	}

	if d.schema == nil {
		return out
	}

	for _, c := range d.schema.computed {
		if c.Options.Omit {
			continue
		}

		name := c.Name
		if c.Options.SerializeAs != "" {
			name = c.Options.SerializeAs
		}

		out[name] = c.Fn(d)
	}

	return out
}

// MarshalJSON encodes ToJSON.
func (d *Document) MarshalJSON() ([]byte, error) {
	return jsonx.Marshal(d.ToJSON(), "document")
}

func (d *Document) ensureNotDeleted() error {
	if d.deleted {
		return errorx.New(errorx.CodeDocumentDeleted, "")
	}

	return nil
}

func (d *Document) collection(ctx context.Context, o operationOptions) (*mongo.Collection, context.Context, error) {
	if d.conn == nil || d.schema == nil {
		return nil, ctx, errorx.New(errorx.CodeInvalidArgument, "document is not bound to a model, create it with Model.New")
	}

	sess := d.session
	if sess == nil {
		sess = o.session
	}

	ctx = sessionContext(ctx, sess)

	coll, err := d.conn.Collection(ctx, d.schema.collection)
	if err != nil {
		return nil, ctx, err
	}

	return coll, ctx, nil
}
