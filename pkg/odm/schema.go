package odm

import (
	"reflect"
	"sync"

	"github.com/jinzhu/inflection"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/utilx"
)

// FieldOptions controls how a declared field is serialized by ToJSON.
type FieldOptions struct {
	// SerializeAs renames the field in the JSON output.
	SerializeAs string
	// Omit excludes the field from the JSON output.
	Omit bool
}

// ComputedFunc derives a value from the document attributes.
type ComputedFunc func(doc *Document) any

// ComputedOptions controls how a computed property is serialized by ToJSON.
type ComputedOptions struct {
	SerializeAs string
	Omit        bool
}

// FieldDescriptor describes a declared field.
type FieldDescriptor struct {
	Name    string
	Options FieldOptions
}

// ComputedDescriptor describes a computed property.
type ComputedDescriptor struct {
	Name    string
	Fn      ComputedFunc
	Options ComputedOptions
}

// Schema is the per model type metadata: collection, connection, declared fields and computed
// properties. It is built once at startup and registered with Register.
//
// Example Usage:
//
//	odm.Register[*Post](odm.NewSchema("posts").
//	    Field("title").
//	    Field("secret", odm.FieldOptions{Omit: true}).
//	    Computed("titleLength", func(d *odm.Document) any { return len(d.GetString("title")) }))
type Schema struct {
	collection    string
	connection    string
	autoIncrement bool
	fields        []FieldDescriptor
	computed      []ComputedDescriptor
}

// NewSchema creates a schema for the given collection. An empty name is replaced at
// registration by the snake_case plural of the model type name.
func NewSchema(collection string) *Schema {
	return &Schema{collection: collection}
}

// Connection binds the model to a named connection instead of the primary one.
func (s *Schema) Connection(name string) *Schema {
	s.connection = name
	return s
}

// AutoIncrement makes the model use incrementing integer ids instead of ObjectIDs.
func (s *Schema) AutoIncrement() *Schema {
	s.autoIncrement = true
	return s
}

// Field declares a field. Redeclaring a field replaces its options.
func (s *Schema) Field(name string, opts ...FieldOptions) *Schema {
	var o FieldOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	for i := range s.fields {
		if s.fields[i].Name == name {
			s.fields[i].Options = o
			return s
		}
	}

	s.fields = append(s.fields, FieldDescriptor{Name: name, Options: o})

	return s
}

// Computed declares a computed property included in ToJSON.
func (s *Schema) Computed(name string, fn ComputedFunc, opts ...ComputedOptions) *Schema {
	var o ComputedOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	for i := range s.computed {
		if s.computed[i].Name == name {
			s.computed[i] = ComputedDescriptor{Name: name, Fn: fn, Options: o}
			return s
		}
	}

	s.computed = append(s.computed, ComputedDescriptor{Name: name, Fn: fn, Options: o})

	return s
}

// CollectionName returns the collection the model is stored in.
func (s *Schema) CollectionName() string {
	return s.collection
}

// ConnectionName returns the connection name, empty for the primary connection.
func (s *Schema) ConnectionName() string {
	return s.connection
}

// IsAutoIncrement reports whether ids are allocated from the counters collection.
func (s *Schema) IsAutoIncrement() bool {
	return s.autoIncrement
}

// Fields returns the declared fields in declaration order.
func (s *Schema) Fields() []FieldDescriptor {
	return append([]FieldDescriptor(nil), s.fields...)
}

// HasField reports whether name is a declared field.
func (s *Schema) HasField(name string) bool {
	_, ok := s.field(name)
	return ok
}

// ComputedProperties returns the computed properties in declaration order.
func (s *Schema) ComputedProperties() []ComputedDescriptor {
	return append([]ComputedDescriptor(nil), s.computed...)
}

func (s *Schema) field(name string) (FieldDescriptor, bool) {
	for _, f := range s.fields {
		if f.Name == name {
			return f, true
		}
	}

	return FieldDescriptor{}, false
}

func (s *Schema) clone() *Schema {
	return &Schema{
		collection:    s.collection,
		connection:    s.connection,
		autoIncrement: s.autoIncrement,
		fields:        s.Fields(),
		computed:      s.ComputedProperties(),
	}
}

//nolint:gochecknoglobals
var (
	registryMu sync.RWMutex
	registry   = map[reflect.Type]*Schema{}
)

// Register attaches schema to the model type T and returns the registered copy.
// Registering a type again replaces its schema.
func Register[T Entity](schema *Schema) *Schema {
	t := reflect.TypeFor[T]()

	registered := schema.clone()
	if registered.collection == "" {
		registered.collection = computeCollectionName(t)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = registered

	return registered
}

// SchemaOf returns the schema registered for T.
func SchemaOf[T Entity]() (*Schema, error) {
	t := reflect.TypeFor[T]()

	registryMu.RLock()
	defer registryMu.RUnlock()

	schema, ok := registry[t]
	if !ok {
		return nil, errorx.New(errorx.CodeInvalidArgument, "model %s has no registered schema", t.String())
	}

	return schema, nil
}

// computeCollectionName turns a type name such as BlogPost into blog_posts, Person into people.
func computeCollectionName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return utilx.SnakeCase(inflection.Plural(t.Name()))
}
