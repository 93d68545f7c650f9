package migration

import (
	"sort"
	"sync"

	"github.com/zakodium/adonis-mongodb/pkg/errorx"
)

// Registry holds the migrations written in Go.
type Registry struct {
	mu         sync.RWMutex
	migrations map[string]Migration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{migrations: make(map[string]Migration)}
}

// Register adds a Go migration.
//
// Returns:
//   - error: E_MALFORMED_MIGRATION_NAME for a name without timestamp, E_DUPLICATE_MIGRATION_NAME
//     when the name is already registered, E_INVALID_ARGUMENT when up is nil.
func (r *Registry) Register(name, description string, up UpFunc) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	if up == nil {
		return errorx.New(errorx.CodeInvalidArgument, "migration %s has no up function", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.migrations[name]; ok {
		return errorx.New(errorx.CodeDuplicateMigrationName, "migration %s is already registered", name)
	}

	r.migrations[name] = Migration{Name: name, Description: description, Up: up}

	return nil
}

// Migrations returns the registered migrations sorted by name.
func (r *Registry) Migrations() []Migration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Migration, 0, len(r.migrations))
	for _, m := range r.migrations {
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

//nolint:gochecknoglobals
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the registry filled by Register.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a Go migration to the default registry. It is meant to be called from init
// functions and panics on an invalid or duplicate name.
//
// Example Usage:
//
//	func init() {
//	    migration.Register("1700000000000_posts", "create posts", func(b *migration.Builder) {
//	        b.CreateCollection("posts").
//	            CreateIndex("posts", bson.D{{Key: "slug", Value: 1}}, options.Index().SetUnique(true))
//	    })
//	}
func Register(name, description string, up UpFunc) {
	if err := defaultRegistry.Register(name, description, up); err != nil {
		panic(err)
	}
}
