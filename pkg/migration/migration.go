// Package migration discovers, validates and runs MongoDB schema migrations.
//
// A migration is a named set of operations recorded on a Builder: collection creation, index
// creation and removal, and custom code. Migrations come from two sources: Go code registered in
// a Registry and YAML files stored in the migrations directories. They run in name order, each
// one in its own transaction, and every successful migration is recorded with the batch number
// of the run that applied it.
package migration

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
	"github.com/zakodium/adonis-mongodb/pkg/utilx/timex"
)

const (
	// DefaultDir is the migrations directory of every connection, relative to the project root.
	DefaultDir = "mongodb/migrations"

	// RecordsCollection stores one record per applied migration.
	RecordsCollection = "__adonis_mongodb"
	// LockCollection holds the lock document preventing concurrent runs.
	LockCollection = "__adonis_mongodb_lock"

	lockID = "migration_lock"
)

var namePattern = regexp.MustCompile(`^(\d+)_.*$`)

// UpFunc records the operations of a migration on b.
type UpFunc func(b *Builder)

// Migration is a named migration.
//
// Fields:
//   - Name: the migration name, "<timestamp>_<description>". Migrations run in name order.
//   - Description: optional text printed when the migration runs.
//   - Source: the file the migration was loaded from, empty for Go migrations.
//   - Up: records the migration operations.
type Migration struct {
	Name        string
	Description string
	Source      string
	Up          UpFunc
}

// Record is the document stored in RecordsCollection for an applied migration.
type Record struct {
	Name  string    `bson:"name"`
	Date  time.Time `bson:"date"`
	Batch int       `bson:"batch"`
}

// ValidateName checks that name starts with a non-zero timestamp followed by an underscore.
func ValidateName(name string) error {
	match := namePattern.FindStringSubmatch(name)
	if match == nil {
		return errorx.New(errorx.CodeMalformedMigrationName, "invalid migration name %q, name must start with a timestamp", name)
	}

	if _, err := timex.ParseTimestamp(match[1]); err != nil {
		return errorx.Wrap(err, errorx.CodeMalformedMigrationName, "invalid migration name %q, name must start with a non-zero timestamp", name)
	}

	return nil
}

// validate checks the names of migrations, which must be sorted by name.
// Every malformed name is logged before E_MALFORMED_MIGRATION_NAME is returned.
func validate(ctx context.Context, migrations []Migration, logger logx.Logger) error {
	malformed := 0

	for _, m := range migrations {
		if err := ValidateName(m.Name); err != nil {
			malformed++

			source := m.Source
			if source == "" {
				source = m.Name
			}

			logger.LogError(ctx, fmt.Sprintf("Invalid migration file: %s. Name must start with a timestamp", source))
		}
	}

	if malformed > 0 {
		return errorx.New(errorx.CodeMalformedMigrationName, "%d migration files are malformed", malformed)
	}

	var duplicates []string

	for i := 1; i < len(migrations); i++ {
		if migrations[i].Name == migrations[i-1].Name &&
			(len(duplicates) == 0 || duplicates[len(duplicates)-1] != migrations[i].Name) {
			duplicates = append(duplicates, migrations[i].Name)
		}
	}

	if len(duplicates) > 0 {
		return errorx.New(errorx.CodeDuplicateMigrationName, "found duplicate migration file names: %v", duplicates)
	}

	return nil
}
