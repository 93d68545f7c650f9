package migration

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
)

// Source describes where the migrations of a connection come from.
//
// Fields:
//   - Root: the project root. Relative directories are resolved against it.
//   - Dirs: extra migration directories, usually the Migrations of the connection configuration.
//     DefaultDir is always searched first.
//   - Registry: the Go migrations. nil selects DefaultRegistry.
type Source struct {
	Root     string
	Dirs     []string
	Registry *Registry
}

// Discover returns the migrations of src sorted by name.
//
// Missing directories are skipped. Files without a YAML extension are ignored.
//
// Returns:
//   - []Migration: the migrations sorted by name.
//   - error: E_MALFORMED_MIGRATION_NAME after logging every malformed name,
//     E_DUPLICATE_MIGRATION_NAME when two migrations share a name, or a file error.
func Discover(ctx context.Context, src Source, logger logx.Logger) ([]Migration, error) {
	if logger == nil {
		logger = logx.GetLogger()
	}

	registry := src.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	migrations := registry.Migrations()

	for _, dir := range src.dirs() {
		files, err := listFiles(dir)
		if err != nil {
			return nil, err
		}

		for _, file := range files {
			if !IsMigrationFile(file) {
				logger.LogDebug(ctx, fmt.Sprintf("ignoring %s, migration files must be YAML", file))
				continue
			}

			migrations = append(migrations, Migration{Name: NameOf(file), Source: file})
		}
	}

	sort.SliceStable(migrations, func(i, j int) bool { return migrations[i].Name < migrations[j].Name })

	if err := validate(ctx, migrations, logger); err != nil {
		return nil, err
	}

	for i := range migrations {
		if migrations[i].Up != nil {
			continue
		}

		loaded, err := LoadFile(migrations[i].Source)
		if err != nil {
			return nil, err
		}

		migrations[i] = loaded
	}

	return migrations, nil
}

func (s Source) dirs() []string {
	dirs := make([]string, 0, len(s.Dirs)+1)

	for _, dir := range append([]string{DefaultDir}, s.Dirs...) {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(s.Root, dir)
		}

		dirs = append(dirs, dir)
	}

	return dirs
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, errors.Wrapf(err, "error reading migrations directory %s", dir)
	}

	files := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		files = append(files, filepath.Join(dir, entry.Name()))
	}

	return files, nil
}
