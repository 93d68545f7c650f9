package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/utilx"
	"github.com/zakodium/adonis-mongodb/pkg/utilx/timex"
)

const fileTemplate = `description: %s

# createCollections:
#   - posts

# dropIndexes:
#   - collection: posts
#     name: title_1

# createIndexes:
#   - collection: posts
#     keys: {slug: 1}
#     name: slug_1
#     unique: true
`

// Scaffold writes an empty YAML migration named "<unix millis>_<snake_case name>.yaml" into dir.
//
// Returns:
//   - string: the path of the new file.
//   - error: E_INVALID_ARGUMENT when name is empty or contains a slash, or a file error.
func Scaffold(dir, name string, now time.Time) (string, error) {
	if strings.Contains(name, "/") {
		return "", errorx.New(errorx.CodeInvalidArgument, "name argument should not contain any slash")
	}

	snake := utilx.SnakeCase(name)
	if snake == "" {
		return "", errorx.New(errorx.CodeInvalidArgument, "migration name is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "error creating migrations directory %s", dir)
	}

	path := filepath.Join(dir, timex.ToMillis(now)+"_"+snake+".yaml")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "error creating migration file %s", path)
	}
	defer f.Close()

	if _, err = fmt.Fprintf(f, fileTemplate, strings.ReplaceAll(snake, "_", " ")); err != nil {
		return "", errors.Wrapf(err, "error writing migration file %s", path)
	}

	return path, nil
}
