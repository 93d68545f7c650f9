package migration

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/validator"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/yaml.v3"
)

// fileSpec is the content of a YAML migration file:
//
//	description: create posts
//	createCollections: [posts]
//	dropIndexes:
//	  - {collection: users, name: email_1}
//	createIndexes:
//	  - collection: posts
//	    keys: {slug: 1, createdAt: -1}
//	    name: slug_date
//	    unique: true
type fileSpec struct {
	Description       string          `yaml:"description"`
	CreateCollections []string        `yaml:"createCollections" validate:"dive,required"`
	DropIndexes       []dropIndexSpec `yaml:"dropIndexes" validate:"dive"`
	CreateIndexes     []indexSpec     `yaml:"createIndexes" validate:"dive"`
}

type dropIndexSpec struct {
	Collection string `yaml:"collection" validate:"required"`
	Name       string `yaml:"name" validate:"required"`
}

type indexSpec struct {
	Collection         string    `yaml:"collection" validate:"required"`
	Keys               yaml.Node `yaml:"keys"`
	Name               string    `yaml:"name"`
	Unique             *bool     `yaml:"unique"`
	Sparse             *bool     `yaml:"sparse"`
	ExpireAfterSeconds *int32    `yaml:"expireAfterSeconds"`
}

// IsMigrationFile reports whether path has a YAML extension.
func IsMigrationFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// NameOf returns the migration name of a file: its base name without extension.
func NameOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadFile parses a YAML migration file.
//
// Returns:
//   - Migration: the migration named after the file.
//   - error: E_INVALID_ARGUMENT for unknown fields, missing collection or index names and
//     index keys that are not a non-empty mapping.
func LoadFile(path string) (Migration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Migration{}, errors.Wrapf(err, "error reading migration file %s", path)
	}

	return parseFile(path, data)
}

func parseFile(path string, data []byte) (Migration, error) {
	var parsed fileSpec

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&parsed); err != nil && !errors.Is(err, io.EOF) {
		return Migration{}, errorx.Wrap(err, errorx.CodeInvalidArgument, "invalid migration file %s", path)
	}

	if err := validator.NewValidator().Validate(parsed); err != nil {
		return Migration{}, errorx.Wrap(err, errorx.CodeInvalidArgument, "invalid migration file %s", path)
	}

	indexes := make([]createIndexOp, 0, len(parsed.CreateIndexes))

	for _, idx := range parsed.CreateIndexes {
		keys, err := indexKeys(&idx.Keys)
		if err != nil {
			return Migration{}, errorx.Wrap(err, errorx.CodeInvalidArgument, "invalid index on %s in migration file %s", idx.Collection, path)
		}

		indexes = append(indexes, createIndexOp{collection: idx.Collection, keys: keys, opts: idx.options()})
	}

	return Migration{
		Name:        NameOf(path),
		Description: parsed.Description,
		Source:      path,
		Up: func(b *Builder) {
			b.CreateCollections(parsed.CreateCollections...)

			for _, drop := range parsed.DropIndexes {
				b.DropIndex(drop.Collection, drop.Name)
			}

			for _, idx := range indexes {
				b.CreateIndex(idx.collection, idx.keys, idx.opts)
			}
		},
	}, nil
}

// indexKeys converts a YAML mapping to index keys, keeping the key order.
func indexKeys(node *yaml.Node) (bson.D, error) {
	if node.Kind != yaml.MappingNode || len(node.Content) == 0 {
		return nil, errors.New("keys must be a non-empty mapping")
	}

	keys := make(bson.D, 0, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		var value any
		if err := node.Content[i+1].Decode(&value); err != nil {
			return nil, errors.Wrapf(err, "invalid value for key %s", node.Content[i].Value)
		}

		keys = append(keys, bson.E{Key: node.Content[i].Value, Value: value})
	}

	return keys, nil
}

func (s indexSpec) options() *options.IndexOptions {
	opts := options.Index()

	if s.Name != "" {
		opts.SetName(s.Name)
	}

	if s.Unique != nil {
		opts.SetUnique(*s.Unique)
	}

	if s.Sparse != nil {
		opts.SetSparse(*s.Sparse)
	}

	if s.ExpireAfterSeconds != nil {
		opts.SetExpireAfterSeconds(*s.ExpireAfterSeconds)
	}

	return opts
}
