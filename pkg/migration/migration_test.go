package migration_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/logx"
	"github.com/zakodium/adonis-mongodb/pkg/migration"
	"go.mongodb.org/mongo-driver/bson"
)

type logConfig struct{}

func (logConfig) GetServiceName() string { return "migration-test" }
func (logConfig) GetVersion() string     { return "1.0.0" }
func (logConfig) GetEnvironment() string { return "DEV" }
func (logConfig) GetLogLevel() string    { return "debug" }

func bufferLogger() (logx.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logx.NewZeroLogger(&buf, logConfig{}), &buf
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func noop(*migration.Builder) {}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"1700000000000_create_posts", true},
		{"1_x", true},
		{"0001_leading_zeros", true},
		{"0_zero", false},
		{"000_zero", false},
		{"create_posts", false},
		{"1700000000000", false},
		{"1700000000000-posts", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := migration.ValidateName(tt.name)
			if tt.valid {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, errorx.ErrMalformedMigrationName)
		})
	}
}

func TestRegistry(t *testing.T) {
	r := migration.NewRegistry()

	require.NoError(t, r.Register("2_second", "", noop))
	require.NoError(t, r.Register("1_first", "first one", noop))

	assert.ErrorIs(t, r.Register("1_first", "", noop), errorx.ErrDuplicateMigrationName)
	assert.ErrorIs(t, r.Register("first", "", noop), errorx.ErrMalformedMigrationName)
	assert.ErrorIs(t, r.Register("3_third", "", nil), errorx.ErrInvalidArgument)

	migrations := r.Migrations()
	require.Len(t, migrations, 2)
	assert.Equal(t, "1_first", migrations[0].Name)
	assert.Equal(t, "first one", migrations[0].Description)
	assert.Equal(t, "2_second", migrations[1].Name)
}

func TestRegisterPanicsOnInvalidName(t *testing.T) {
	assert.Panics(t, func() {
		migration.Register("no_timestamp", "", noop)
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "1700000000000_posts.yaml", `
description: create posts
createCollections: [posts, comments]
dropIndexes:
  - {collection: users, name: email_1}
createIndexes:
  - collection: posts
    keys:
      slug: 1
      createdAt: -1
    name: slug_date
    unique: true
  - collection: comments
    keys: {body: text}
`)

	m, err := migration.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1700000000000_posts", m.Name)
	assert.Equal(t, "create posts", m.Description)
	assert.Equal(t, path, m.Source)

	b := migration.NewBuilder()
	m.Up(b)
	assert.False(t, b.Empty())
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "createCollection: [posts]\n"},
		{"empty collection name", "createCollections: ['']\n"},
		{"index without collection", "createIndexes:\n  - keys: {a: 1}\n"},
		{"index without keys", "createIndexes:\n  - collection: posts\n"},
		{"keys not a mapping", "createIndexes:\n  - collection: posts\n    keys: [a]\n"},
		{"drop without name", "dropIndexes:\n  - collection: posts\n"},
		{"not yaml", "createCollections: [posts\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "1_bad.yaml", tt.content)

			_, err := migration.LoadFile(path)
			require.Error(t, err)
			assert.Equal(t, errorx.CodeInvalidArgument, errorx.CodeOf(err))
		})
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "1_empty.yaml", "")

	m, err := migration.LoadFile(path)
	require.NoError(t, err)

	b := migration.NewBuilder()
	m.Up(b)
	assert.True(t, b.Empty())
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, migration.DefaultDir), "1700000000002_b.yaml", "createCollections: [b]\n")
	writeFile(t, filepath.Join(root, migration.DefaultDir), "README.md", "not a migration")
	writeFile(t, filepath.Join(root, "extra"), "1700000000001_a.yml", "createCollections: [a]\n")

	registry := migration.NewRegistry()
	require.NoError(t, registry.Register("1700000000003_c", "go migration", noop))

	logger, _ := bufferLogger()

	migrations, err := migration.Discover(context.Background(), migration.Source{
		Root:     root,
		Dirs:     []string{"extra", "missing"},
		Registry: registry,
	}, logger)
	require.NoError(t, err)

	names := make([]string, 0, len(migrations))
	for _, m := range migrations {
		names = append(names, m.Name)
		assert.NotNil(t, m.Up)
	}

	assert.Equal(t, []string{"1700000000001_a", "1700000000002_b", "1700000000003_c"}, names)
}

func TestDiscoverLogsEveryMalformedName(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, migration.DefaultDir)
	writeFile(t, dir, "posts.yaml", "")
	writeFile(t, dir, "0_zero.yaml", "")
	writeFile(t, dir, "1700000000000_ok.yaml", "")

	logger, buf := bufferLogger()

	_, err := migration.Discover(context.Background(), migration.Source{Root: root, Registry: migration.NewRegistry()}, logger)
	require.Error(t, err)
	assert.ErrorIs(t, err, errorx.ErrMalformedMigrationName)

	assert.Equal(t, 2, strings.Count(buf.String(), "Invalid migration file"))
	assert.Contains(t, buf.String(), "posts.yaml")
	assert.Contains(t, buf.String(), "0_zero.yaml")
}

func TestDiscoverRejectsDuplicates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, migration.DefaultDir), "1_same.yaml", "")
	writeFile(t, filepath.Join(root, "other"), "1_same.yml", "")

	_, err := migration.Discover(context.Background(), migration.Source{
		Root:     root,
		Dirs:     []string{"other"},
		Registry: migration.NewRegistry(),
	}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errorx.ErrDuplicateMigrationName)
	assert.Contains(t, err.Error(), "1_same")
}

func TestScaffold(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mongodb", "migrations")
	now := time.UnixMilli(1700000000123)

	path, err := migration.Scaffold(dir, "CreatePosts", now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "1700000000123_create_posts.yaml"), path)

	m, err := migration.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "create posts", m.Description)
	require.NoError(t, migration.ValidateName(m.Name))

	_, err = migration.Scaffold(dir, "CreatePosts", now)
	assert.Error(t, err, "an existing file is never overwritten")

	_, err = migration.Scaffold(dir, "nested/name", now)
	assert.ErrorIs(t, err, errorx.ErrInvalidArgument)
}

func TestBuilderRecordsOperations(t *testing.T) {
	b := migration.NewBuilder()
	assert.True(t, b.Empty())

	b.CreateCollections("posts", "users").
		CreateIndex("posts", bson.D{{Key: "slug", Value: 1}}, nil).
		DropIndex("users", "email_1").
		Defer(nil)

	assert.False(t, b.Empty())
}
