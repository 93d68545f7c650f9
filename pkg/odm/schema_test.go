package odm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/odm"
)

type BlogPost struct {
	odm.Document
}

type Category struct {
	odm.Document
}

type unregistered struct {
	odm.Document
}

func TestRegisterComputesCollectionName(t *testing.T) {
	schema := odm.Register[*BlogPost](odm.NewSchema(""))
	assert.Equal(t, "blog_posts", schema.CollectionName())

	schema = odm.Register[*Category](odm.NewSchema(""))
	assert.Equal(t, "categories", schema.CollectionName())

	schema = odm.Register[*Category](odm.NewSchema("taxonomy").Connection("other").AutoIncrement())
	assert.Equal(t, "taxonomy", schema.CollectionName())
	assert.Equal(t, "other", schema.ConnectionName())
	assert.True(t, schema.IsAutoIncrement())

	got, err := odm.SchemaOf[*Category]()
	require.NoError(t, err)
	assert.Equal(t, "taxonomy", got.CollectionName())
}

func TestSchemaOfUnregisteredType(t *testing.T) {
	_, err := odm.SchemaOf[*unregistered]()
	require.Error(t, err)
	assert.Equal(t, errorx.CodeInvalidArgument, errorx.CodeOf(err))
}

func TestSchemaFieldsAndComputed(t *testing.T) {
	schema := odm.NewSchema("posts").
		Field("title").
		Field("secret", odm.FieldOptions{Omit: true}).
		Field("title", odm.FieldOptions{SerializeAs: "name"}).
		Computed("len", func(d *odm.Document) any { return len(d.GetString("title")) })

	fields := schema.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "title", fields[0].Name)
	assert.Equal(t, "name", fields[0].Options.SerializeAs)
	assert.True(t, schema.HasField("secret"))
	assert.False(t, schema.HasField("body"))
	require.Len(t, schema.ComputedProperties(), 1)

	registered := odm.Register[*BlogPost](schema)
	schema.Field("body")
	assert.False(t, registered.HasField("body"), "registration must copy the schema")
}
