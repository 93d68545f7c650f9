package odm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
	"github.com/zakodium/adonis-mongodb/pkg/odm"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Comment struct {
	odm.Document
}

func commentModel(t *testing.T) *odm.Model[*Comment] {
	t.Helper()

	odm.Register[*Comment](odm.NewSchema(""))

	comments, err := odm.NewModel[*Comment](offlineDatabase(t))
	require.NoError(t, err)

	return comments
}

func TestQueryDefaultSort(t *testing.T) {
	q := commentModel(t).Query(nil)

	opts := q.FindOptions()
	assert.Equal(t, bson.D{{Key: "_id", Value: -1}}, opts.Sort)
	assert.Nil(t, opts.Skip)
	assert.Nil(t, opts.Limit)
	assert.NoError(t, q.Err())
}

func TestQuerySortReplacesDefaultThenMerges(t *testing.T) {
	q := commentModel(t).Query(bson.M{"published": true}).
		Sort(bson.D{{Key: "date", Value: -1}}).
		SortBy("title").
		SortBy("date", odm.Ascending)

	assert.Equal(t, bson.D{{Key: "date", Value: 1}, {Key: "title", Value: 1}}, q.FindOptions().Sort)
}

func TestQuerySkipAndLimit(t *testing.T) {
	opts := commentModel(t).Query(nil).Skip(0).Limit(5).FindOptions()
	require.NotNil(t, opts.Skip)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(0), *opts.Skip)
	assert.Equal(t, int64(5), *opts.Limit)
}

func TestQueryInvalidArguments(t *testing.T) {
	comments := commentModel(t)

	tests := []struct {
		name  string
		query *odm.Query[*Comment]
		code  errorx.ErrorCode
	}{
		{"negative skip", comments.Query(nil).Skip(-1), errorx.CodeInvalidArgument},
		{"zero limit", comments.Query(nil).Limit(0), errorx.CodeInvalidArgument},
		{"sort option", comments.Query(nil, odm.WithFindOptions(options.Find().SetSort(bson.D{{Key: "a", Value: 1}}))), errorx.CodeForbiddenOption},
		{"skip option", comments.Query(nil, odm.WithFindOptions(options.Find().SetSkip(1))), errorx.CodeForbiddenOption},
		{"limit option", comments.Query(nil, odm.WithFindOptions(options.Find().SetLimit(1))), errorx.CodeForbiddenOption},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.query.Err())
			assert.Equal(t, tt.code, errorx.CodeOf(tt.query.Err()))

			// terminal operations fail before touching the network
			_, err := tt.query.All(t.Context())
			assert.Equal(t, tt.code, errorx.CodeOf(err))

			_, err = tt.query.Count(t.Context())
			assert.Equal(t, tt.code, errorx.CodeOf(err))

			for _, err := range tt.query.Iter(t.Context()) {
				assert.Equal(t, tt.code, errorx.CodeOf(err))
			}
		})
	}
}

func TestQueryKeepsAllowedFindOptions(t *testing.T) {
	projection := bson.M{"title": 1}

	opts := commentModel(t).Query(nil, odm.WithFindOptions(options.Find().SetProjection(projection))).
		Limit(2).
		FindOptions()

	assert.Equal(t, projection, opts.Projection)
	assert.Equal(t, int64(2), *opts.Limit)
}
