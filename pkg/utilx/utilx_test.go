package utilx_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakodium/adonis-mongodb/pkg/utilx"
	"github.com/zakodium/adonis-mongodb/pkg/utilx/jsonx"
	"github.com/zakodium/adonis-mongodb/pkg/utilx/timex"
)

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"BlogPost":       "blog_post",
		"addUsersIndex":  "add_users_index",
		"create-posts":   "create_posts",
		"HTTPRequestLog": "http_request_log",
		"already_snake":  "already_snake",
		"with spaces ok": "with_spaces_ok",
		"v2Migration":    "v2_migration",
	}

	for in, want := range cases {
		assert.Equal(t, want, utilx.SnakeCase(in), in)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := timex.ParseTimestamp("1577836800000")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), ts)
	assert.Equal(t, "1577836800000", timex.ToMillis(ts))

	_, err = timex.ParseTimestamp("0")
	assert.Error(t, err)

	ts, err = timex.ParseTimestamp("2021-05-04", time.RFC3339, time.DateOnly)
	require.NoError(t, err)
	assert.Equal(t, 2021, ts.Year())

	_, err = timex.ParseTimestamp("yesterday", time.RFC3339)
	assert.Error(t, err)
}

func TestParseJSON(t *testing.T) {
	attrs, err := jsonx.ParseJSON([]byte(`{"title":"x","views":3}`), false)
	require.NoError(t, err)
	assert.Equal(t, "x", attrs["title"])
	assert.Equal(t, float64(3), attrs["views"])

	_, err = jsonx.ParseJSON([]byte(`[1,2]`), false)
	assert.Error(t, err)
}
