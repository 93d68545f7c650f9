package errorx_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zakodium/adonis-mongodb/pkg/errorx"
)

// TestErrorMatchesSentinelByCode verifies errors.Is compares codes, not identities or messages.
func TestErrorMatchesSentinelByCode(t *testing.T) {
	err := errorx.New(errorx.CodeUnknownConnection, "no MongoDB connection registered with name %q", "foo")

	assert.True(t, errors.Is(err, errorx.ErrUnknownConnection))
	assert.False(t, errors.Is(err, errorx.ErrDuplicateConnection))
	assert.Equal(t, `E_NO_MONGODB_CONNECTION: no MongoDB connection registered with name "foo"`, err.Error())
}

// TestWrappedErrorsKeepCode verifies the code survives fmt and pkg/errors wrapping.
func TestWrappedErrorsKeepCode(t *testing.T) {
	cause := errors.New("socket closed")
	err := errorx.Wrap(cause, errorx.CodeConnectionUnavailable, "")

	wrapped := pkgerrors.Wrap(fmt.Errorf("outer: %w", err), "while saving")

	assert.Equal(t, errorx.CodeConnectionUnavailable, errorx.CodeOf(wrapped))
	assert.True(t, errors.Is(wrapped, errorx.ErrConnectionUnavailable))
	assert.True(t, errors.Is(wrapped, cause))
	assert.Contains(t, err.Error(), "MongoDB connection is not available")
}

// TestDefaultMessage verifies the message table is used when no message is given.
func TestDefaultMessage(t *testing.T) {
	err := errorx.New(errorx.CodeDocumentNotFound, "")
	require.Equal(t, "document not found", err.Message())
	assert.Equal(t, errorx.ErrorCode(""), errorx.CodeOf(errors.New("plain")))
}

// TestDatabaseError verifies driver failures are reachable through Unwrap.
func TestDatabaseError(t *testing.T) {
	cause := errors.New("E11000 duplicate key")
	err := errorx.NewDatabaseErrorWrapper(cause, "error inserting into %s", "posts")

	assert.Equal(t, "error inserting into posts: E11000 duplicate key", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, &errorx.Error{Code: errorx.CodeDatabase}))
}
