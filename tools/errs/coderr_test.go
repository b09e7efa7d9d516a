package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, 0, CodeOf(nil))
	assert.Equal(t, ServerInternalError, CodeOf(errors.New("plain")))
	assert.Equal(t, ValidationError, CodeOf(ErrValidation.Wrap()))
	assert.Equal(t, NotFound, CodeOf(ErrNotFound.WrapMsg("conversation", "id", "c1")))
}

func TestWrapMsgDetail(t *testing.T) {
	err := ErrValidation.WrapMsg("text is empty", "sender", "u1")

	var ce CodeError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "text is empty, sender=u1", ce.Detail)
	assert.Equal(t, "1001 ValidationError text is empty, sender=u1", ce.Error())
	// the sentinel itself is untouched
	assert.Empty(t, ErrValidation.Detail)
}

func TestCauseKeepsUnderlyingError(t *testing.T) {
	root := errors.New("connection refused")
	err := ErrStorage.Cause(root, "insert message")

	assert.True(t, Is(err, StorageError))
	assert.True(t, errors.Is(err, root))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, ErrStorage.Cause(nil, "noop"))
}

func TestPanicToError(t *testing.T) {
	assert.Nil(t, ErrPanic(nil))
	err := ErrPanic("boom")
	assert.True(t, Is(err, ServerInternalError))
	assert.Contains(t, err.Error(), "panic: boom")
}
