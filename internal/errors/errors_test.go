package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsCode(t *testing.T) {
	base := ConfigInvalid("BMD_BMR must lie in (0, 1)")
	wrapped := Wrapf(base, "loading %s", "engine")

	assert.Equal(t, CodeConfigInvalid, GetCode(wrapped))
	assert.Equal(t, "loading engine: BMD_BMR must lie in (0, 1)", wrapped.Error())
	assert.True(t, stderrors.Is(wrapped, base))
}

func TestWrap_PlainError(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(cause, "write summary")
	assert.Equal(t, CodeInternalError, GetCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestWithCode(t *testing.T) {
	cause := stderrors.New("unknown model hill")
	err := WithCode(CodeInvalidInput, cause)
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "UNKNOWN", GetCode(cause))
}

func TestConstructors(t *testing.T) {
	cause := stderrors.New("no such file")
	assert.Equal(t, CodeIOError, IOError("in.csv", cause).Code)
	assert.ErrorIs(t, IOError("in.csv", cause), cause)
	assert.Equal(t, CodeDatabaseError, DatabaseError("insert", cause).Code)
	assert.Equal(t, "unit C1/MO24 not found", NotFound("unit C1/MO24").Error())
}
