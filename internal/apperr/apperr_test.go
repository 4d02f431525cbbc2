package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	e := New(InvalidArgument, "bad id")
	assert.Equal(t, "invalid_argument: bad id", e.Error())

	cause := errors.New("boom")
	wrapped := Wrap(IO, "read config", cause)
	assert.Equal(t, "io: read config: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Internal, KindOf(nil))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))

	e := New(Conflict, "id already set")
	assert.Equal(t, Conflict, KindOf(e))

	fwrap := errors.New("outer: " + e.Error())
	assert.Equal(t, Internal, KindOf(fwrap))
}

func TestErrno(t *testing.T) {
	cases := map[Kind]int{
		InvalidArgument:     -22,
		PreconditionFailed:  -1,
		Conflict:            -16,
		NotFound:            -2,
		IO:                  -5,
		OutOfMemory:         -12,
		LineTooLong:         -36,
		MalformedRule:       -22,
		Backend:             -71,
		Internal:            -1,
	}
	for kind, want := range cases {
		require.Equal(t, want, kind.Errno(), "kind %v", kind)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "invalid_argument", InvalidArgument.String())
	assert.Equal(t, "internal", Kind(999).String())
}
