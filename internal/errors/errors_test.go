package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainErrorMessage(t *testing.T) {
	cause := stderrors.New("connection reset")

	err := Transport("create job", cause)
	assert.Equal(t, "TRANSPORT: create job: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.NotEmpty(t, err.StackTrace())

	bare := Unauthorized("api key rejected", nil)
	assert.Equal(t, "UNAUTHORIZED: api key rejected", bare.Error())
	assert.NotEmpty(t, bare.StackTrace())
}

func TestIsTypeWalksWrappedChain(t *testing.T) {
	inner := Unauthorized("api key rejected", nil)
	outer := ResolutionFailed("resolve slug", inner)
	wrapped := fmt.Errorf("candidate jdoe: %w", outer)

	require.True(t, IsType(wrapped, ErrTypeResolutionFailed))
	require.True(t, IsType(wrapped, ErrTypeUnauthorized))
	require.False(t, IsType(wrapped, ErrTypeRateLimit))
	require.False(t, IsType(stderrors.New("plain"), ErrTypeInternal))
	require.False(t, IsType(nil, ErrTypeInternal))

	assert.Equal(t, ErrTypeResolutionFailed, TypeOf(wrapped))
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
}
