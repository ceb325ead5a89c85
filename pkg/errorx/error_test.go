package errorx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMatchesByCode(t *testing.T) {
	err := New(NotFound, "post %d not found", 7)
	require.True(t, errors.Is(err, ErrNotFound))
	require.False(t, errors.Is(err, ErrConflict))
	require.Equal(t, "post 7 not found", err.Error())

	wrapped := fmt.Errorf("like: %w", err)
	require.True(t, errors.Is(wrapped, ErrNotFound))
	require.Equal(t, NotFound, CodeOf(wrapped))
}

func TestCodeOfPlainError(t *testing.T) {
	require.Equal(t, Internal, CodeOf(errors.New("boom")))
	require.Equal(t, Internal, CodeOf(nil))
}
