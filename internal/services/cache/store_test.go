package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGet(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	defer s.Close()

	_, ok := s.Get("vision:abc")
	assert.False(t, ok)

	require.NoError(t, s.Set("vision:abc", "| a | b |\n|---|---|\n"))

	value, ok := s.Get("vision:abc")
	require.True(t, ok)
	assert.Equal(t, "| a | b |\n|---|---|\n", value)
}
