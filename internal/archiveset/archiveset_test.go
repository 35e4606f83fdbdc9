package archiveset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCachesByProjectSlug(t *testing.T) {
	s := New(t.TempDir())

	a1, err := s.Open("widget-api")
	require.NoError(t, err)
	a2, err := s.Open("widget-api")
	require.NoError(t, err)

	assert.Same(t, a1, a2, "repeated Open for the same slug must return the cached archive")
}

func TestOpenDistinguishesProjects(t *testing.T) {
	s := New(t.TempDir())

	a1, err := s.Open("widget-api")
	require.NoError(t, err)
	a2, err := s.Open("other-service")
	require.NoError(t, err)

	assert.NotSame(t, a1, a2)
}
