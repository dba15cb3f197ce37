package logging

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	l, err := New(Options{Level: "debug", Development: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1))

	l, err = New(Options{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(0))

	_, err = New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Dir: dir})
	require.NoError(t, err)
	l.Info("hello")
	_ = l.Sync()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
