package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestProcessNameCacheMemoizes(t *testing.T) {
	var lookups atomic.Int32
	c, err := NewProcessNameCache(16, func(_ context.Context, pid int) (string, error) {
		lookups.Add(1)
		return "nginx", nil
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	assert.Equal(t, "nginx", c.Name(ctx, 42))
	assert.Equal(t, "nginx", c.Name(ctx, 42))
	assert.Equal(t, int32(1), lookups.Load())
}

func TestProcessNameCacheSystemAndFailures(t *testing.T) {
	var lookups atomic.Int32
	c, err := NewProcessNameCache(16, func(_ context.Context, pid int) (string, error) {
		lookups.Add(1)
		return "", errors.New("no such process")
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	assert.Equal(t, SystemProcessName, c.Name(ctx, 0))
	assert.Equal(t, "PID:99", c.Name(ctx, 99))
	assert.Equal(t, "PID:99", c.Name(ctx, 99))
	assert.Equal(t, int32(2), lookups.Load())
}

func TestParseStatComm(t *testing.T) {
	name, err := parseStatComm("1234 (tmux: server) S 1 1234 1234 0 -1 4194560")
	require.NoError(t, err)
	assert.Equal(t, "tmux: server", name)

	name, err = parseStatComm("77 (weird) name)) R 1")
	require.NoError(t, err)
	assert.Equal(t, "weird) name)", name)

	_, err = parseStatComm("garbage")
	assert.Error(t, err)
}
