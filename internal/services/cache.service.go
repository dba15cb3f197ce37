package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/dgraph-io/ristretto"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// SystemProcessName labels PID 0.
const SystemProcessName = "System"

// NameLookupFunc resolves the executable name of a running process.
type NameLookupFunc func(ctx context.Context, pid int) (string, error)

// ProcessNameCache memoizes PID to process name resolution. Entries are
// never invalidated; a reused PID may show the previous owner's name until
// it is evicted. Safe for concurrent use.
type ProcessNameCache struct {
	cache  *ristretto.Cache
	lookup NameLookupFunc
	logger *zap.Logger
}

// NewProcessNameCache builds a cache holding up to capacity names.
// A nil lookup uses the platform resolver.
func NewProcessNameCache(capacity int, lookup NameLookupFunc, logger *zap.Logger) (*ProcessNameCache, error) {
	if capacity < 1 {
		capacity = 1
	}
	if lookup == nil {
		lookup = LookupProcessName
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        int64(capacity) * 10,
		MaxCost:            int64(capacity),
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize process name cache: %w", err)
	}
	return &ProcessNameCache{cache: cache, lookup: lookup, logger: logger.Named("procnames")}, nil
}

// Name returns the process name for pid. Failed lookups return "PID:<n>"
// and are retried next time.
func (c *ProcessNameCache) Name(ctx context.Context, pid int) string {
	if pid == 0 {
		return SystemProcessName
	}
	if v, ok := c.cache.Get(pid); ok {
		return v.(string)
	}

	name, err := c.lookup(ctx, pid)
	if err != nil || name == "" {
		c.logger.Debug("process lookup failed", zap.Int("pid", pid), zap.Error(err))
		return fmt.Sprintf("PID:%d", pid)
	}
	c.cache.Set(pid, name, 1)
	c.cache.Wait()
	return name
}

// Close releases the cache's background goroutines.
func (c *ProcessNameCache) Close() {
	c.cache.Close()
}

// LookupProcessName reads /proc/<pid>/stat on Linux and asks gopsutil
// everywhere else.
func LookupProcessName(ctx context.Context, pid int) (string, error) {
	if runtime.GOOS == "linux" {
		data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
		if err == nil {
			return parseStatComm(string(data))
		}
	}
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return "", err
	}
	return p.NameWithContext(ctx)
}

// parseStatComm extracts the comm field of a /proc/[pid]/stat line. The
// name may itself contain spaces and parentheses, so it spans from the
// first '(' to the last ')'.
func parseStatComm(statLine string) (string, error) {
	start := strings.Index(statLine, "(")
	end := strings.LastIndex(statLine, ")")
	if start == -1 || end <= start {
		return "", fmt.Errorf("invalid stat format")
	}
	return statLine[start+1 : end], nil
}
