package services

import (
	"context"
	"slices"
	"time"

	"hostpulse/internal/models"
	"hostpulse/internal/rate"

	"go.uber.org/zap"
)

// TopProcessLimit caps ConnectionStats.TopProcesses.
const TopProcessLimit = 5

// ConnectionEnumerator produces a fresh ConnectionSet per poll.
type ConnectionEnumerator struct {
	source ConnectionSource
	names  *ProcessNameCache
	logger *zap.Logger
	now    func() time.Time
}

func NewConnectionEnumerator(source ConnectionSource, names *ProcessNameCache, logger *zap.Logger) *ConnectionEnumerator {
	return &ConnectionEnumerator{
		source: source,
		names:  names,
		logger: logger.Named("connections"),
		now:    time.Now,
	}
}

// Enumerate lists TCP then UDP sockets. A protocol whose listing fails
// contributes nothing; an empty set is a valid result.
func (e *ConnectionEnumerator) Enumerate(ctx context.Context) models.ConnectionSet {
	now := e.now()
	set := models.ConnectionSet{CollectedAt: now, Connections: []models.Connection{}}

	for _, proto := range []models.Protocol{models.ProtocolTCP, models.ProtocolUDP} {
		rows, err := e.source.Rows(ctx, proto)
		if err != nil {
			e.logger.Warn("connection listing failed", zap.String("protocol", string(proto)), zap.Error(err))
			continue
		}
		for _, r := range rows {
			set.Connections = append(set.Connections, models.Connection{
				ProcessName:   e.names.Name(ctx, r.PID),
				ProcessID:     r.PID,
				LocalAddress:  r.LocalAddress,
				LocalPort:     r.LocalPort,
				RemoteAddress: r.RemoteAddress,
				RemotePort:    r.RemotePort,
				Protocol:      r.Protocol,
				State:         r.State,
				BytesReceived: r.BytesReceived,
				BytesSent:     r.BytesSent,
				ObservedAt:    now,
			})
		}
	}

	e.logger.Debug("connections enumerated", zap.Int("count", set.Len()))
	return set
}

// Stats aggregates cur. The byte rate is measured against prev; when the
// two are too close together prev's rate is carried forward.
func (e *ConnectionEnumerator) Stats(prev models.ConnectionStats, cur models.ConnectionSet) models.ConnectionStats {
	return ComputeConnectionStats(prev, cur)
}

// ComputeConnectionStats is the pure aggregation behind Stats.
func ComputeConnectionStats(prev models.ConnectionStats, cur models.ConnectionSet) models.ConnectionStats {
	stats := models.ConnectionStats{
		ActiveConnections: cur.Len(),
		ComputedAt:        cur.CollectedAt,
		TopProcesses:      topProcesses(cur.Connections, TopProcessLimit),
	}
	for _, c := range cur.Connections {
		stats.TotalBytes += c.TotalBytes()
	}

	if !prev.ComputedAt.IsZero() {
		if bps, ok := rate.Compute(prev.TotalBytes, prev.ComputedAt, stats.TotalBytes, stats.ComputedAt); ok {
			stats.BytesPerSecond = max(bps, 0)
		} else {
			stats.BytesPerSecond = prev.BytesPerSecond
		}
	}
	return stats
}

// topProcesses groups connections by process and returns the limit
// heaviest by combined bytes. Ties keep encounter order.
func topProcesses(conns []models.Connection, limit int) []models.ProcessTraffic {
	type key struct {
		pid  int
		name string
	}
	index := make(map[key]int)
	var procs []models.ProcessTraffic
	for _, c := range conns {
		k := key{c.ProcessID, c.ProcessName}
		i, ok := index[k]
		if !ok {
			i = len(procs)
			index[k] = i
			procs = append(procs, models.ProcessTraffic{ProcessName: c.ProcessName, ProcessID: c.ProcessID})
		}
		procs[i].Bytes += c.TotalBytes()
		procs[i].Connections++
	}

	slices.SortStableFunc(procs, func(a, b models.ProcessTraffic) int {
		switch {
		case a.Bytes > b.Bytes:
			return -1
		case a.Bytes < b.Bytes:
			return 1
		}
		return 0
	})
	if len(procs) > limit {
		procs = procs[:limit]
	}
	if procs == nil {
		procs = []models.ProcessTraffic{}
	}
	return procs
}
