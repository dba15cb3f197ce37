package models

import "time"

// ConnectionStats is derived from a ConnectionSet plus the previous aggregate.
type ConnectionStats struct {
	TotalBytes        uint64           `json:"total_bytes"`
	BytesPerSecond    float64          `json:"bytes_per_second"`
	ActiveConnections int              `json:"active_connections"`
	TopProcesses      []ProcessTraffic `json:"top_processes"`
	ComputedAt        time.Time        `json:"computed_at"`
}
