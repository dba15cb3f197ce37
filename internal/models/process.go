package models

// ProcessTraffic is the per-process byte total used for top talkers.
type ProcessTraffic struct {
	ProcessName string `json:"process_name"`
	ProcessID   int    `json:"process_id"`
	Bytes       uint64 `json:"bytes"`
	Connections int    `json:"connections"`
}
