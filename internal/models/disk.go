package models

// DiskUsage is the capacity reading for one volume
type DiskUsage struct {
	Path       string `json:"path"`
	TotalBytes uint64 `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
	Filesystem string `json:"filesystem"`
}
