package models

import "time"

// SystemSnapshot is one immutable reading of every resource metric taken in
// a single sampling cycle.
type SystemSnapshot struct {
	Timestamp           time.Time `json:"timestamp"`
	CPUUsagePercent     float64   `json:"cpu_usage_percent"`
	MemoryUsedBytes     uint64    `json:"memory_used_bytes"`
	MemoryFreeBytes     uint64    `json:"memory_free_bytes"`
	MemoryTotalBytes    uint64    `json:"memory_total_bytes"`
	MemoryUsagePercent  float64   `json:"memory_usage_percent"`
	DiskUsedBytes       uint64    `json:"disk_used_bytes"`
	DiskTotalBytes      uint64    `json:"disk_total_bytes"`
	DiskUsagePercent    float64   `json:"disk_usage_percent"`
	NetworkDownloadBps  float64   `json:"network_download_bps"`
	NetworkUploadBps    float64   `json:"network_upload_bps"`
	NetworkErrorsPerSec float64   `json:"network_errors_per_sec"`
	PeakDownloadBps     float64   `json:"peak_download_bps"`
	PeakUploadBps       float64   `json:"peak_upload_bps"`
}

// TotalBandwidthBps returns combined download and upload throughput.
func (s SystemSnapshot) TotalBandwidthBps() float64 {
	return s.NetworkDownloadBps + s.NetworkUploadBps
}
