package models

// MemoryPages classifies physical memory the way an activity monitor shows
// it: app (anonymous) memory, wired kernel memory and compressed pages count
// as used, reclaimable file cache does not.
type MemoryPages struct {
	AppBytes        uint64 `json:"app_bytes"`
	WiredBytes      uint64 `json:"wired_bytes"`
	CompressedBytes uint64 `json:"compressed_bytes"`
	TotalBytes      uint64 `json:"total_bytes"`
}

// UsedBytes returns app + wired + compressed, capped at TotalBytes.
func (m MemoryPages) UsedBytes() uint64 {
	used := m.AppBytes + m.WiredBytes + m.CompressedBytes
	if m.TotalBytes > 0 && used > m.TotalBytes {
		return m.TotalBytes
	}
	return used
}
