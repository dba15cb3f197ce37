package services

import (
	"strings"
	"sync"
	"time"

	"hostpulse/internal/history"
	"hostpulse/internal/models"
	"hostpulse/internal/rate"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"
)

// CounterReader reads the cumulative OS counters behind a SystemSnapshot.
type CounterReader interface {
	CPUTicks() ([]models.CPUTicks, error)
	Memory() (models.MemoryPages, error)
	Disk(path string) (models.DiskUsage, error)
	Interfaces() ([]models.InterfaceCounters, error)
}

// HostReader reads counters from the local host through gopsutil.
type HostReader struct{}

func (HostReader) CPUTicks() ([]models.CPUTicks, error) {
	times, err := cpu.Times(true)
	if err != nil {
		return nil, err
	}
	ticks := make([]models.CPUTicks, 0, len(times))
	for _, t := range times {
		ticks = append(ticks, models.CPUTicks{
			CPU:    t.CPU,
			User:   t.User,
			System: t.System,
			Idle:   t.Idle,
			Nice:   t.Nice,
		})
	}
	return ticks, nil
}

// Memory maps the platform report onto app/wired/compressed pages. gopsutil
// already excludes buffers and page cache from Used; compressed pages are
// not reported and stay 0.
func (HostReader) Memory() (models.MemoryPages, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return models.MemoryPages{}, err
	}
	pages := models.MemoryPages{TotalBytes: vm.Total, AppBytes: vm.Used}
	if vm.Wired <= vm.Used {
		pages.AppBytes = vm.Used - vm.Wired
		pages.WiredBytes = vm.Wired
	}
	return pages, nil
}

func (HostReader) Disk(path string) (models.DiskUsage, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return models.DiskUsage{}, err
	}
	return models.DiskUsage{
		Path:       path,
		TotalBytes: usage.Total,
		FreeBytes:  usage.Free,
		Filesystem: usage.Fstype,
	}, nil
}

func (HostReader) Interfaces() ([]models.InterfaceCounters, error) {
	counters, err := psnet.IOCounters(true)
	if err != nil {
		return nil, err
	}
	out := make([]models.InterfaceCounters, 0, len(counters))
	for _, c := range counters {
		out = append(out, models.InterfaceCounters{
			Interface: c.Name,
			BytesSent: c.BytesSent,
			BytesRecv: c.BytesRecv,
			ErrorsIn:  c.Errin,
			ErrorsOut: c.Errout,
		})
	}
	return out, nil
}

var virtualInterfacePrefixes = []string{"veth", "docker", "br-", "virbr", "utun", "awdl", "llw"}

// IsRealInterface reports whether an adapter carries host traffic: loopback
// and container/tunnel overlays are excluded so traffic is not double counted.
func IsRealInterface(name string) bool {
	if name == "" || name == "lo" || strings.HasPrefix(name, "lo0") {
		return false
	}
	for _, p := range virtualInterfacePrefixes {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	return true
}

// ResourceSampler turns counter readings into SystemSnapshots and keeps the
// chart series. Sample never fails: a sub-metric that cannot be read is
// reported as zero for that cycle.
type ResourceSampler struct {
	mu       sync.Mutex
	reader   CounterReader
	diskPath string
	logger   *zap.Logger
	now      func() time.Time

	prevTicks map[string]models.CPUTicks

	download rate.Tracker
	upload   rate.Tracker
	errors   rate.Tracker
	peakDown float64
	peakUp   float64

	cpuHistory     *history.Buffer[models.MetricSnapshot]
	memoryHistory  *history.Buffer[models.MetricSnapshot]
	networkHistory *history.Buffer[models.MetricSnapshot]
}

// NewResourceSampler builds a sampler reading the volume mounted at diskPath.
func NewResourceSampler(reader CounterReader, diskPath string, chartCapacity int, logger *zap.Logger) *ResourceSampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &ResourceSampler{
		reader:         reader,
		diskPath:       diskPath,
		logger:         logger.Named("sampler"),
		now:            time.Now,
		cpuHistory:     history.New[models.MetricSnapshot](chartCapacity),
		memoryHistory:  history.New[models.MetricSnapshot](chartCapacity),
		networkHistory: history.New[models.MetricSnapshot](chartCapacity),
	}
}

// Sample takes one reading of every resource metric.
func (s *ResourceSampler) Sample() models.SystemSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	snap := models.SystemSnapshot{Timestamp: now}

	snap.CPUUsagePercent = s.sampleCPU()
	s.sampleMemory(&snap)
	s.sampleDisk(&snap)
	s.sampleNetwork(&snap, now)

	s.cpuHistory.Push(models.MetricSnapshot{Timestamp: now, Value: snap.CPUUsagePercent})
	s.memoryHistory.Push(models.MetricSnapshot{Timestamp: now, Value: snap.MemoryUsagePercent})
	s.networkHistory.Push(models.MetricSnapshot{Timestamp: now, Value: snap.TotalBandwidthBps()})
	return snap
}

func (s *ResourceSampler) sampleCPU() float64 {
	ticks, err := s.reader.CPUTicks()
	if err != nil {
		s.logger.Warn("cpu ticks unavailable", zap.Error(err))
		return 0
	}

	var active, total float64
	prev := s.prevTicks
	s.prevTicks = make(map[string]models.CPUTicks, len(ticks))
	for _, t := range ticks {
		s.prevTicks[t.CPU] = t
		p, ok := prev[t.CPU]
		if !ok {
			continue
		}
		active += t.Active() - p.Active()
		total += t.Total() - p.Total()
	}
	if total <= 0 || active < 0 {
		return 0
	}
	return clampPercent(active / total * 100)
}

func (s *ResourceSampler) sampleMemory(snap *models.SystemSnapshot) {
	pages, err := s.reader.Memory()
	if err != nil {
		s.logger.Warn("memory counters unavailable", zap.Error(err))
		return
	}
	used := min(pages.UsedBytes(), pages.TotalBytes)
	snap.MemoryTotalBytes = pages.TotalBytes
	snap.MemoryUsedBytes = used
	snap.MemoryFreeBytes = pages.TotalBytes - used
	snap.MemoryUsagePercent = percentOf(used, pages.TotalBytes)
}

func (s *ResourceSampler) sampleDisk(snap *models.SystemSnapshot) {
	usage, err := s.reader.Disk(s.diskPath)
	if err != nil {
		s.logger.Warn("disk usage unavailable", zap.String("path", s.diskPath), zap.Error(err))
		return
	}
	free := min(usage.FreeBytes, usage.TotalBytes)
	snap.DiskTotalBytes = usage.TotalBytes
	snap.DiskUsedBytes = usage.TotalBytes - free
	snap.DiskUsagePercent = percentOf(snap.DiskUsedBytes, usage.TotalBytes)
}

func (s *ResourceSampler) sampleNetwork(snap *models.SystemSnapshot, now time.Time) {
	counters, err := s.reader.Interfaces()
	if err != nil {
		s.logger.Warn("interface counters unavailable", zap.Error(err))
		snap.PeakDownloadBps, snap.PeakUploadBps = s.peakDown, s.peakUp
		return
	}

	var recv, sent, errs uint64
	for _, c := range counters {
		if !IsRealInterface(c.Interface) {
			continue
		}
		recv += c.BytesRecv
		sent += c.BytesSent
		errs += c.ErrorsIn + c.ErrorsOut
	}

	snap.NetworkDownloadBps = s.download.Observe(recv, now)
	snap.NetworkUploadBps = s.upload.Observe(sent, now)
	snap.NetworkErrorsPerSec = s.errors.Observe(errs, now)
	s.peakDown = max(s.peakDown, snap.NetworkDownloadBps)
	s.peakUp = max(s.peakUp, snap.NetworkUploadBps)
	snap.PeakDownloadBps, snap.PeakUploadBps = s.peakDown, s.peakUp
}

// Histories returns copies of the chart series.
func (s *ResourceSampler) Histories() models.ChartHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.ChartHistory{
		CPU:     s.cpuHistory.Slice(0),
		Memory:  s.memoryHistory.Slice(0),
		Network: s.networkHistory.Slice(0),
	}
}

// ResizeHistory changes the chart window, keeping the newest samples.
func (s *ResourceSampler) ResizeHistory(capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cpuHistory.Resize(capacity)
	s.memoryHistory.Resize(capacity)
	s.networkHistory.Resize(capacity)
}

// SetDiskPath changes the volume reported on the next sample.
func (s *ResourceSampler) SetDiskPath(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path != "" {
		s.diskPath = path
	}
}

func percentOf(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return clampPercent(float64(part) / float64(whole) * 100)
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
