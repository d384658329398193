package metrics

import (
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	// ProcessRSS is the resident memory of the process at the last sample.
	ProcessRSS = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geovec_process_rss_bytes",
		Help: "Resident set size at the last resource sample",
	})

	// ProcessCPU is the CPU used since the monitor started, in percent of
	// one core.
	ProcessCPU = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geovec_process_cpu_percent",
		Help: "CPU used since the resource monitor started",
	})
)

// ResourceUsage is one sample of the process.
type ResourceUsage struct {
	CPUPercent float64
	MemoryRSS  uint64
	Goroutines int
}

// ResourceMonitor samples CPU and memory of the current process.
type ResourceMonitor struct {
	proc         *process.Process
	startCPUTime float64
	start        time.Time
}

// NewResourceMonitor starts measuring CPU time from now.
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	m := &ResourceMonitor{proc: proc, start: time.Now()}
	if times, err := proc.Times(); err == nil {
		m.startCPUTime = times.User + times.System
	}
	return m, nil
}

// Sample reads the current usage and updates the process gauges. Fields
// that cannot be read are left zero.
func (m *ResourceMonitor) Sample() ResourceUsage {
	usage := ResourceUsage{Goroutines: runtime.NumGoroutine()}
	if times, err := m.proc.Times(); err == nil {
		if elapsed := time.Since(m.start).Seconds(); elapsed > 0 {
			usage.CPUPercent = (times.User + times.System - m.startCPUTime) / elapsed * 100
		}
	}
	if mem, err := m.proc.MemoryInfo(); err == nil {
		usage.MemoryRSS = mem.RSS
	}
	ProcessRSS.Set(float64(usage.MemoryRSS))
	ProcessCPU.Set(usage.CPUPercent)
	return usage
}
