// Package observability aggregates runtime counters for the debug endpoint.
package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is the point-in-time view served by the debug endpoint.
type Stats struct {
	RoomsLive          int     `json:"rooms_live"`
	ParticipantsOnline int     `json:"participants_online"`
	MessagesPerSecond  float64 `json:"messages_per_second"`
	MessagesTotal      uint64  `json:"messages_total"`
	CommandsRejected   uint64  `json:"commands_rejected"`
	EventsDelivered    uint64  `json:"events_delivered"`
	EventsDropped      uint64  `json:"events_dropped"`
	CensoredHits       uint64  `json:"censored_hits"`
	AllocMemMb         uint64  `json:"alloc_mem_mb"`
	ProcessRssMb       uint64  `json:"process_rss_mb"`
	ProcessCPUPercent  float64 `json:"process_cpu_percent"`
	NumGC              uint32  `json:"num_gc"`
}

// GaugeSource supplies the live gauges the monitor cannot count itself.
type GaugeSource interface {
	RoomsLive() int
	ParticipantsOnline() int
}

// Monitor collects atomic counters from the hot path and folds them into
// Stats once per interval. Counter increments never block.
type Monitor struct {
	log    *slog.Logger
	mu     sync.RWMutex
	latest Stats
	gauges GaugeSource

	messagesTotal    uint64
	messagesInterval uint64
	commandsRejected uint64
	eventsDelivered  uint64
	eventsDropped    uint64
	censoredHits     uint64
	lastCheck        time.Time

	proc *process.Process
}

func NewMonitor(log *slog.Logger) *Monitor {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
	}
	return &Monitor{log: log, lastCheck: time.Now(), proc: proc}
}

// SetGaugeSource wires the registry in after construction; the registry
// itself needs the monitor first.
func (m *Monitor) SetGaugeSource(gauges GaugeSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges = gauges
}

func (m *Monitor) IncrMessages() {
	atomic.AddUint64(&m.messagesTotal, 1)
	atomic.AddUint64(&m.messagesInterval, 1)
}

func (m *Monitor) IncrRejected() {
	atomic.AddUint64(&m.commandsRejected, 1)
}

func (m *Monitor) IncrDelivered() {
	atomic.AddUint64(&m.eventsDelivered, 1)
}

func (m *Monitor) IncrDropped() {
	atomic.AddUint64(&m.eventsDropped, 1)
}

func (m *Monitor) AddCensoredHits(n int) {
	if n > 0 {
		atomic.AddUint64(&m.censoredHits, uint64(n))
	}
}

// Stats returns the latest folded snapshot.
func (m *Monitor) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Run folds counters into the snapshot every interval until the context is
// canceled. It satisfies contract.Worker and runs under the supervisor.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("Stopping monitor")
			return ctx.Err()
		case <-ticker.C:
			m.fold()
		}
	}
}

func (m *Monitor) fold() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(m.lastCheck).Seconds()
	m.lastCheck = now

	stats := Stats{
		MessagesTotal:    atomic.LoadUint64(&m.messagesTotal),
		CommandsRejected: atomic.LoadUint64(&m.commandsRejected),
		EventsDelivered:  atomic.LoadUint64(&m.eventsDelivered),
		EventsDropped:    atomic.LoadUint64(&m.eventsDropped),
		CensoredHits:     atomic.LoadUint64(&m.censoredHits),
	}

	if elapsed > 0 {
		interval := atomic.SwapUint64(&m.messagesInterval, 0)
		stats.MessagesPerSecond = float64(interval) / elapsed
	}

	if m.gauges != nil {
		stats.RoomsLive = m.gauges.RoomsLive()
		stats.ParticipantsOnline = m.gauges.ParticipantsOnline()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.AllocMemMb = mem.Alloc / 1024 / 1024
	stats.NumGC = mem.NumGC

	if m.proc != nil {
		if info, err := m.proc.MemoryInfo(); err == nil {
			stats.ProcessRssMb = info.RSS / 1024 / 1024
		}
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats.ProcessCPUPercent = cpu
		}
	}

	m.latest = stats
}
