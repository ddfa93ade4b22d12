// Package reactorstats periodically logs the I/O reactor's CPU and
// memory footprint (SPEC_FULL.md §4.7), the one piece of observability
// this engine carries despite having no HTTP/API surface to expose it
// through.
//
// Grounded on the teacher's internal/api/handlers/health.go Stats
// handler: mem.VirtualMemory() and cpu.Percent() sampled on request.
// Adapted from "render these numbers into a JSON response on demand"
// to "log these numbers on an interval", since this engine is a
// library with no REST façade (see SPEC_FULL.md §10 dropped
// dependencies: gin/swaggo are not wired in for exactly this reason).
package reactorstats

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/hagenberger/doip-client/internal/logging"
)

// Interval is how often the monitor samples and logs.
const Interval = 30 * time.Second

// Monitor periodically logs process/system health at Interval.
type Monitor struct {
	log *slog.Logger
}

// New builds a Monitor.
func New(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{log: logging.Component(logger, "reactor")}
}

// Start runs the sampling loop in its own goroutine until ctx is
// cancelled.
func (m *Monitor) Start(ctx context.Context) {
	go m.loop(ctx)
}

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	fields := []any{"num_goroutine", runtime.NumGoroutine(), "num_cpu", runtime.NumCPU()}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		fields = append(fields, "mem_used_percent", vmStat.UsedPercent, "mem_used_mb", float64(vmStat.Used)/1024/1024)
	}
	if cpuPercent, err := cpu.Percent(200*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		fields = append(fields, "cpu_used_percent", cpuPercent[0])
	}

	m.log.Info("reactor health", fields...)
}
