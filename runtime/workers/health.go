package workers

import (
	"chat-broker/domain"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// PresenceSnapshot returns the local subscriber count of every channel.
type PresenceSnapshot func() map[domain.Channel]int

// HealthMonitoringWorker periodically logs the broker process usage next to
// the number of live subscribers per channel.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	snapshot       PresenceSnapshot
	metricInterval time.Duration
	pid            int32
}

func NewHealthMonitoringWorker(log *slog.Logger, snapshot PresenceSnapshot,
	metricInterval time.Duration) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		snapshot:       snapshot,
		metricInterval: metricInterval,
		pid:            int32(os.Getpid()),
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(w.pid)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *HealthMonitoringWorker) report(p *process.Process) {
	attrs := []any{"pid", w.pid}
	if cpu, err := p.CPUPercent(); err == nil {
		attrs = append(attrs, "cpu_percent", cpu)
	} else {
		w.log.Debug("Error while finding process cpu usage", "error", err)
	}
	if ram, err := p.MemoryPercent(); err == nil {
		attrs = append(attrs, "ram_percent", ram)
	} else {
		w.log.Debug("Error while finding process ram usage", "error", err)
	}
	total := 0
	for channel, count := range w.snapshot() {
		attrs = append(attrs, "online_"+string(channel), count)
		total += count
	}
	attrs = append(attrs, "online_total", total)
	w.log.Info("Broker health", attrs...)
}
