package workers

import (
	"chat-broker/domain"
	"context"
	"log/slog"
	"time"
)

type PresenceReporter interface {
	ReportPresence(ctx context.Context, counts map[domain.Channel]int, ttl time.Duration) error
}

// PresenceHeartbeatWorker pushes the local counts of this node to the cluster.
// A report expires after three intervals, so a crashed node fades out.
type PresenceHeartbeatWorker struct {
	log      *slog.Logger
	reporter PresenceReporter
	snapshot PresenceSnapshot
	interval time.Duration
}

func NewPresenceHeartbeatWorker(log *slog.Logger, reporter PresenceReporter,
	snapshot PresenceSnapshot, interval time.Duration) *PresenceHeartbeatWorker {
	return &PresenceHeartbeatWorker{log: log, reporter: reporter, snapshot: snapshot, interval: interval}
}

func (w *PresenceHeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.beat(ctx)
		}
	}
}

func (w *PresenceHeartbeatWorker) beat(ctx context.Context) {
	if err := w.reporter.ReportPresence(ctx, w.snapshot(), 3*w.interval); err != nil && ctx.Err() == nil {
		w.log.Warn("Presence heartbeat failed", "error", err)
	}
}
