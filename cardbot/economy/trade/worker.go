package trade

import (
	"context"
	"log/slog"
	"time"
)

// ExpiryWorker periodically marks overdue proposals as expired. The window
// is a bounded wait on a human response and holds no locks; a late Accept
// that races the worker fails inside the accept transaction instead.
type ExpiryWorker struct {
	coordinator *Coordinator
	interval    time.Duration
	shutdown    chan struct{}
}

func NewExpiryWorker(coordinator *Coordinator, interval time.Duration) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiryWorker{
		coordinator: coordinator,
		interval:    interval,
		shutdown:    make(chan struct{}),
	}
}

func (w *ExpiryWorker) Start() {
	go w.run()
}

func (w *ExpiryWorker) Stop() {
	close(w.shutdown)
}

func (w *ExpiryWorker) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			expired, err := w.coordinator.ExpireOverdue(ctx)
			cancel()
			if err != nil {
				slog.Error("Failed to expire trades", slog.Any("error", err))
				continue
			}
			if expired > 0 {
				slog.Info("Expired overdue trades", slog.Int64("count", expired))
			}
		case <-w.shutdown:
			return
		}
	}
}
