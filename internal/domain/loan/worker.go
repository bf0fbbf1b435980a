package loan

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Worker periodically moves overdue loans to DEFAULTED.
type Worker struct {
	svc      *Service
	interval time.Duration
	stopCh   chan struct{}
}

func NewWorker(svc *Service, interval time.Duration) *Worker {
	if interval == 0 {
		interval = time.Hour
	}
	return &Worker{
		svc:      svc,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep
func (w *Worker) Start() {
	log.Info().Dur("interval", w.interval).Msg("Starting loan default worker...")
	go w.loop()
}

// Stop gracefully stops the background sweep
func (w *Worker) Stop() {
	log.Info().Msg("Stopping loan default worker...")
	close(w.stopCh)
}

func (w *Worker) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	w.sweep()

	for {
		select {
		case <-ticker.C:
			w.sweep()
		case <-w.stopCh:
			return
		}
	}
}

func (w *Worker) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := w.svc.SweepDefaults(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to mark overdue loans")
		return
	}
	if count > 0 {
		log.Info().Int("count", count).Msg("Marked overdue loans as defaulted")
	}
}
