package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/campuspay/campuspay-api/internal/domain/payment"
	"github.com/campuspay/campuspay-api/internal/pkg/metrics"
)

// Summary counts what one reconciliation sweep did.
type Summary struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
	Open      int `json:"open"`
}

// ReconcileProcessing polls providers for payments that have sat in PENDING
// or PROCESSING for at least minAge. Each payment settles through the same
// path as a webhook, so a sweep racing a webhook applies at most once.
func (o *Orchestrator) ReconcileProcessing(ctx context.Context, minAge time.Duration, batch int) (*Summary, error) {
	if batch <= 0 {
		batch = 100
	}
	open, err := o.payments.ListOpen(ctx, o.clock.Now().Add(-minAge), batch)
	if err != nil {
		metrics.ReconcilerRuns.WithLabelValues("error").Inc()
		return nil, err
	}

	sum := &Summary{}
	for _, p := range open {
		if ctx.Err() != nil {
			break
		}
		sum.Checked++
		res, err := o.poll(ctx, p)
		if err != nil {
			sum.Errors++
			log.Warn().Err(err).Str("reference", p.Reference).Str("type", string(p.Type)).Msg("reconcile: status check failed")
			continue
		}
		if !res.changed {
			sum.Unchanged++
			continue
		}
		switch res.Payment.Status {
		case payment.StatusCompleted:
			sum.Completed++
		default:
			sum.Failed++
		}
	}

	if n, err := o.payments.CountOpen(ctx); err == nil {
		sum.Open = n
		metrics.OpenPayments.Set(float64(n))
	}
	metrics.ReconcilerRuns.WithLabelValues("ok").Inc()
	return sum, nil
}

// Reconciler runs ReconcileProcessing on an interval.
type Reconciler struct {
	orch     *Orchestrator
	interval time.Duration
	minAge   time.Duration
	batch    int
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewReconciler(orch *Orchestrator, interval, minAge time.Duration, batch int) *Reconciler {
	if interval == 0 {
		interval = time.Minute
	}
	return &Reconciler{
		orch:     orch,
		interval: interval,
		minAge:   minAge,
		batch:    batch,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background sweep
func (r *Reconciler) Start() {
	log.Info().Dur("interval", r.interval).Dur("min_age", r.minAge).Msg("Starting payment reconciler...")
	go r.loop()
}

// Stop waits for an in-flight sweep to finish
func (r *Reconciler) Stop() {
	log.Info().Msg("Stopping payment reconciler...")
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reconciler) loop() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Reconciler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	sum, err := r.orch.ReconcileProcessing(ctx, r.minAge, r.batch)
	if err != nil {
		log.Error().Err(err).Msg("Reconciliation sweep failed")
		return
	}
	if sum.Checked > 0 {
		log.Info().Int("checked", sum.Checked).Int("completed", sum.Completed).Int("failed", sum.Failed).
			Int("errors", sum.Errors).Int("open", sum.Open).Msg("Reconciliation sweep finished")
	}
}
