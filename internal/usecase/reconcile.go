package usecase

import (
	"context"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/constants"
	"github.com/AlenaMolokova/receiptbank/internal/models"
)

type SweepReport struct {
	Checked   int
	Completed int
	Failed    int
	Pending   int
	Errors    int
}

// Reconciler settles reservations whose payout result never arrived by asking
// the executor for the current status.
type Reconciler struct {
	ledger   *Ledger
	interval time.Duration
	batch    int
}

func NewReconciler(ledger *Ledger, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{ledger: ledger, interval: interval, batch: constants.DefaultListLimit}
}

func (r *Reconciler) Run(ctx context.Context) error {
	log := r.ledger.log
	log.Info().Dur("interval", r.interval).Msg("starting reservation reconciliation")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reservation reconciliation stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("reconciliation sweep failed")
			}
		}
	}
}

func (r *Reconciler) Sweep(ctx context.Context) (SweepReport, error) {
	l := r.ledger
	cutoff := l.now().Add(-l.cfg.ReservationTimeout)

	stale, err := l.store.ListStaleReservations(ctx, cutoff, r.batch)
	if err != nil {
		return SweepReport{}, err
	}

	var report SweepReport
	for _, w := range stale {
		if ctx.Err() != nil {
			break
		}
		report.Checked++
		log := l.log.With().Str("withdrawal_id", w.ID).Str("user_id", w.UserID).Logger()

		outcome, reason, err := l.executor.Status(ctx, w.ID)
		if err != nil {
			report.Errors++
			log.Warn().Err(err).Msg("failed to fetch payout status")
			continue
		}

		switch outcome {
		case models.PayoutPending:
			report.Pending++
			continue
		case models.PayoutSuccess:
			report.Completed++
		case models.PayoutFailure:
			report.Failed++
		}

		if _, err := l.HandlePayoutResult(ctx, w.ID, outcome, reason); err != nil {
			report.Errors++
			log.Error().Err(err).Msg("failed to settle stale reservation")
		}
	}

	if report.Checked > 0 {
		l.log.Info().
			Int("checked", report.Checked).
			Int("completed", report.Completed).
			Int("failed", report.Failed).
			Int("pending", report.Pending).
			Int("errors", report.Errors).
			Msg("reconciliation sweep finished")
	}
	return report, nil
}
