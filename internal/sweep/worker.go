// Package sweep polls for pending transactions whose callback never arrived
// and flags them for manual review. It never completes or fails a
// transaction on its own; a late callback can still settle a flagged row.
package sweep

import (
	"context"
	"time"

	"rentledger/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

// Notifier is satisfied by notify.Dispatcher.
type Notifier interface {
	StalePending(landlordID int64, amount int, reference string)
}

type Worker struct {
	trx       repositories.TransactionRepository
	notifier  Notifier
	pollEvery time.Duration
	staleAge  time.Duration
	batch     int
}

func NewWorker(trx repositories.TransactionRepository, notifier Notifier, pollEvery, staleAge time.Duration) *Worker {
	return &Worker{trx: trx, notifier: notifier, pollEvery: pollEvery, staleAge: staleAge, batch: 50}
}

func (w *Worker) Run(ctx context.Context) {
	log.Info().Dur("poll_every", w.pollEvery).Dur("stale_age", w.staleAge).
		Msg("sweep worker: started")
	t := time.NewTicker(w.pollEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sweep worker: stopping")
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAge)
	rows, err := w.trx.FindStalePending(ctx, cutoff, w.batch)
	if err != nil {
		log.Error().Err(err).Msg("sweep: fetch stale pending failed")
		return
	}
	for _, t := range rows {
		// Flag first so a crash between flag and notify costs at most one
		// notification, never a duplicate flag.
		if err := w.trx.MarkSweepFlagged(ctx, t.ID); err != nil {
			log.Error().Err(err).Int64("transaction_id", t.ID).Msg("sweep: flag failed")
			continue
		}
		w.notifier.StalePending(t.LandlordID, t.Amount, t.Reference())
		log.Warn().Int64("transaction_id", t.ID).Str("reference", t.Reference()).
			Time("created_at", t.CreatedAt).Msg("pending transaction flagged stale")
	}
}
