// Package audit journals ledger transactions to durable storage and
// replays them into a fresh ledger on start.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fastprodman/rewardsledger/internal/infra/metrics"
	"github.com/fastprodman/rewardsledger/internal/repos/transactions"
	"github.com/fastprodman/rewardsledger/internal/services/ledger"
)

const defaultRetryInterval = 2 * time.Second

// Recorder queues TransactionRecorded events without blocking the ledger
// and appends them to the journal, in ledger order, from Run.
type Recorder struct {
	journal Journal
	logger  *slog.Logger
	retry   time.Duration

	mu      sync.Mutex
	pending []ledger.Transaction

	flushMu  sync.Mutex
	wake     chan struct{}
	diverged map[string]bool // guarded by flushMu
}

func NewRecorder(j Journal, retry time.Duration, logger *slog.Logger) *Recorder {
	if retry <= 0 {
		retry = defaultRetryInterval
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		journal: j,
		logger:  logger,
		retry:    retry,
		wake:     make(chan struct{}, 1),
		diverged: make(map[string]bool),
	}
}

// Observe is a ledger subscriber. It never blocks.
func (r *Recorder) Observe(ev ledger.TransactionRecorded) {
	r.mu.Lock()
	r.pending = append(r.pending, ev.Transaction)
	n := len(r.pending)
	r.mu.Unlock()

	metrics.JournalBacklog.Set(float64(n))

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of transactions not yet journaled.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}

// Run drains the queue until ctx is done. Failed writes are retried after
// the retry interval, or sooner when a new event arrives. Run returns nil
// on cancellation; anything still queued is left for Flush.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.Info("audit recorder started", "retry_interval", r.retry.String())

	for {
		var next <-chan time.Time

		err := r.Flush(ctx)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("audit recorder stopped", "pending", r.Pending())

				return nil
			}

			r.logger.Warn("journal flush failed, will retry", "error", err, "pending", r.Pending())

			next = time.After(r.retry)
		}

		select {
		case <-ctx.Done():
			r.logger.Info("audit recorder stopped", "pending", r.Pending())

			return nil
		case <-r.wake:
		case <-next:
		}
	}
}

// Flush appends every queued transaction in order. It stops at the first
// retryable failure and keeps that transaction and the rest queued.
//
// A balance mismatch marks the account diverged: its journaled balance no
// longer follows the ledger, so later transactions for it are skipped
// until the process restarts and replays the journal.
func (r *Recorder) Flush(ctx context.Context) error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	for i, txn := range batch {
		if r.diverged[txn.AccountID] {
			metrics.JournalWrites.WithLabelValues("diverged").Inc()
			r.logger.Warn("skipping transaction for diverged account",
				"transaction_id", txn.ID,
				"account_id", txn.AccountID,
			)

			continue
		}

		err := r.journal.Append(ctx, txn)

		switch {
		case err == nil:
			metrics.JournalWrites.WithLabelValues("ok").Inc()
		case errors.Is(err, transactions.ErrDuplicateTransaction):
			metrics.JournalWrites.WithLabelValues("duplicate").Inc()
			r.logger.Debug("transaction already journaled", "transaction_id", txn.ID)
		case errors.Is(err, ErrBalanceMismatch):
			// Retrying cannot fix a diverged projection.
			metrics.JournalWrites.WithLabelValues("mismatch").Inc()
			r.diverged[txn.AccountID] = true
			r.logger.Error("dropping transaction that does not match the journal",
				"transaction_id", txn.ID,
				"account_id", txn.AccountID,
				"error", err,
			)
		default:
			metrics.JournalWrites.WithLabelValues("error").Inc()
			r.requeue(batch[i:])

			return fmt.Errorf("append %s: %w", txn.ID, err)
		}
	}

	metrics.JournalBacklog.Set(float64(r.Pending()))

	return nil
}

// Diverged returns the accounts whose journal stopped following the ledger,
// sorted by id.
func (r *Recorder) Diverged() []string {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	out := make([]string, 0, len(r.diverged))
	for id := range r.diverged {
		out = append(out, id)
	}

	slices.Sort(out)

	return out
}

func (r *Recorder) requeue(rest []ledger.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(append([]ledger.Transaction(nil), rest...), r.pending...)
	metrics.JournalBacklog.Set(float64(len(r.pending)))
}

// Replay loads the journal into l, which must be empty, and checks that
// every replayed balance agrees with the journaled projection.
func Replay(ctx context.Context, j Journal, l *ledger.Ledger) (int, error) {
	txns, err := j.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("replay: %w", err)
	}

	err = l.Restore(txns)
	if err != nil {
		return 0, fmt.Errorf("replay: %w", err)
	}

	for _, acct := range l.Accounts() {
		journaled, err := j.JournaledBalance(ctx, acct.ID)
		if err != nil {
			return 0, fmt.Errorf("replay account %s: %w", acct.ID, err)
		}

		if journaled != acct.Balance {
			return 0, fmt.Errorf("replay account %s: journaled %d, replayed %d: %w",
				acct.ID, journaled, acct.Balance, ErrBalanceMismatch)
		}
	}

	return len(txns), nil
}
