// sync.go - Ledger synchronisation for a wallet.
//
// A sync cycle reads the chain head, replays every transfer in
// [next_block, head] in bounded windows and only then advances the saved
// cursor. A cycle that fails halfway rewinds the wallet's note counter and
// nullifier map and is repeated from the old cursor; receiving a note at a
// given tree address and marking a nullifier are idempotent.

package wallet

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"zklay/internal/ledger"
	"zklay/internal/metrics"
)

// Status of a Syncer.
type Status int32

const (
	Idle Status = iota
	Syncing
)

func (s Status) String() string {
	if s == Syncing {
		return "syncing"
	}
	return "idle"
}

// Result summarises one sync cycle.
type Result struct {
	From, To uint64
	Received int
	Spent    int
}

// Syncer drives a Wallet from a ledger Source.
type Syncer struct {
	source    ledger.Source
	wallet    *Wallet
	batchSize uint64
	status    atomic.Int32
	log       *zap.Logger
	metrics   *metrics.Metrics
}

// NewSyncer returns a syncer reading batchSize blocks per Events call.
func NewSyncer(source ledger.Source, w *Wallet, batchSize uint64, log *zap.Logger, m *metrics.Metrics) *Syncer {
	if batchSize == 0 {
		batchSize = ledger.DefaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{
		source:    source,
		wallet:    w,
		batchSize: batchSize,
		log:       log.With(zap.String("wallet", w.Username())),
		metrics:   m,
	}
}

func (s *Syncer) Status() Status { return Status(s.status.Load()) }

// Sync runs one cycle. Concurrent calls on the same syncer are rejected.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	if !s.status.CompareAndSwap(int32(Idle), int32(Syncing)) {
		return nil, errors.New("sync already in progress")
	}
	defer s.status.Store(int32(Idle))

	start := time.Now()
	head, err := s.source.Head(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read chain head")
	}
	res := &Result{From: s.wallet.NextBlock(), To: head}
	if head < res.From {
		s.log.Debug("wallet up to date", zap.Uint64("next_block", res.From), zap.Uint64("head", head))
		return res, nil
	}

	// a failed cycle leaves stored notes behind but rewinds the counters, so
	// the retry writes them again at the same tree addresses
	cp := s.wallet.checkpoint()
	fail := func(err error) (*Result, error) {
		s.wallet.rollback(cp)
		return nil, err
	}

	for from := res.From; from <= head; from += s.batchSize {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		to := from + s.batchSize - 1
		if to > head {
			to = head
		}
		events, err := s.source.Events(ctx, from, to)
		if err != nil {
			return fail(errors.Wrapf(err, "read events [%d, %d]", from, to))
		}
		for _, ev := range events {
			res.Received += len(s.wallet.ReceiveNotes(ev.Outputs))
			if ev.Nullifier == nil {
				continue
			}
			if _, ok := s.wallet.MarkNullifierUsed(ev.Nullifier); ok {
				res.Spent++
			}
		}
		s.log.Debug("synced window", zap.Uint64("from", from), zap.Uint64("to", to), zap.Int("events", len(events)))
	}

	if st, ok := s.source.(ledger.State); ok {
		ct, err := st.Ciphertext(ctx, s.wallet.Keys().Pub.Addr)
		if err != nil {
			s.log.Warn("refreshing balance ciphertext", zap.Error(err))
		} else {
			s.wallet.SetAmountCT(ct)
		}
	}

	if err := s.wallet.UpdateAndSaveState(head + 1); err != nil {
		return fail(errors.Wrap(err, "save wallet state"))
	}
	s.metrics.SyncCycle(head-res.From+1, time.Since(start))
	s.log.Info("sync complete",
		zap.Uint64("from", res.From),
		zap.Uint64("to", head),
		zap.Int("received", res.Received),
		zap.Int("spent", res.Spent))
	return res, nil
}

// Run syncs every interval until ctx is done. Cycle errors are logged and
// retried on the next tick. report, if set, sees every cycle outcome.
func (s *Syncer) Run(ctx context.Context, interval time.Duration, report func(*Result, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		res, err := s.Sync(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.log.Warn("sync cycle failed", zap.Error(err))
		}
		if report != nil {
			report(res, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
