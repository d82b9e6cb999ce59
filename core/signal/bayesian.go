package signal

import (
	"context"
	"time"

	"github.com/web3guy0/atomichedge/core"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BAYESIAN SIGNAL SOURCE (unwired)
// ═══════════════════════════════════════════════════════════════════════════════
//
// Open Question 3 leaves room for a probabilistic model blending order-book
// imbalance with the reference-price momentum CompositeSignalSource already
// uses, but no such model is scoped here — internal/arbitrage/probability.go
// sketches the closest teacher analogue (a fixed entry/exit probability
// table) and isn't itself a fitted model either. BayesianSignalSource is kept
// as the documented extension point rather than built out further.
//
// ═══════════════════════════════════════════════════════════════════════════════

// BayesianSignalSource is a placeholder core.SignalSource for a future
// probabilistic blend of multiple indicator sources. Not wired into any
// Scheduler today.
type BayesianSignalSource struct{}

func NewBayesianSignalSource() *BayesianSignalSource {
	return &BayesianSignalSource{}
}

func (b *BayesianSignalSource) Signal(ctx context.Context, symbol string, now time.Time) (core.Signal, error) {
	return core.Signal{}, core.ErrNotImplemented
}
