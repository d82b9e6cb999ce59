package core

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PRE-SETTLEMENT OPTIMIZER
// ═══════════════════════════════════════════════════════════════════════════════
//
// Runs only while both legs of a pair are FILLED and the window is inside its
// optimizer band. Grounded on strategy/phase_scalper.go's phase-gated
// re-evaluation loop, narrowed here to a single decide-once-per-interval check
// instead of a continuous position-monitor tick.
//
// ═══════════════════════════════════════════════════════════════════════════════

type OptimizerConfig struct {
	Enabled       bool
	MinConfidence decimal.Decimal
	StartSec      time.Duration // offset before windowEnd at which the band opens
	StopSec       time.Duration // offset before windowEnd at which the band closes
	IntervalSec   time.Duration
}

func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		Enabled:       true,
		MinConfidence: decimal.NewFromFloat(0.80),
		StartSec:      180 * time.Second,
		StopSec:       45 * time.Second,
		IntervalSec:   30 * time.Second,
	}
}

// InBand reports whether now falls in [windowEnd-StartSec, windowEnd-StopSec).
func (c OptimizerConfig) InBand(now, windowEnd time.Time) bool {
	open := windowEnd.Add(-c.StartSec)
	closeAt := windowEnd.Add(-c.StopSec)
	return !now.Before(open) && now.Before(closeAt)
}

// PreSettlementOptimizer decides whether to sell the losing leg early when an
// independent signal flips strongly near resolution (§4.9).
type PreSettlementOptimizer struct {
	signal SignalSource
	cfg    OptimizerConfig
}

func NewPreSettlementOptimizer(signal SignalSource, cfg OptimizerConfig) *PreSettlementOptimizer {
	return &PreSettlementOptimizer{signal: signal, cfg: cfg}
}

// Decision is the result of one optimizer evaluation.
type Decision struct {
	SellLosingLeg bool
	LosingSide    Side
}

// Evaluate consults the signal source and decides whether the side opposite
// the signal's bias should be sold now, keeping the biased side for
// resolution payoff. Both legs are held going in, so any strong bias
// identifies a losing leg worth cutting.
func (o *PreSettlementOptimizer) Evaluate(ctx context.Context, symbol string, now time.Time) Decision {
	if !o.cfg.Enabled {
		return Decision{}
	}
	sig, err := o.signal.Signal(ctx, symbol, now)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("⚠️ optimizer signal fetch failed, holding both legs")
		return Decision{}
	}
	if sig.Confidence.LessThan(o.cfg.MinConfidence) {
		return Decision{}
	}
	bias, ok := sig.Bias.ToSide()
	if !ok {
		return Decision{}
	}
	return Decision{SellLosingLeg: true, LosingSide: bias.Opposite()}
}
