package signal

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/atomichedge/core"
	"github.com/web3guy0/atomichedge/feeds"
)

// ═══════════════════════════════════════════════════════════════════════════════
// COMPOSITE SIGNAL SOURCE
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on feeds/indicators.go's MomentumTracker/VolatilityTracker,
// feeds/signals.go's BreakoutDetector and feeds/chainlink.go's primary-feed-with-Binance-
// fallback split (ChainlinkFeed.SetBinanceFallback); generalized from the
// teacher's strategy-package Direction{UP,DOWN,NO_TRADE} gating (e.g.
// strategy/sniper_v3.go) into the opaque {confidence, bias, pYes} triple
// core.SignalSource expects, with confidence hard-capped at 0.85 per this
// repo's signal contract.
//
// ═══════════════════════════════════════════════════════════════════════════════

// maxConfidence mirrors the spec's hard cap: no signal may claim more
// certainty than this, regardless of indicator strength.
var maxConfidence = decimal.NewFromFloat(0.85)

// PriceFeed is the minimal read surface CompositeSignalSource needs from a
// reference price feed (satisfied by both *feeds.ChainlinkFeed and
// *feeds.BinanceFeed).
type PriceFeed interface {
	GetPrice(symbol string) decimal.Decimal
}

type symbolState struct {
	momentum   *feeds.MomentumTracker
	volatility *feeds.VolatilityTracker
	breakout   *feeds.BreakoutDetector
	windowOpen decimal.Decimal
	windowKey  core.WindowKey
}

// CompositeSignalSource derives a directional signal for a symbol from its
// Chainlink (primary) / Binance (fallback) reference price relative to the
// open price of the symbol's currently active window.
type CompositeSignalSource struct {
	primary  PriceFeed
	fallback PriceFeed
	markets  *core.MarketRegistry

	mu     sync.Mutex
	states map[string]*symbolState
}

func NewCompositeSignalSource(primary, fallback PriceFeed, markets *core.MarketRegistry) *CompositeSignalSource {
	return &CompositeSignalSource{
		primary:  primary,
		fallback: fallback,
		markets:  markets,
		states:   make(map[string]*symbolState),
	}
}

// Signal implements core.SignalSource.
func (c *CompositeSignalSource) Signal(ctx context.Context, symbol string, now time.Time) (core.Signal, error) {
	price := c.primary.GetPrice(symbol)
	if price.IsZero() && c.fallback != nil {
		price = c.fallback.GetPrice(symbol)
	}
	if price.IsZero() {
		return core.Signal{Bias: core.BiasNeutral, PYes: decimal.NewFromFloat(0.5)}, core.ErrNoMarket
	}

	st := c.stateFor(symbol)
	st.momentum.Update(price)
	st.volatility.Update(price, price, price)
	st.breakout.Update(price)

	m := c.markets.Current(symbol)
	if m == nil {
		return core.Signal{Bias: core.BiasNeutral, PYes: decimal.NewFromFloat(0.5)}, core.ErrNoMarket
	}
	key := m.Key()
	if st.windowKey != key {
		st.windowKey = key
		st.windowOpen = price
	}

	return c.deriveSignal(st, price), nil
}

func (c *CompositeSignalSource) stateFor(symbol string) *symbolState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[symbol]
	if !ok {
		st = &symbolState{
			momentum:   feeds.NewMomentumTracker(20),
			volatility: feeds.NewVolatilityTracker(20),
			breakout:   feeds.NewBreakoutDetector(20, decimal.NewFromFloat(0.7), decimal.NewFromFloat(0.0001)),
		}
		c.states[symbol] = st
	}
	return st
}

// deriveSignal turns the tracked indicators into a bias + confidence + pYes
// triple. Confidence scales with |ROC| and breakout agreement, capped at
// maxConfidence; bias flips to NEUTRAL when momentum is too weak to call.
func (c *CompositeSignalSource) deriveSignal(st *symbolState, price decimal.Decimal) core.Signal {
	roc := st.momentum.ROC()
	absROC := roc.Abs()

	bias := core.BiasNeutral
	switch {
	case roc.GreaterThan(decimal.Zero) && st.windowOpen.GreaterThan(decimal.Zero) && price.GreaterThanOrEqual(st.windowOpen):
		bias = core.BiasUp
	case roc.LessThan(decimal.Zero) && st.windowOpen.GreaterThan(decimal.Zero) && price.LessThan(st.windowOpen):
		bias = core.BiasDown
	}

	if st.breakout.IsBreakoutUp() {
		bias = core.BiasUp
	} else if st.breakout.IsBreakoutDown() {
		bias = core.BiasDown
	}

	// confidence: 0 at roc=0, approaching maxConfidence by roc=1.0% (scaled),
	// tempered down when volatility is elevated relative to the move itself.
	scaled := absROC.Div(decimal.NewFromFloat(1.0))
	if scaled.GreaterThan(decimal.NewFromInt(1)) {
		scaled = decimal.NewFromInt(1)
	}
	confidence := scaled.Mul(maxConfidence)
	if st.volatility.IsHighVolatility(decimal.NewFromFloat(0.5)) {
		confidence = confidence.Mul(decimal.NewFromFloat(0.6))
	}
	if confidence.GreaterThan(maxConfidence) {
		confidence = maxConfidence
	}
	if bias == core.BiasNeutral {
		confidence = decimal.Zero
	}

	pYes := decimal.NewFromFloat(0.5).Add(confidence.Div(decimal.NewFromInt(2)))
	if bias == core.BiasDown {
		pYes = decimal.NewFromFloat(0.5).Sub(confidence.Div(decimal.NewFromInt(2)))
	} else if bias == core.BiasNeutral {
		pYes = decimal.NewFromFloat(0.5)
	}

	return core.Signal{Confidence: confidence, Bias: bias, PYes: pYes}
}
