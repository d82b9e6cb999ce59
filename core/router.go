package core

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/atomichedge/feeds"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ROUTER - distributes price ticks to quote lookups
// ═══════════════════════════════════════════════════════════════════════════════
//
// core/router.go originally fanned ticks out to a []strategy.Strategy
// subscriber list. There is no Strategy interface left to route to — the
// lifecycle's PricingPolicy and FillMonitor pull prices on demand instead of
// reacting to a push feed — so Router becomes the one place that keeps the
// latest per-token quote, fed by feeds.Tick events and read by bestBid/bestAsk
// lookups. Same map-plus-mutex shape as the original.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Quote is the latest known top-of-book for one token.
type Quote struct {
	BestBid   decimal.Decimal
	BestAsk   decimal.Decimal
	Mid       decimal.Decimal
	UpdatedAt int64 // unix nanos, set by the caller from a Clock — Router has none of its own
}

// Router keeps the most recent Quote per token id, updated by the price feed.
type Router struct {
	mu     sync.RWMutex
	quotes map[string]Quote // token id -> quote
}

func NewRouter() *Router {
	return &Router{quotes: make(map[string]Quote)}
}

// OnTick updates the quote for the tick's token.
func (r *Router) OnTick(tick feeds.Tick, nowUnixNano int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.quotes[tick.Asset] = Quote{
		BestBid:   tick.BestBid,
		BestAsk:   tick.BestAsk,
		Mid:       tick.Mid,
		UpdatedAt: nowUnixNano,
	}
}

// Quote returns the latest known quote for a token id, and whether one exists.
func (r *Router) Quote(tokenID string) (Quote, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.quotes[tokenID]
	return q, ok
}

// BestBid is a convenience accessor over Quote.
func (r *Router) BestBid(tokenID string) (decimal.Decimal, bool) {
	q, ok := r.Quote(tokenID)
	return q.BestBid, ok
}

// BestAsk is a convenience accessor over Quote.
func (r *Router) BestAsk(tokenID string) (decimal.Decimal, bool) {
	q, ok := r.Quote(tokenID)
	return q.BestAsk, ok
}
