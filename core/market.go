package core

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MARKET REGISTRY - tracks active windows per symbol
// ═══════════════════════════════════════════════════════════════════════════════
//
// Rewrites core/symbols.go's SymbolManager (a flat market-metadata map keyed
// by a single condition ID) around the two-sided, window-keyed Market type in
// types.go. feeds/window_scanner.go's Window/WindowScanner stay in place as
// the discovery feed; MarketRegistry is what the rest of core consults for
// "what's the current market for BTC" instead of reaching into feeds directly.
//
// ═══════════════════════════════════════════════════════════════════════════════

// MarketRegistry holds the current Market for each symbol, keyed by window.
type MarketRegistry struct {
	mu      sync.RWMutex
	current map[string]*Market    // symbol -> live window
	byToken map[string]WindowKey  // token id -> window key
	history map[WindowKey]*Market // closed windows, retained for reconciliation lookups
}

func NewMarketRegistry() *MarketRegistry {
	return &MarketRegistry{
		current: make(map[string]*Market),
		byToken: make(map[string]WindowKey),
		history: make(map[WindowKey]*Market),
	}
}

// Upsert records m as the live window for its symbol, superseding whatever
// window was previously live (the old one moves to history).
func (r *MarketRegistry) Upsert(m *Market) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.current[m.Symbol]; ok && prev.Key() != m.Key() {
		r.history[prev.Key()] = prev
	}
	r.current[m.Symbol] = m
	r.byToken[m.UpToken.ID] = m.Key()
	r.byToken[m.DownToken.ID] = m.Key()
	r.history[m.Key()] = m
}

// Current returns the live window for symbol, or nil if none is tracked.
func (r *MarketRegistry) Current(symbol string) *Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current[symbol]
}

// ByToken resolves a token id back to its window, searching history too so a
// late fill/resolution event on an already-rolled-over window still resolves.
func (r *MarketRegistry) ByToken(tokenID string) *Market {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.byToken[tokenID]
	if !ok {
		return nil
	}
	return r.history[key]
}

// ActiveSymbols returns every symbol with a tracked live window.
func (r *MarketRegistry) ActiveSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.current))
	for sym := range r.current {
		out = append(out, sym)
	}
	return out
}

// Expired reports whether the live window for symbol has closed as of now.
func (r *MarketRegistry) Expired(symbol string, now time.Time) bool {
	m := r.Current(symbol)
	if m == nil {
		return true
	}
	return !now.Before(m.WindowEnd)
}

// DefaultTickSize is used when a discovered window carries no explicit tick size.
var DefaultTickSize = decimal.NewFromFloat(0.01)
