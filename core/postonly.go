package core

import "sync"

// ═══════════════════════════════════════════════════════════════════════════════
// POST-ONLY FAILURE POLICY
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on risk/gate.go's per-asset map+mutex idiom (assetPositions,
// guarded by a single RWMutex keyed by symbol), repurposed here to count
// consecutive crossing rejections instead of open position counts.
//
// ═══════════════════════════════════════════════════════════════════════════════

// PostOnlyFailurePolicy decides POST_ONLY vs GTC per symbol based on recent
// consecutive crossing rejections (§4.5).
type PostOnlyFailurePolicy struct {
	mu          sync.Mutex
	counters    map[string]int
	maxAttempts int
}

func NewPostOnlyFailurePolicy(maxAttempts int) *PostOnlyFailurePolicy {
	return &PostOnlyFailurePolicy{
		counters:    make(map[string]int),
		maxAttempts: maxAttempts,
	}
}

// OrderType returns the order type this attempt should use for symbol.
func (p *PostOnlyFailurePolicy) OrderType(symbol string) OrderType {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counters[symbol] < p.maxAttempts {
		return OrderPostOnly
	}
	return OrderGTC
}

// RecordCrossing bumps the consecutive-failure counter for symbol.
func (p *PostOnlyFailurePolicy) RecordCrossing(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[symbol]++
	return p.counters[symbol]
}

// RecordAccepted resets the counter for symbol after both legs are accepted.
func (p *PostOnlyFailurePolicy) RecordAccepted(symbol string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[symbol] = 0
}

// Count reports the current consecutive-failure counter for symbol (for
// persistence/reconciliation).
func (p *PostOnlyFailurePolicy) Count(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters[symbol]
}

// Restore seeds the counter for symbol from persisted state (used by Reconciler).
func (p *PostOnlyFailurePolicy) Restore(symbol string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[symbol] = count
}

// Snapshot returns a copy of all counters, for periodic persistence.
func (p *PostOnlyFailurePolicy) Snapshot() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]int, len(p.counters))
	for k, v := range p.counters {
		out[k] = v
	}
	return out
}
