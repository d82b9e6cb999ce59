package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RESOLUTION SOURCE
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on internal/arbitrage/smart_dual.go's handleResolution: near/after
// window close it reads whichever side's price is above 0.5 as the winner
// ("crude approximation... in reality we'd check resolution API" per that
// file's own comment). This repo's on-chain redemption is out of scope (Open
// Question 2), so PriceResolutionSource keeps that same approximation as its
// one supported strategy, polling the UP token's best bid until it settles
// decisively above 0.98 or below 0.02.
//
// ═══════════════════════════════════════════════════════════════════════════════

var (
	resolutionHighThreshold = decimal.NewFromFloat(0.98)
	resolutionLowThreshold  = decimal.NewFromFloat(0.02)
)

// PriceResolutionSource determines a window's winning side from the UP
// token's settled price once the market is closed.
type PriceResolutionSource struct {
	exchange ExchangeClient
	clock    Clock
}

func NewPriceResolutionSource(exchange ExchangeClient, clock Clock) *PriceResolutionSource {
	return &PriceResolutionSource{exchange: exchange, clock: clock}
}

// Resolution reports (winner, true, nil) once the UP token's price has
// settled decisively; (_, false, nil) if the market hasn't resolved yet.
func (p *PriceResolutionSource) Resolution(ctx context.Context, m *Market) (Side, bool, error) {
	if p.clock.Now().Before(m.WindowEnd) {
		return "", false, nil
	}

	bid, err := p.exchange.BestBid(ctx, m.UpToken)
	if err != nil {
		return "", false, err
	}
	if bid.GreaterThanOrEqual(resolutionHighThreshold) {
		return SideUp, true, nil
	}
	if bid.LessThanOrEqual(resolutionLowThreshold) {
		return SideDown, true, nil
	}
	return "", false, nil
}
