package core

import (
	"context"
	"testing"
	"time"
)

type fakeSignalSource struct {
	sig Signal
	err error
}

func (f fakeSignalSource) Signal(ctx context.Context, symbol string, now time.Time) (Signal, error) {
	return f.sig, f.err
}

func TestOptimizerConfigInBand(t *testing.T) {
	windowEnd := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg := OptimizerConfig{StartSec: 180 * time.Second, StopSec: 45 * time.Second}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before band opens", windowEnd.Add(-200 * time.Second), false},
		{"at band open", windowEnd.Add(-180 * time.Second), true},
		{"inside band", windowEnd.Add(-100 * time.Second), true},
		{"at band close (exclusive)", windowEnd.Add(-45 * time.Second), false},
		{"after band closes", windowEnd.Add(-10 * time.Second), false},
	}
	for _, c := range cases {
		if got := cfg.InBand(c.now, windowEnd); got != c.want {
			t.Errorf("%s: InBand = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestPreSettlementOptimizerDisabled(t *testing.T) {
	opt := NewPreSettlementOptimizer(fakeSignalSource{sig: Signal{Bias: BiasUp, Confidence: d("0.99")}}, OptimizerConfig{Enabled: false})
	dec := opt.Evaluate(context.Background(), "BTC", time.Now())
	if dec.SellLosingLeg {
		t.Error("disabled optimizer should never decide to sell")
	}
}

func TestPreSettlementOptimizerBelowMinConfidenceHolds(t *testing.T) {
	opt := NewPreSettlementOptimizer(fakeSignalSource{sig: Signal{Bias: BiasUp, Confidence: d("0.5")}}, OptimizerConfig{Enabled: true, MinConfidence: d("0.8")})
	dec := opt.Evaluate(context.Background(), "BTC", time.Now())
	if dec.SellLosingLeg {
		t.Error("below-threshold confidence should hold both legs")
	}
}

func TestPreSettlementOptimizerNeutralBiasHolds(t *testing.T) {
	opt := NewPreSettlementOptimizer(fakeSignalSource{sig: Signal{Bias: BiasNeutral, Confidence: d("0.95")}}, OptimizerConfig{Enabled: true, MinConfidence: d("0.8")})
	dec := opt.Evaluate(context.Background(), "BTC", time.Now())
	if dec.SellLosingLeg {
		t.Error("neutral bias should hold both legs")
	}
}

func TestPreSettlementOptimizerStrongBiasSellsOppositeLeg(t *testing.T) {
	opt := NewPreSettlementOptimizer(fakeSignalSource{sig: Signal{Bias: BiasUp, Confidence: d("0.9")}}, OptimizerConfig{Enabled: true, MinConfidence: d("0.8")})
	dec := opt.Evaluate(context.Background(), "BTC", time.Now())
	if !dec.SellLosingLeg {
		t.Fatal("strong biased signal should trigger a sell decision")
	}
	if dec.LosingSide != SideDown {
		t.Errorf("LosingSide = %v, want DOWN (opposite of UP bias)", dec.LosingSide)
	}
}

func TestPreSettlementOptimizerSignalErrorHolds(t *testing.T) {
	opt := NewPreSettlementOptimizer(fakeSignalSource{err: ErrNoMarket}, OptimizerConfig{Enabled: true, MinConfidence: d("0.8")})
	dec := opt.Evaluate(context.Background(), "BTC", time.Now())
	if dec.SellLosingLeg {
		t.Error("signal fetch error should hold both legs, never sell")
	}
}
