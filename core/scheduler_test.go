package core

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeExposureStore struct {
	total decimal.Decimal
	err   error
}

func (s *fakeExposureStore) TotalOpenCollateral(ctx context.Context) (decimal.Decimal, error) {
	return s.total, s.err
}

func newTestScheduler(t *testing.T, clk *FakeClock, store ExposureStore, maxExposure decimal.Decimal) *Scheduler {
	t.Helper()
	cfg := SchedulerConfig{Symbols: []string{"BTC"}, MaxPortfolioExposure: maxExposure}
	deps := LifecycleDeps{
		Exchange: newFakeExchange(),
		Clock:    clk,
		Signal:   fakeSignalSource{sig: Signal{Bias: BiasNeutral}},
	}
	getBalance := func(ctx context.Context) (decimal.Decimal, error) { return d("1000"), nil }
	return NewScheduler(cfg, deps, NewMarketRegistry(), store, getBalance)
}

func TestSchedulerExposureOKAllowsWithinCap(t *testing.T) {
	clk := NewFakeClock(time.Now())
	s := newTestScheduler(t, clk, &fakeExposureStore{total: d("100")}, d("0.5"))

	ok := s.exposureOK(context.Background(), d("1000"))
	if !ok(d("50")) {
		t.Error("expected bet to be allowed: 100+50 <= 0.5*1000")
	}
}

func TestSchedulerExposureOKRejectsOverCap(t *testing.T) {
	clk := NewFakeClock(time.Now())
	s := newTestScheduler(t, clk, &fakeExposureStore{total: d("480")}, d("0.5"))

	ok := s.exposureOK(context.Background(), d("1000"))
	if ok(d("50")) {
		t.Error("expected bet to be rejected: 480+50 > 0.5*1000")
	}
}

func TestSchedulerExposureOKRejectsOnStoreError(t *testing.T) {
	clk := NewFakeClock(time.Now())
	s := newTestScheduler(t, clk, &fakeExposureStore{err: ErrNotFound}, d("0.5"))

	ok := s.exposureOK(context.Background(), d("1000"))
	if ok(d("1")) {
		t.Error("a failed exposure lookup should reject the bet, not allow it")
	}
}

func TestSchedulerSpawnTracksActiveLifecycle(t *testing.T) {
	clk := NewFakeClock(time.Now())
	s := newTestScheduler(t, clk, &fakeExposureStore{total: decimal.Zero}, d("0.5"))
	m := testMarket("BTC", clk.Now())

	s.spawn(context.Background(), m)
	if s.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1 right after spawn", s.ActiveCount())
	}

	s.Shutdown() // waits for the spawned lifecycle goroutine to finish
	if s.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d, want lifecycle to remain tracked after it finishes", s.ActiveCount())
	}
}

func TestSchedulerShutdownIsIdempotent(t *testing.T) {
	clk := NewFakeClock(time.Now())
	s := newTestScheduler(t, clk, &fakeExposureStore{total: decimal.Zero}, d("0.5"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	<-done

	// Shutdown after Run has already observed ctx cancellation should not panic
	// or block, even though the context cancelAll controls is already done
	// through ctx's own cancel.
	s.Shutdown()
	s.Shutdown()
}
