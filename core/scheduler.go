package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ═══════════════════════════════════════════════════════════════════════════════
//
// Rewrites core/engine.go's Engine: grounded on cmd/main.go's top-level wiring
// order (storage → feeds → risk gate → execution → strategy → engine →
// notifications) and its 30s stats-printer / 60s risk-state-persister
// background goroutines, and on risk/gate.go's exposure-cap and per-asset
// position-count gating logic (maxPositionsPerAsset, assetPositions map) —
// generalized here from a single global gate into per-window exposure
// accounting (I5).
//
// ═══════════════════════════════════════════════════════════════════════════════

// ExposureStore is the subset of Store the Scheduler needs to enforce I5.
type ExposureStore interface {
	TotalOpenCollateral(ctx context.Context) (decimal.Decimal, error)
}

// SchedulerConfig is the fixed set of tunables the Scheduler enforces.
type SchedulerConfig struct {
	Symbols              []string
	MaxPortfolioExposure decimal.Decimal // fraction of balance, e.g. 0.5
	TickInterval         time.Duration   // ambient 1Hz cadence per §4.11
}

// Scheduler fans out per-(symbol,window) TradeLifecycle actors on each
// 15-minute boundary and enforces the portfolio-wide exposure cap.
type Scheduler struct {
	cfg        SchedulerConfig
	deps       LifecycleDeps
	markets    *MarketRegistry
	store      ExposureStore
	clock      Clock
	getBalance func(ctx context.Context) (decimal.Decimal, error)

	mu        sync.Mutex
	active    map[WindowKey]*TradeLifecycle
	wg        sync.WaitGroup
	stopOnce  sync.Once
	cancelAll context.CancelFunc
}

func NewScheduler(cfg SchedulerConfig, deps LifecycleDeps, markets *MarketRegistry, store ExposureStore, getBalance func(ctx context.Context) (decimal.Decimal, error)) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 1 * time.Second
	}
	return &Scheduler{
		cfg:        cfg,
		deps:       deps,
		markets:    markets,
		store:      store,
		clock:      deps.Clock,
		getBalance: getBalance,
		active:     make(map[WindowKey]*TradeLifecycle),
	}
}

// Run blocks, fanning out a lifecycle for each symbol whenever its market
// registry entry rolls to a new window, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancelAll = cancel

	ticker := s.clock.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	seen := make(map[WindowKey]bool)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return
		case <-ticker.C():
			for _, symbol := range s.cfg.Symbols {
				m := s.markets.Current(symbol)
				if m == nil {
					continue
				}
				key := m.Key()
				if seen[key] {
					continue
				}
				seen[key] = true
				s.spawn(ctx, m)
			}
		}
	}
}

func (s *Scheduler) spawn(ctx context.Context, m *Market) {
	balance, err := s.getBalance(ctx)
	if err != nil {
		log.Warn().Err(err).Str("symbol", m.Symbol).Msg("⚠️ balance lookup failed, skipping window")
		return
	}

	lc := NewTradeLifecycle(m, s.deps, balance)

	s.mu.Lock()
	s.active[m.Key()] = lc
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sig, err := s.deps.Signal.Signal(ctx, m.Symbol, s.clock.Now())
		if err != nil {
			sig = Signal{Confidence: decimal.Zero, Bias: BiasNeutral, PYes: decimal.NewFromFloat(0.5)}
		}
		lc.Run(ctx, sig, s.exposureOK(ctx, balance))
	}()
}

// exposureOK implements I5: a new bet may not push total open collateral
// above maxPortfolioExposure × balance.
func (s *Scheduler) exposureOK(ctx context.Context, balance decimal.Decimal) func(bet decimal.Decimal) bool {
	return func(bet decimal.Decimal) bool {
		open, err := s.store.TotalOpenCollateral(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ exposure check failed to read store, rejecting new bet")
			return false
		}
		capAmt := balance.Mul(s.cfg.MaxPortfolioExposure)
		return open.Add(bet).LessThanOrEqual(capAmt)
	}
}

// Shutdown cancels the scheduler loop and waits for in-flight lifecycles to
// reach a safe (persisted) suspension point.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		if s.cancelAll != nil {
			s.cancelAll()
		}
	})
	s.wg.Wait()
}

func (s *Scheduler) shutdown() {
	log.Info().Msg("🛑 scheduler stopping, waiting for lifecycles to suspend")
}

// ActiveCount reports how many lifecycles are currently tracked (for stats reporting).
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
