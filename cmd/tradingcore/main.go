package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/atomichedge/bot"
	"github.com/web3guy0/atomichedge/core"
	coresignal "github.com/web3guy0/atomichedge/core/signal"
	"github.com/web3guy0/atomichedge/core/store"
	"github.com/web3guy0/atomichedge/exec"
	"github.com/web3guy0/atomichedge/feeds"
	"github.com/web3guy0/atomichedge/internal/config"
)

const VERSION = "v1.0"

// ═══════════════════════════════════════════════════════════════════════════════
// BOOTSTRAP
// ═══════════════════════════════════════════════════════════════════════════════
//
// Mirrors cmd/main.go's layered wiring (storage → exchange → feeds →
// signal/resolution → scheduling, notifications wired alongside the scheduler)
// and its 30s-stats background goroutine plus SIGINT/SIGTERM graceful
// shutdown, rebuilt around
// core.Scheduler instead of core.Engine/strategy.Strategy.
//
// ═══════════════════════════════════════════════════════════════════════════════

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Msgf("═══ ATOMICHEDGE %s ═══", VERSION)

	// ───────────────────────────── LAYER 1: STORAGE ─────────────────────────────

	db, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("store open failed")
	}
	defer db.Close()
	log.Info().Msg("✅ store opened")

	// ───────────────────────────── LAYER 2: EXCHANGE ────────────────────────────

	clobClient, err := exec.NewClient()
	if err != nil {
		log.Fatal().Err(err).Msg("exec client init failed")
	}
	adapter := exec.NewExchangeAdapter(clobClient)
	log.Info().Bool("dryRun", clobClient.IsDryRun()).Msg("✅ exchange client initialized")

	// ───────────────────────────── LAYER 3: FEEDS ───────────────────────────────

	binanceFeed := feeds.NewBinanceFeed()
	binanceFeed.Start()

	chainlinkFeed := feeds.NewChainlinkFeed(cfg.CMCAPIKey)
	chainlinkFeed.SetBinanceFallback(binanceFeed)
	chainlinkFeed.Start()

	scanner := feeds.NewWindowScanner(binanceFeed)
	scanner.Start()

	polyFeed := feeds.NewPolymarketFeed()
	polyFeed.Start()
	router := core.NewRouter()
	clock := core.SystemClock{}
	go bridgeTicks(polyFeed, router, clock)
	adapter.SetRouter(router)
	log.Info().Msg("✅ feeds initialized")

	markets := core.NewMarketRegistry()
	go bridgeWindows(scanner, polyFeed, markets)

	// ───────────────────────────── LAYER 4: SIGNAL/RESOLUTION ───────────────────

	signalSource := coresignal.NewCompositeSignalSource(chainlinkFeed, binanceFeed, markets)
	resolutionSource := core.NewPriceResolutionSource(adapter, clock)

	// ───────────────────────────── LAYER 5: SCHEDULER ───────────────────────────

	postOnly := core.NewPostOnlyFailurePolicy(cfg.PostOnlyMaxAttempts)
	optimizer := core.NewPreSettlementOptimizer(signalSource, core.OptimizerConfig{
		Enabled:       cfg.OptimizerEnabled,
		MinConfidence: cfg.OptimizerMinConfidence,
		StartSec:      time.Duration(cfg.OptimizerStartSec) * time.Second,
		StopSec:       time.Duration(cfg.OptimizerStopSec) * time.Second,
		IntervalSec:   time.Duration(cfg.OptimizerIntervalSec) * time.Second,
	})

	var notifier core.LifecycleNotifier = noopNotifier{}
	var tgBot *bot.TelegramBot
	statsAdapter := &statsAdapter{store: db, exchange: adapter}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		if tg, err := bot.NewTelegramBot(cfg.TelegramToken, cfg.TelegramChatID, statsAdapter); err != nil {
			log.Warn().Err(err).Msg("telegram unavailable")
		} else {
			tgBot = tg
			tgBot.Start()
			notifier = tgBot
			log.Info().Msg("✅ telegram initialized")
		}
	}

	deps := core.LifecycleDeps{
		Exchange:      adapter,
		Clock:         clock,
		Signal:        signalSource,
		Resolution:    resolutionSource,
		Pricing:       core.NewPricingPolicy(),
		PostOnly:      postOnly,
		Optimizer:     optimizer,
		EmergencyCfg:  core.EmergencyConfig{WaitShort: cfg.EmergencyWaitShort, WaitMedium: cfg.EmergencyWaitMedium, WaitLong: cfg.EmergencyWaitLong, DropPatient: cfg.EmergencyDropPatient, DropBalanced: cfg.EmergencyDropBalanced, DropAggressive: cfg.EmergencyDropAggressive, FallbackFloor: cfg.EmergencyFallbackFloor},
		MinOrderSize:  cfg.MinOrderSize,
		CombinedCap:   cfg.CombinedCap,
		MaxSizeMode:   core.MaxSizeMode(cfg.MaxSizeMode),
		MaxSize:       cfg.MaxSize,
		BetPercent:    cfg.BetPercent,
		ScalingFactor: cfg.ScalingFactor,
		FillTimeout:   cfg.FillTimeout,
		PollInterval:  cfg.PollInterval,
		MaxRetries:    cfg.MaxRetries,
		Persist:       db,
		Notify:        notifier,
	}

	schedCfg := core.SchedulerConfig{
		Symbols:              cfg.Symbols,
		MaxPortfolioExposure: cfg.MaxPortfolioExposure,
		TickInterval:         cfg.TickInterval,
	}
	scheduler := core.NewScheduler(schedCfg, deps, markets, db, func(ctx context.Context) (decimal.Decimal, error) {
		return adapter.Balance(ctx)
	})
	statsAdapter.scheduler = scheduler

	// ───────────────────────────── STARTUP RECONCILIATION ───────────────────────

	reconciler := core.NewReconciler(db, adapter, clock, markets)
	ctx, cancel := context.WithCancel(context.Background())
	if err := reconciler.Reconcile(ctx); err != nil {
		log.Error().Err(err).Msg("startup reconciliation failed")
	} else {
		log.Info().Msg("✅ reconciliation complete")
	}

	// ───────────────────────────── RUN ──────────────────────────────────────────

	go scheduler.Run(ctx)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			log.Info().Int("activeWindows", scheduler.ActiveCount()).Msg("📊 scheduler stats")
		}
	}()

	log.Info().Msg("🚀 running...")
	if tgBot != nil {
		tgBot.NotifyStartup(ctx, clobClient.IsDryRun())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Warn().Msg("🛑 shutdown signal received")
	cancel()
	scheduler.Shutdown()
	chainlinkFeed.Stop()
	binanceFeed.Stop()
	scanner.Stop()
	polyFeed.Stop()
	if tgBot != nil {
		tgBot.Stop()
	}
	log.Info().Msg("👋 goodbye")
}

// bridgeWindows converts discovered feeds.Window events into core.Market
// upserts, the one place feeds-package discovery meets core's market model.
// It also subscribes the public book feed to the newly discovered condition
// so Router starts receiving ticks for that window's two tokens.
func bridgeWindows(scanner *feeds.WindowScanner, polyFeed *feeds.PolymarketFeed, markets *core.MarketRegistry) {
	for w := range scanner.Subscribe() {
		markets.Upsert(&core.Market{
			Symbol:      w.Asset,
			WindowStart: w.EndTime.Add(-15 * time.Minute),
			WindowEnd:   w.EndTime,
			UpToken:     core.Token{ID: w.YesTokenID, Side: core.SideUp},
			DownToken:   core.Token{ID: w.NoTokenID, Side: core.SideDown},
			TickSize:    core.DefaultTickSize,
		})
		polyFeed.RegisterToken(w.YesTokenID, "YES")
		polyFeed.RegisterToken(w.NoTokenID, "NO")
		if err := polyFeed.SubscribeMarket(w.ID); err != nil {
			log.Warn().Err(err).Str("market", w.ID).Msg("⚠️ failed to subscribe book feed to new window")
		}
	}
}

// bridgeTicks feeds every Tick the public book websocket emits into Router,
// the one place a pricing/monitoring BestBid/BestAsk lookup can read a pushed
// quote instead of round-tripping the REST book endpoint.
func bridgeTicks(polyFeed *feeds.PolymarketFeed, router *core.Router, clock core.Clock) {
	for tick := range polyFeed.Subscribe() {
		router.OnTick(tick, clock.Now().UnixNano())
	}
}

type noopNotifier struct{}

func (noopNotifier) OnTransition(string, time.Time, core.LifecycleState, core.LifecycleState) {}
func (noopNotifier) OnLiquidation(string, core.Role, core.LiquidationResult, decimal.Decimal)  {}

// statsAdapter satisfies bot.StatsProvider over the store + exchange + scheduler.
type statsAdapter struct {
	store     *store.Store
	exchange  core.ExchangeClient
	scheduler *core.Scheduler
}

func (s *statsAdapter) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	return s.exchange.Balance(ctx)
}

func (s *statsAdapter) GetOpenTrades(ctx context.Context) ([]*core.TradeRecord, error) {
	return s.store.ListOpenTrades(ctx)
}

func (s *statsAdapter) ActiveLifecycles() int {
	if s.scheduler == nil {
		return 0
	}
	return s.scheduler.ActiveCount()
}
