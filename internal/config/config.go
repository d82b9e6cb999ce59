package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG — env-var driven process configuration
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on internal/config/config.go's getEnv/getEnvBool/getEnvInt/
// getEnvDuration/getEnvDecimal helper set and Load()'s flat-struct-of-
// defaults shape; the Markets/RiskConfig/BTC* fields that modeled a single
// hardcoded strategy are replaced with the closed option set this repo's
// Scheduler/TradeLifecycle/EmergencyLiquidator actually read (§6.4).
//
// ═══════════════════════════════════════════════════════════════════════════════

// Config is every tunable the process reads at startup. No component reaches
// into os.Getenv directly once Config is loaded — see Design Notes' "explicit
// collaborators" rule.
type Config struct {
	Debug bool

	// Exchange/wallet (exec.Client reads these itself; listed here so Load
	// can fail fast if something required is missing).
	DryRun bool

	// Storage
	DatabaseDSN string

	// Symbols & scheduling
	Symbols      []string
	TickInterval time.Duration

	// Sizing / pricing (§4.4)
	CombinedCap   decimal.Decimal
	MaxSizeMode   string // "CAP" or "MAXIMIZE"
	MaxSize       decimal.Decimal
	BetPercent    decimal.Decimal
	ScalingFactor decimal.Decimal
	MinOrderSize  decimal.Decimal

	// Exposure (I5)
	MaxPortfolioExposure decimal.Decimal

	// Fill monitoring (§4.7)
	FillTimeout  time.Duration
	PollInterval time.Duration
	MaxRetries   int

	// Emergency liquidation (§4.8, Open Question 1 fixed defaults)
	EmergencyWaitShort      time.Duration
	EmergencyWaitMedium     time.Duration
	EmergencyWaitLong       time.Duration
	EmergencyDropPatient    decimal.Decimal
	EmergencyDropBalanced   decimal.Decimal
	EmergencyDropAggressive decimal.Decimal
	EmergencyFallbackFloor  decimal.Decimal

	// Pre-settlement optimizer (§4.9)
	OptimizerEnabled       bool
	OptimizerMinConfidence decimal.Decimal
	OptimizerStartSec      int
	OptimizerStopSec       int
	OptimizerIntervalSec   int

	// Post-only failure policy (§4.5)
	PostOnlyMaxAttempts int

	// Telegram notifier (ambient, adapter-only — never on the core's path)
	TelegramToken  string
	TelegramChatID int64

	// Reference price feeds (§4.3.1)
	CMCAPIKey string
}

// Load reads Config from the environment, applying teacher-matching defaults
// for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Debug:  getEnvBool("DEBUG", false),
		DryRun: getEnvBool("DRY_RUN", true),

		DatabaseDSN: getEnv("DATABASE_DSN", "data/atomichedge.db"),

		Symbols:      getEnvList("TRADING_SYMBOLS", []string{"BTC"}),
		TickInterval: getEnvDuration("SCHEDULER_TICK_INTERVAL", 1*time.Second),

		CombinedCap:   getEnvDecimal("PRICING_COMBINED_CAP", decimal.NewFromFloat(0.99)),
		MaxSizeMode:   getEnv("PRICING_MAX_SIZE_MODE", "CAP"),
		MaxSize:       getEnvDecimal("PRICING_MAX_SIZE", decimal.NewFromFloat(500)),
		BetPercent:    getEnvDecimal("PRICING_BET_PERCENT", decimal.NewFromFloat(0.05)),
		ScalingFactor: getEnvDecimal("PRICING_SCALING_FACTOR", decimal.NewFromFloat(0.5)),
		MinOrderSize:  getEnvDecimal("PRICING_MIN_ORDER_SIZE", decimal.NewFromFloat(5)),

		MaxPortfolioExposure: getEnvDecimal("RISK_MAX_PORTFOLIO_EXPOSURE", decimal.NewFromFloat(0.5)),

		FillTimeout:  getEnvDuration("MONITOR_FILL_TIMEOUT", 120*time.Second),
		PollInterval: getEnvDuration("MONITOR_POLL_INTERVAL", 5*time.Second),
		MaxRetries:   getEnvInt("PLACER_MAX_RETRIES", 3),

		EmergencyWaitShort:      getEnvDuration("EMERGENCY_WAIT_SHORT", 7*time.Second),
		EmergencyWaitMedium:     getEnvDuration("EMERGENCY_WAIT_MEDIUM", 8*time.Second),
		EmergencyWaitLong:       getEnvDuration("EMERGENCY_WAIT_LONG", 15*time.Second),
		EmergencyDropPatient:    getEnvDecimal("EMERGENCY_DROP_PATIENT", decimal.NewFromFloat(0.01)),
		EmergencyDropBalanced:   getEnvDecimal("EMERGENCY_DROP_BALANCED", decimal.NewFromFloat(0.035)),
		EmergencyDropAggressive: getEnvDecimal("EMERGENCY_DROP_AGGRESSIVE", decimal.NewFromFloat(0.075)),
		EmergencyFallbackFloor:  getEnvDecimal("EMERGENCY_FALLBACK_FLOOR", decimal.NewFromFloat(0.01)),

		OptimizerEnabled:       getEnvBool("OPTIMIZER_ENABLED", true),
		OptimizerMinConfidence: getEnvDecimal("OPTIMIZER_MIN_CONFIDENCE", decimal.NewFromFloat(0.80)),
		OptimizerStartSec:      getEnvInt("OPTIMIZER_START_SEC", 180),
		OptimizerStopSec:       getEnvInt("OPTIMIZER_STOP_SEC", 45),
		OptimizerIntervalSec:   getEnvInt("OPTIMIZER_INTERVAL_SEC", 30),

		PostOnlyMaxAttempts: getEnvInt("POSTONLY_MAX_ATTEMPTS", 3),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		CMCAPIKey:     os.Getenv("CMC_API_KEY"),
	}

	if os.Getenv("WALLET_PRIVATE_KEY") == "" {
		return nil, fmt.Errorf("config: WALLET_PRIVATE_KEY is required")
	}

	if cfg.MaxSizeMode != "CAP" && cfg.MaxSizeMode != "MAXIMIZE" {
		return nil, fmt.Errorf("config: PRICING_MAX_SIZE_MODE must be CAP or MAXIMIZE, got %q", cfg.MaxSizeMode)
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
