package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/web3guy0/atomichedge/core"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM BOT — operator notifications & read-only status commands
// ═══════════════════════════════════════════════════════════════════════════════
//
// Kept from the teacher's TelegramBot: the GetUpdatesChan command loop, the
// send/sendMarkdown helpers, the /status /balance /trades command set. What
// changed: NotifyTrade/NotifyPnL's ad-hoc action strings are replaced with
// core.LifecycleNotifier's OnTransition/OnLiquidation events (§9's "never
// blocks on it, never branches on its outcome" rule), and StatsProvider now
// reads core.TradeRecord instead of the deleted types package. Pause/resume
// control commands are dropped — the Scheduler has no pause switch to wire
// them to; this is a pure observer, not a second control plane.
//
// ═══════════════════════════════════════════════════════════════════════════════

// StatsProvider is the read-only surface the bot needs for its status commands.
type StatsProvider interface {
	GetBalance(ctx context.Context) (decimal.Decimal, error)
	GetOpenTrades(ctx context.Context) ([]*core.TradeRecord, error)
	ActiveLifecycles() int
}

// TelegramBot manages the Telegram interface. It implements core.LifecycleNotifier.
type TelegramBot struct {
	mu      sync.RWMutex
	api     *tgbotapi.BotAPI
	chatID  int64
	running bool
	stopCh  chan struct{}

	stats StatsProvider
}

func NewTelegramBot(token string, chatID int64, stats StatsProvider) (*TelegramBot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token not set")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id not set")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &TelegramBot{
		api:    api,
		chatID: chatID,
		stopCh: make(chan struct{}),
		stats:  stats,
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot initialized")
	return b, nil
}

func (b *TelegramBot) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.commandLoop()
	log.Info().Msg("📱 Telegram bot started")
}

func (b *TelegramBot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	close(b.stopCh)
	log.Info().Msg("Telegram bot stopped")
}

// ═══════════════════════════════════════════════════════════════════════════════
// core.LifecycleNotifier
// ═══════════════════════════════════════════════════════════════════════════════

// OnTransition reports only the transitions an operator cares about; purely
// internal hops (PRICING→PLACING) stay out of the chat.
func (b *TelegramBot) OnTransition(symbol string, windowStart time.Time, from, to core.LifecycleState) {
	switch to {
	case core.StateMonitoring:
		b.sendMarkdown(fmt.Sprintf("✅ *PAIR PLACED*\n\n📊 %s — window %s", symbol, windowStart.Format("15:04")))
	case core.StateHolding:
		b.sendMarkdown(fmt.Sprintf("🟢 *BOTH LEGS FILLED*\n\n📊 %s — window %s", symbol, windowStart.Format("15:04")))
	case core.StateIdleSkipped:
		log.Debug().Str("symbol", symbol).Msg("window skipped, no notification sent")
	case core.StateFinalized:
		b.sendMarkdown(fmt.Sprintf("📊 *WINDOW FINALIZED*\n\n%s — window %s", symbol, windowStart.Format("15:04")))
	}
}

// OnLiquidation reports every emergency/pre-settlement sale, since these are
// the events an operator most wants to see in real time.
func (b *TelegramBot) OnLiquidation(symbol string, role core.Role, result core.LiquidationResult, pnl decimal.Decimal) {
	emoji := "📉"
	if pnl.IsPositive() {
		emoji = "📈"
	}
	sign := "+"
	if pnl.IsNegative() {
		sign = ""
	}
	b.sendMarkdown(fmt.Sprintf(`%s *LIQUIDATION*

📊 %s %s
🎯 Result: *%s*
💵 P&L: *%s$%s*`,
		emoji, symbol, role,
		result,
		sign, pnl.StringFixed(2),
	))
}

// NotifyStartup announces the process coming up.
func (b *TelegramBot) NotifyStartup(ctx context.Context, dryRun bool) {
	mode := "LIVE"
	if dryRun {
		mode = "PAPER"
	}
	balanceStr := "N/A"
	if b.stats != nil {
		if bal, err := b.stats.GetBalance(ctx); err == nil {
			balanceStr = "$" + bal.StringFixed(2)
		}
	}
	b.sendMarkdown(fmt.Sprintf(`🚀 *ATOMICHEDGE STARTED*
━━━━━━━━━━━━━━━━━━━━

📊 Mode: *%s*
💰 Balance: *%s*

Use /help for commands`, mode, balanceStr))
}

// NotifyError sends an error alert.
func (b *TelegramBot) NotifyError(err error) {
	b.sendMarkdown(fmt.Sprintf("⚠️ *ERROR*\n\n`%s`", err.Error()))
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMAND HANDLING
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) commandLoop() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-b.stopCh:
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != b.chatID {
				continue
			}
			b.handleCommand(update.Message)
		}
	}
}

func (b *TelegramBot) handleCommand(msg *tgbotapi.Message) {
	switch strings.ToLower(msg.Command()) {
	case "start", "help":
		b.cmdHelp()
	case "status":
		b.cmdStatus()
	case "balance":
		b.cmdBalance()
	case "trades":
		b.cmdTrades()
	case "ping":
		b.send("🏓 Pong!")
	default:
		b.send("❓ Unknown command. Use /help")
	}
}

func (b *TelegramBot) cmdHelp() {
	b.sendMarkdown(`🤖 *ATOMICHEDGE COMMANDS*
━━━━━━━━━━━━━━━━━━━━

📊 /status — scheduler status
💰 /balance — account balance
📜 /trades — open trade records
🏓 /ping — test connection`)
}

func (b *TelegramBot) cmdStatus() {
	active := 0
	balanceStr := "N/A"
	if b.stats != nil {
		active = b.stats.ActiveLifecycles()
		if bal, err := b.stats.GetBalance(context.Background()); err == nil {
			balanceStr = "$" + bal.StringFixed(2)
		}
	}
	b.sendMarkdown(fmt.Sprintf(`📊 *STATUS*
━━━━━━━━━━━━━━━━━━━━

🟢 RUNNING
🔄 Active windows: *%d*
💰 Balance: *%s*`, active, balanceStr))
}

func (b *TelegramBot) cmdBalance() {
	if b.stats == nil {
		b.send("❌ Balance not available")
		return
	}
	balance, err := b.stats.GetBalance(context.Background())
	if err != nil {
		b.send("❌ Failed to fetch balance")
		return
	}
	b.sendMarkdown(fmt.Sprintf("💰 *BALANCE*\n\n💵 Available: *$%s*", balance.StringFixed(2)))
}

func (b *TelegramBot) cmdTrades() {
	if b.stats == nil {
		b.send("❌ Trades not available")
		return
	}
	trades, err := b.stats.GetOpenTrades(context.Background())
	if err != nil {
		b.send("❌ Failed to fetch trades")
		return
	}
	if len(trades) == 0 {
		b.send("📭 No open trades")
		return
	}

	msg := "📜 *OPEN TRADES*\n━━━━━━━━━━━━━━━━━━━━\n\n"
	for i, t := range trades {
		msg += fmt.Sprintf("%s %s %s — entry %s¢ × %s\n",
			t.Symbol, t.Role, t.Side,
			t.EntryPrice.Mul(decimal.NewFromInt(100)).StringFixed(1),
			t.FilledSize.StringFixed(2),
		)
		if i >= 9 {
			msg += fmt.Sprintf("_... and %d more_", len(trades)-10)
			break
		}
	}
	b.sendMarkdown(msg)
}

func (b *TelegramBot) send(text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(b.chatID, text)); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}

func (b *TelegramBot) sendMarkdown(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}
