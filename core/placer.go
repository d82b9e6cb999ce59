package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ATOMIC PLACER
// ═══════════════════════════════════════════════════════════════════════════════
//
// Grounded on execution/executor.go's SubmitOrder/executeLive retry-and-ack-
// then-fill-check shape, generalized from single-order submission to the
// two-leg atomic batch this spec requires, and on its updatePosition state-
// field bookkeeping style.
//
// ═══════════════════════════════════════════════════════════════════════════════

const defaultSettleDelay = 2 * time.Second

// Placement is the result of one AtomicPlacer.Place call.
type Placement struct {
	Outcome PlacementOutcome
	Entry   Leg
	Hedge   Leg
}

// AtomicPlacer submits an ENTRY+HEDGE pair and verifies the exchange's
// immediate response before trusting it (§4.6).
type AtomicPlacer struct {
	exchange     ExchangeClient
	clock        Clock
	settleDelay  time.Duration
	postOnly     *PostOnlyFailurePolicy
}

func NewAtomicPlacer(exchange ExchangeClient, clock Clock, postOnly *PostOnlyFailurePolicy) *AtomicPlacer {
	return &AtomicPlacer{
		exchange:    exchange,
		clock:       clock,
		settleDelay: defaultSettleDelay,
		postOnly:    postOnly,
	}
}

// Place submits plan as two orders, persists both legs before returning
// (invariant I4), then settles and re-verifies (invariant I3).
func (a *AtomicPlacer) Place(ctx context.Context, plan Plan, m *Market, orderType OrderType, persist func(entry, hedge *TradeRecord) error) (Placement, error) {
	entryReq := OrderRequest{
		Token: m.TokenFor(plan.EntrySide),
		Side:  OrderBuy,
		Price: plan.EntryPrice,
		Size:  plan.EntrySize,
		Type:  orderType,
	}
	hedgeReq := OrderRequest{
		Token: m.TokenFor(plan.EntrySide.Opposite()),
		Side:  OrderBuy,
		Price: plan.HedgePrice,
		Size:  plan.HedgeSize,
		Type:  orderType,
	}

	placed, err := a.exchange.PlaceBatch(ctx, []OrderRequest{entryReq, hedgeReq})
	if err != nil {
		if errors.Is(err, ErrCrossing) {
			a.postOnly.RecordCrossing(plan.Symbol)
			return Placement{Outcome: PlacementCrossingRetry}, nil
		}
		return Placement{}, err
	}
	if len(placed) != 2 {
		return Placement{}, errors.New("core: exchange returned wrong leg count")
	}

	entryLeg := Leg{Role: RoleEntry, IntendedSize: plan.EntrySize, IntendedPrice: plan.EntryPrice, Order: Order{
		ExchangeID: placed[0].ExchangeID, Token: entryReq.Token, Side: OrderBuy,
		Price: plan.EntryPrice, Size: plan.EntrySize, Type: orderType, Status: OrderPending,
	}}
	hedgeLeg := Leg{Role: RoleHedge, IntendedSize: plan.HedgeSize, IntendedPrice: plan.HedgePrice, Order: Order{
		ExchangeID: placed[1].ExchangeID, Token: hedgeReq.Token, Side: OrderBuy,
		Price: plan.HedgePrice, Size: plan.HedgeSize, Type: orderType, Status: OrderPending,
	}}

	now := a.clock.Now()
	entryRec := legToRecord(plan, m, entryLeg, now)
	hedgeRec := legToRecord(plan, m, hedgeLeg, now)
	if err := persist(entryRec, hedgeRec); err != nil {
		return Placement{}, err
	}

	a.clock.Sleep(a.settleDelay)

	crossed := false
	for _, leg := range []*Leg{&entryLeg, &hedgeLeg} {
		state, err := a.exchange.GetOrder(ctx, leg.Order.ExchangeID)
		if err != nil {
			if errors.Is(err, ErrCrossing) {
				crossed = true
				continue
			}
			log.Warn().Err(err).Str("exchangeId", leg.Order.ExchangeID).Msg("⚠️ getOrder failed during settle check")
			leg.Order.Status = OrderLive
			continue
		}
		leg.Order.Status = classifyFill(state)
		leg.Order.FilledSize = state.FilledSize
		leg.Order.AverageFillPrice = state.AverageFillPrice
	}

	if crossed {
		if entryLeg.Order.Status == OrderLive {
			_, _ = a.exchange.Cancel(ctx, entryLeg.Order.ExchangeID)
		}
		if hedgeLeg.Order.Status == OrderLive {
			_, _ = a.exchange.Cancel(ctx, hedgeLeg.Order.ExchangeID)
		}
		a.postOnly.RecordCrossing(plan.Symbol)
		return Placement{Outcome: PlacementCrossingRetry, Entry: entryLeg, Hedge: hedgeLeg}, nil
	}

	a.postOnly.RecordAccepted(plan.Symbol)
	return Placement{Outcome: PlacementActive, Entry: entryLeg, Hedge: hedgeLeg}, nil
}

// classifyFill applies invariant I3: FILLED with zero filled size is a
// phantom response and must be treated as still LIVE.
func classifyFill(state OrderState) OrderStatus {
	if state.Status == OrderFilled && state.FilledSize.IsZero() {
		log.Warn().Msg("⚠️ phantom FILLED status with zero filled size, treating as LIVE")
		return OrderLive
	}
	if state.FilledSize.IsPositive() && (state.Status == OrderFilled || state.Status == OrderPartiallyFilled) {
		return state.Status
	}
	return state.Status
}

func legToRecord(plan Plan, m *Market, leg Leg, now time.Time) *TradeRecord {
	side := plan.EntrySide
	if leg.Role == RoleHedge {
		side = plan.EntrySide.Opposite()
	}
	betCollateral := leg.IntendedPrice.Mul(leg.IntendedSize)
	return &TradeRecord{
		PairID:        m.Key().Symbol + "|" + m.WindowStart.Format(time.RFC3339),
		Role:          leg.Role,
		Symbol:        m.Symbol,
		WindowStart:   m.WindowStart,
		WindowEnd:     m.WindowEnd,
		Side:          side,
		EntryPrice:    leg.IntendedPrice,
		FilledSize:    leg.Order.FilledSize,
		BetCollateral: betCollateral,
		OrderID:       leg.Order.ExchangeID,
		OrderStatus:   leg.Order.Status,
		Outcome:       OutcomeOpen,
		CreatedAt:     now,
	}
}
