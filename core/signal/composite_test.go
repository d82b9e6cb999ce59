package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/web3guy0/atomichedge/core"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type fakePriceFeed struct {
	price decimal.Decimal
}

func (f *fakePriceFeed) GetPrice(symbol string) decimal.Decimal { return f.price }

func testMarket(symbol string, start time.Time) *core.Market {
	return &core.Market{
		Symbol:      symbol,
		WindowStart: start,
		WindowEnd:   start.Add(15 * time.Minute),
		UpToken:     core.Token{ID: symbol + "-up-" + start.String(), Side: core.SideUp},
		DownToken:   core.Token{ID: symbol + "-down-" + start.String(), Side: core.SideDown},
		TickSize:    core.DefaultTickSize,
	}
}

func TestCompositeSignalSourceZeroPriceReturnsErrNoMarket(t *testing.T) {
	css := NewCompositeSignalSource(&fakePriceFeed{price: decimal.Zero}, nil, core.NewMarketRegistry())

	sig, err := css.Signal(context.Background(), "BTC", time.Now())
	if !errors.Is(err, core.ErrNoMarket) {
		t.Fatalf("err = %v, want ErrNoMarket", err)
	}
	if sig.Bias != core.BiasNeutral {
		t.Errorf("Bias = %v, want NEUTRAL", sig.Bias)
	}
}

func TestCompositeSignalSourceFallsBackToSecondaryFeed(t *testing.T) {
	reg := core.NewMarketRegistry()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.Upsert(testMarket("BTC", start))

	primary := &fakePriceFeed{price: decimal.Zero}
	fallback := &fakePriceFeed{price: d("100")}
	css := NewCompositeSignalSource(primary, fallback, reg)

	_, err := css.Signal(context.Background(), "BTC", start)
	if err != nil {
		t.Fatalf("Signal failed using fallback feed: %v", err)
	}
}

func TestCompositeSignalSourceNoActiveMarketReturnsErrNoMarket(t *testing.T) {
	css := NewCompositeSignalSource(&fakePriceFeed{price: d("100")}, nil, core.NewMarketRegistry())

	_, err := css.Signal(context.Background(), "BTC", time.Now())
	if !errors.Is(err, core.ErrNoMarket) {
		t.Fatalf("err = %v, want ErrNoMarket", err)
	}
}

func TestCompositeSignalSourceBiasUpOnPositiveROC(t *testing.T) {
	reg := core.NewMarketRegistry()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.Upsert(testMarket("BTC", start))

	feed := &fakePriceFeed{price: d("100")}
	css := NewCompositeSignalSource(feed, nil, reg)

	if _, err := css.Signal(context.Background(), "BTC", start); err != nil {
		t.Fatalf("first Signal failed: %v", err)
	}

	feed.price = d("105")
	sig, err := css.Signal(context.Background(), "BTC", start)
	if err != nil {
		t.Fatalf("second Signal failed: %v", err)
	}
	if sig.Bias != core.BiasUp {
		t.Fatalf("Bias = %v, want UP", sig.Bias)
	}
	// absROC=5 saturates scaled at 1, but ATR flips high-volatility tempering (x0.6).
	if !sig.Confidence.Equal(d("0.51")) {
		t.Errorf("Confidence = %v, want 0.51", sig.Confidence)
	}
	if !sig.PYes.Equal(d("0.755")) {
		t.Errorf("PYes = %v, want 0.755", sig.PYes)
	}
}

func TestCompositeSignalSourceBiasDownOnNegativeROC(t *testing.T) {
	reg := core.NewMarketRegistry()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.Upsert(testMarket("BTC", start))

	feed := &fakePriceFeed{price: d("100")}
	css := NewCompositeSignalSource(feed, nil, reg)

	if _, err := css.Signal(context.Background(), "BTC", start); err != nil {
		t.Fatalf("first Signal failed: %v", err)
	}

	feed.price = d("95")
	sig, err := css.Signal(context.Background(), "BTC", start)
	if err != nil {
		t.Fatalf("second Signal failed: %v", err)
	}
	if sig.Bias != core.BiasDown {
		t.Fatalf("Bias = %v, want DOWN", sig.Bias)
	}
	if !sig.Confidence.Equal(d("0.51")) {
		t.Errorf("Confidence = %v, want 0.51", sig.Confidence)
	}
	if !sig.PYes.Equal(d("0.245")) {
		t.Errorf("PYes = %v, want 0.245", sig.PYes)
	}
}

func TestCompositeSignalSourceFlatMomentumIsNeutral(t *testing.T) {
	reg := core.NewMarketRegistry()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.Upsert(testMarket("BTC", start))

	feed := &fakePriceFeed{price: d("100")}
	css := NewCompositeSignalSource(feed, nil, reg)

	sig, err := css.Signal(context.Background(), "BTC", start)
	if err != nil {
		t.Fatalf("Signal failed: %v", err)
	}
	if sig.Bias != core.BiasNeutral {
		t.Errorf("Bias = %v, want NEUTRAL on the first observation (no ROC yet)", sig.Bias)
	}
	if !sig.Confidence.IsZero() {
		t.Errorf("Confidence = %v, want 0", sig.Confidence)
	}
	if !sig.PYes.Equal(d("0.5")) {
		t.Errorf("PYes = %v, want 0.5", sig.PYes)
	}
}

func TestCompositeSignalSourceWindowRolloverResetsOpenPrice(t *testing.T) {
	reg := core.NewMarketRegistry()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window1 := testMarket("BTC", start)
	reg.Upsert(window1)

	feed := &fakePriceFeed{price: d("100")}
	css := NewCompositeSignalSource(feed, nil, reg)

	if _, err := css.Signal(context.Background(), "BTC", start); err != nil {
		t.Fatalf("window1 call 1 failed: %v", err)
	}

	feed.price = d("90")
	sig, err := css.Signal(context.Background(), "BTC", start)
	if err != nil {
		t.Fatalf("window1 call 2 failed: %v", err)
	}
	if sig.Bias != core.BiasDown {
		t.Fatalf("Bias = %v, want DOWN before rollover", sig.Bias)
	}

	// Roll over to a new window without moving price: windowOpen should reset
	// to the current price, so the stale DOWN call no longer applies.
	window2 := testMarket("BTC", start.Add(15*time.Minute))
	reg.Upsert(window2)

	sig, err = css.Signal(context.Background(), "BTC", start.Add(15*time.Minute))
	if err != nil {
		t.Fatalf("window2 call failed: %v", err)
	}
	if sig.Bias != core.BiasNeutral {
		t.Errorf("Bias = %v, want NEUTRAL right after rollover (price == reset windowOpen)", sig.Bias)
	}
}
