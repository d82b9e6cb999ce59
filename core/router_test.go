package core

import (
	"testing"

	"github.com/web3guy0/atomichedge/feeds"
)

func TestRouterOnTickAndQuote(t *testing.T) {
	r := NewRouter()

	if _, ok := r.Quote("tok-1"); ok {
		t.Fatal("Quote should report false before any tick arrives")
	}

	r.OnTick(feeds.Tick{Asset: "tok-1", BestBid: d("0.45"), BestAsk: d("0.47"), Mid: d("0.46")}, 100)

	q, ok := r.Quote("tok-1")
	if !ok {
		t.Fatal("Quote should report true after a tick")
	}
	if !q.BestBid.Equal(d("0.45")) || !q.BestAsk.Equal(d("0.47")) {
		t.Errorf("quote = %+v, want bid 0.45 / ask 0.47", q)
	}
	if q.UpdatedAt != 100 {
		t.Errorf("UpdatedAt = %d, want 100", q.UpdatedAt)
	}
}

func TestRouterOnTickOverwritesPreviousQuote(t *testing.T) {
	r := NewRouter()
	r.OnTick(feeds.Tick{Asset: "tok-1", BestBid: d("0.40")}, 1)
	r.OnTick(feeds.Tick{Asset: "tok-1", BestBid: d("0.55")}, 2)

	bid, ok := r.BestBid("tok-1")
	if !ok || !bid.Equal(d("0.55")) {
		t.Errorf("BestBid = %v, ok=%v, want 0.55", bid, ok)
	}
}

func TestRouterBestAskUnknownToken(t *testing.T) {
	r := NewRouter()
	ask, ok := r.BestAsk("missing")
	if ok {
		t.Error("BestAsk should report false for an unknown token")
	}
	if !ask.IsZero() {
		t.Error("BestAsk should be zero-value for an unknown token")
	}
}
