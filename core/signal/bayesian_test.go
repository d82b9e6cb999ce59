package signal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/web3guy0/atomichedge/core"
)

func TestBayesianSignalSourceNotImplemented(t *testing.T) {
	b := NewBayesianSignalSource()
	_, err := b.Signal(context.Background(), "BTC", time.Now())
	if !errors.Is(err, core.ErrNotImplemented) {
		t.Errorf("err = %v, want ErrNotImplemented", err)
	}
}
