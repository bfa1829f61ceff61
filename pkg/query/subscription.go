package query

import (
	"context"
	"sync/atomic"
)

// subscription is the handle for one in-flight query stream. The canceled
// flag is set before the cancellation takes effect anywhere else, so result
// forwarding can reliably drop late emissions from a replaced stream.
type subscription struct {
	ctx      context.Context
	cancel   context.CancelFunc
	canceled atomic.Bool
}

func newSubscription(parent context.Context) *subscription {
	ctx, cancel := context.WithCancel(parent)
	return &subscription{ctx: ctx, cancel: cancel}
}

// stop marks the subscription canceled and cancels its context. It reports
// whether this call was the one that stopped it.
func (s *subscription) stop() bool {
	if s.canceled.CompareAndSwap(false, true) {
		s.cancel()
		return true
	}
	return false
}
