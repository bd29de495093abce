package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// LinkState is the realtime subscription lifecycle state.
type LinkState int32

const (
	LinkConnecting LinkState = iota
	LinkLive
	LinkDropped
	LinkReconnecting
)

func (s LinkState) String() string {
	switch s {
	case LinkConnecting:
		return "connecting"
	case LinkLive:
		return "live"
	case LinkDropped:
		return "dropped"
	case LinkReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// link owns the realtime subscription for a store. It reconnects with capped
// exponential backoff after a drop and falls back to polling the gateway
// while the subscription is not live.
type link struct {
	s *Store

	state  atomic.Int32
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

func newLink(s *Store) *link {
	ctx, cancel := context.WithCancel(context.Background())
	return &link{
		s:      s,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (l *link) State() LinkState {
	return LinkState(l.state.Load())
}

func (l *link) setState(st LinkState) {
	l.state.Store(int32(st))
}

func (l *link) start() {
	l.startOnce.Do(func() {
		l.started.Store(true)
		go l.run()
	})
}

// stop cancels the link and waits for the run loop to release the
// subscription. Idempotent.
func (l *link) stop() {
	l.stopOnce.Do(func() {
		l.cancel()
		if l.started.Load() {
			<-l.done
		}
	})
}

func (l *link) run() {
	defer close(l.done)

	backoff := l.s.opts.BackoffInitial
	attempt := 0

	for {
		if l.ctx.Err() != nil {
			return
		}

		if attempt == 0 {
			l.setState(LinkConnecting)
		} else {
			l.setState(LinkReconnecting)
		}
		attempt++

		h, err := l.s.gw.Subscribe(l.ctx, l.s.session.UserID)
		if err != nil {
			l.setState(LinkDropped)
			l.s.logger.Warn("realtime subscribe failed",
				zap.Int("attempt", attempt), zap.Error(err))
			if !l.waitBackoff(backoff) {
				return
			}
			backoff = nextBackoff(backoff, l.s.opts.BackoffMax)
			continue
		}

		l.setState(LinkLive)
		backoff = l.s.opts.BackoffInitial

	consume:
		for {
			select {
			case <-l.ctx.Done():
				_ = l.s.gw.Unsubscribe(h)
				return
			case rec, ok := <-h.Records():
				if !ok {
					break consume
				}
				l.s.ingestPush(rec)
			}
		}

		// Subscription dropped underneath us.
		_ = l.s.gw.Unsubscribe(h)
		l.setState(LinkDropped)
		l.s.logger.Warn("realtime subscription dropped")
		if !l.waitBackoff(backoff) {
			return
		}
		backoff = nextBackoff(backoff, l.s.opts.BackoffMax)
	}
}

// waitBackoff sleeps for the backoff duration and polls the gateway once so a
// session without a live subscription still converges. Returns false when the
// link is being stopped.
func (l *link) waitBackoff(d time.Duration) bool {
	pollCtx, cancel := context.WithTimeout(l.ctx, d)
	_ = l.s.Refresh(pollCtx)
	cancel()

	select {
	case <-l.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}
