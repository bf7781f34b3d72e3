package net

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type completion struct {
	name  string
	apply func()
}

// Queue runs blocking API calls off the frame loop and hands the results
// back to it. Each call runs on its own goroutine; completions are buffered
// and applied by Drain on the loop goroutine, so callbacks never race with
// the simulation. After Close, pending and future completions are dropped.
type Queue struct {
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan completion
	inflight atomic.Int64
	closed   atomic.Bool
	log      *zap.Logger
}

func NewQueue(parent context.Context, size int, log *zap.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	ctx, cancel := context.WithCancel(parent)
	return &Queue{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan completion, size),
		log:    log,
	}
}

// Submit runs call on a new goroutine. When it returns, done(result, err)
// is queued for the loop. A nil done makes the call fire-and-forget.
func Submit[T any](q *Queue, name string, call func(ctx context.Context) (T, error), done func(T, error)) {
	if q.closed.Load() {
		return
	}
	q.inflight.Add(1)
	go func() {
		defer q.inflight.Add(-1)
		res, err := call(q.ctx)
		if err != nil {
			q.log.Debug("request failed", zap.String("request", name), zap.Error(err))
		}
		if done == nil {
			return
		}
		q.post(completion{name: name, apply: func() { done(res, err) }})
	}()
}

// Post queues fn to run on the loop. Safe to call from any goroutine; used
// by streaming sources such as the duel websocket feed.
func (q *Queue) Post(name string, fn func()) {
	if q.closed.Load() {
		return
	}
	q.post(completion{name: name, apply: fn})
}

func (q *Queue) post(c completion) {
	select {
	case q.done <- c:
	case <-q.ctx.Done():
	}
}

// Drain applies up to max queued completions (max <= 0 means all that are
// currently queued) and returns how many ran.
func (q *Queue) Drain(max int) int {
	n := 0
	for max <= 0 || n < max {
		select {
		case c := <-q.done:
			if q.closed.Load() {
				continue
			}
			c.apply()
			n++
		default:
			return n
		}
	}
	return n
}

// Settle applies completions until no call is in flight and nothing is
// queued, including calls submitted by the callbacks themselves.
func (q *Queue) Settle() int {
	n := 0
	for !q.closed.Load() && (q.inflight.Load() > 0 || len(q.done) > 0) {
		select {
		case c := <-q.done:
			if q.closed.Load() {
				continue
			}
			c.apply()
			n++
		case <-time.After(time.Millisecond):
		}
	}
	return n
}

// InFlight returns the number of calls that have not completed yet.
func (q *Queue) InFlight() int {
	return int(q.inflight.Load())
}

// Context is cancelled by Close.
func (q *Queue) Context() context.Context {
	return q.ctx
}

// Close cancels in-flight calls and discards their results.
func (q *Queue) Close() {
	if q.closed.Swap(true) {
		return
	}
	q.cancel()
}
