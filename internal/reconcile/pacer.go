package reconcile

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Pacer bounds how many requests run at once and how quickly new ones start.
type Pacer struct {
	limit   int
	limiter *rate.Limiter
}

// NewPacer returns a pacer allowing concurrency requests in flight and at
// most one request start per interval. interval <= 0 disables pacing and
// concurrency < 1 is treated as 1.
func NewPacer(concurrency int, interval time.Duration) *Pacer {
	if concurrency < 1 {
		concurrency = 1
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if interval > 0 {
		lim = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &Pacer{limit: concurrency, limiter: lim}
}

// Do calls fn for every index in [0, n) and waits for all calls to return.
// Failures stay with the caller: fn reports them itself, and one call never
// stops the others. fn is still called when ctx ends while it waits for a
// start slot, so it can record the failure.
func (p *Pacer) Do(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var g errgroup.Group
	g.SetLimit(p.limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			p.wait(ctx)
			fn(ctx, i)
			return nil
		})
	}
	g.Wait()
}

// wait blocks until the limiter grants a start or ctx ends. Unlike
// rate.Limiter.Wait it does not give up early when the delay would pass
// the ctx deadline.
func (p *Pacer) wait(ctx context.Context) {
	r := p.limiter.Reserve()
	d := r.Delay()
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		r.Cancel()
	}
}
