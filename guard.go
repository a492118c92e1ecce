package presale

import "context"

type payoutKey struct{}

// inPayout marks ctx as running inside an outbound transfer. Token clients
// must pass the context they receive through to any callback.
func inPayout(ctx context.Context) context.Context {
	return context.WithValue(ctx, payoutKey{}, true)
}

func isPayout(ctx context.Context) bool {
	v, _ := ctx.Value(payoutKey{}).(bool)
	return v
}

// lock takes the write lock for a mutator. Calls made from inside a
// payout transfer are rejected before the lock so they cannot deadlock.
func (e *Engine) lock(ctx context.Context) error {
	if isPayout(ctx) {
		return ErrReentrantCall
	}
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return ErrNotStarted
	}
	return nil
}

// rlock takes the read lock for a query. A payout transfer runs under the
// write lock, so a query from inside it is rejected instead of blocking.
func (e *Engine) rlock(ctx context.Context) error {
	if isPayout(ctx) {
		return ErrReentrantCall
	}
	e.mu.RLock()
	return nil
}

// events collects hook calls to run once the lock is released.
type events []func(ctx context.Context)

func (ev *events) add(fn func(ctx context.Context)) { *ev = append(*ev, fn) }

func (ev events) fire(ctx context.Context) {
	for _, fn := range ev {
		fn(ctx)
	}
}
