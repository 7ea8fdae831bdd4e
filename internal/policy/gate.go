package policy

import "context"

// Gate bounds concurrent access to the inference backend. Model inference is
// the scarce shared resource; on commodity hardware only one or two calls can
// run at once without exhausting memory. The gate is an explicitly passed
// handle so concurrent runs share one budget instead of each assuming the
// whole machine.
type Gate struct {
	slots chan struct{}
}

// NewGate creates a gate permitting at most n concurrent acquisitions.
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or the context ends.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot acquired earlier.
func (g *Gate) Release() {
	<-g.slots
}
