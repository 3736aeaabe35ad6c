package issuer

import (
	"sync"

	"github.com/ruteri/key-issuer/interfaces"
)

// Pending is the shared handle of one generation. It completes exactly once.
type Pending struct {
	identity interfaces.Identity
	done     chan struct{}

	mu        sync.Mutex
	completed bool
	outcome   interfaces.Outcome
	callbacks []func(interfaces.Outcome)
}

func newPending(identity interfaces.Identity) *Pending {
	return &Pending{
		identity: identity,
		done:     make(chan struct{}),
	}
}

func (p *Pending) Identity() interfaces.Identity {
	return p.identity
}

// OnComplete registers fn to receive the outcome. fn runs on the goroutine that
// completes the generation, or right away on the caller's goroutine if the
// outcome is already known. fn must not block.
func (p *Pending) OnComplete(fn func(interfaces.Outcome)) {
	p.mu.Lock()
	if !p.completed {
		p.callbacks = append(p.callbacks, fn)
		p.mu.Unlock()
		return
	}
	outcome := p.outcome
	p.mu.Unlock()

	fn(outcome)
}

// Done is closed once the outcome is available.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Outcome returns the outcome and whether the generation has completed.
func (p *Pending) Outcome() (interfaces.Outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome, p.completed
}

func (p *Pending) complete(outcome interfaces.Outcome) {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return
	}
	p.completed = true
	p.outcome = outcome
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn(outcome)
	}
}
