package checkoutflow

import (
	"context"
	"sync"

	"github.com/MarcGrol/consultcheckout/services/checkoutapi"
)

// Opened is announced when the collector is opened, so the page can render it.
type Opened struct {
	Script  Script       `json:"script"`
	Options ModalOptions `json:"options"`
}

type pendingOutcome struct {
	once    sync.Once
	done    chan struct{}
	outcome Outcome
}

func (p *pendingOutcome) resolve(outcome Outcome) bool {
	resolved := false
	p.once.Do(func() {
		p.outcome = outcome
		resolved = true
		close(p.done)
	})
	return resolved
}

// Bridge is a Collector whose outcome is delivered by the gateway's success and dismiss callbacks.
// Each opening resolves exactly once.
type Bridge struct {
	mu      sync.Mutex
	pending *pendingOutcome
	opened  chan Opened
}

func NewBridge() *Bridge {
	return &Bridge{
		opened: make(chan Opened, 1),
	}
}

func (b *Bridge) Open(c context.Context, script Script, options ModalOptions) (Outcome, error) {
	p := &pendingOutcome{done: make(chan struct{})}

	b.mu.Lock()
	if b.pending != nil {
		b.mu.Unlock()
		return Outcome{}, ErrStepInProgress
	}
	b.pending = p
	// an announcement nobody picked up belongs to an earlier opening
	select {
	case <-b.opened:
	default:
	}
	b.opened <- Opened{Script: script, Options: options}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		if b.pending == p {
			b.pending = nil
		}
		b.mu.Unlock()
	}()

	select {
	case <-p.done:
	case <-c.Done():
		p.resolve(Outcome{Cancelled: true})
	}

	return p.outcome, nil
}

func (b *Bridge) Opened() <-chan Opened {
	return b.opened
}

func (b *Bridge) Succeed(proof checkoutapi.VerificationProof) error {
	return b.resolve(Outcome{Proof: proof})
}

func (b *Bridge) Dismiss() error {
	return b.resolve(Outcome{Cancelled: true})
}

func (b *Bridge) resolve(outcome Outcome) error {
	b.mu.Lock()
	p := b.pending
	b.mu.Unlock()

	if p == nil {
		return ErrNoPendingPayment
	}
	if !p.resolve(outcome) {
		return ErrAlreadyResolved
	}
	return nil
}
