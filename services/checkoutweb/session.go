package checkoutweb

import (
	"context"
	"sync"
	"time"

	"github.com/MarcGrol/consultcheckout/services/checkoutflow"
)

// paymentRun is one execution of the payment step. It outlives the request that started it:
// the gateway callbacks arrive on later requests.
type paymentRun struct {
	cancel context.CancelFunc
	done   chan struct{}
	result checkoutflow.PaymentResult
	err    error
}

func (r *paymentRun) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// wait reports false when c is done before the run finished.
func (r *paymentRun) wait(c context.Context) bool {
	select {
	case <-r.done:
		return true
	case <-c.Done():
		return false
	}
}

type checkoutSession struct {
	flow   *checkoutflow.Session
	bridge *checkoutflow.Bridge

	mu       sync.Mutex
	run      *paymentRun
	lastSeen time.Time
}

func newCheckoutSession(flow *checkoutflow.Session, bridge *checkoutflow.Bridge, now time.Time) *checkoutSession {
	return &checkoutSession{
		flow:     flow,
		bridge:   bridge,
		lastSeen: now,
	}
}

func (s *checkoutSession) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.After(s.lastSeen) {
		s.lastSeen = now
	}
}

func (s *checkoutSession) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastSeen.Before(cutoff)
}

// startPayment runs Pay in the background for at most maxDuration. Only one run is active per session.
func (s *checkoutSession) startPayment(maxDuration time.Duration) (*paymentRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil && !s.run.finished() {
		return nil, checkoutflow.ErrStepInProgress
	}

	// an announcement nobody picked up belongs to an earlier run
	select {
	case <-s.bridge.Opened():
	default:
	}

	c, cancel := context.WithTimeout(context.Background(), maxDuration)
	run := &paymentRun{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.run = run

	go func() {
		defer cancel()
		run.result, run.err = s.flow.Pay(c)
		close(run.done)
	}()

	return run, nil
}

func (s *checkoutSession) currentRun() *paymentRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run
}

// abandon cancels a payment that is still waiting for the collector.
func (s *checkoutSession) abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil {
		s.run.cancel()
	}
}
