// Package mailer delivers notification emails through one or more providers.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jmehdipour/topic-notifier/internal/model"
)

var (
	ErrNoHealthy = errors.New("no healthy mail providers")
	ErrNoAcquire = errors.New("mail provider not acquired")

	// ErrInvalidAddress marks an email no provider could ever deliver. It is
	// not retried and does not count against a provider's breaker.
	ErrInvalidAddress = errors.New("invalid email address")
)

// Transport sends a single email.
type Transport interface {
	Send(ctx context.Context, e model.Email) error
}

// Provider is a Transport guarded by its own breaker.
type Provider interface {
	Transport
	Name() string
	Ready() bool
	Acquire() bool
}

// Dispatcher round-robins emails across ready providers, retrying up to
// attempts times and returning the last error.
type Dispatcher struct {
	providers []Provider
	attempts  int
	rr        atomic.Uint64
}

func NewDispatcher(providers []Provider, attempts int) *Dispatcher {
	if attempts < 1 {
		attempts = 2
	}
	return &Dispatcher{providers: providers, attempts: attempts}
}

var _ Transport = (*Dispatcher)(nil)

func (d *Dispatcher) Send(ctx context.Context, e model.Email) error {
	if _, err := buildMessage(e); err != nil {
		return fmt.Errorf("send to %s: %w", e.To, err)
	}

	var last error
	for i := 0; i < d.attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := d.sendOnce(ctx, e)
		if err == nil {
			return nil
		}
		last = err
	}
	return fmt.Errorf("send to %s: %w", e.To, last)
}

func (d *Dispatcher) sendOnce(ctx context.Context, e model.Email) error {
	p, err := d.pick()
	if err != nil {
		return err
	}
	if !p.Acquire() {
		return ErrNoAcquire
	}
	return p.Send(ctx, e)
}

func (d *Dispatcher) pick() (Provider, error) {
	ready := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.Ready() {
			ready = append(ready, p)
		}
	}
	if len(ready) == 0 {
		return nil, ErrNoHealthy
	}

	n := d.rr.Add(1) - 1
	return ready[n%uint64(len(ready))], nil
}
