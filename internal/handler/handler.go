// Package handler holds the consumers of queued messages. Handlers keep no
// mutable state between invocations, so one instance may serve many goroutines.
package handler

import (
	"context"
	"fmt"

	"github.com/jmehdipour/topic-notifier/internal/model"
)

// Handler processes one decoded message.
type Handler interface {
	Handle(ctx context.Context, msg model.Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg model.Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg model.Message) error { return f(ctx, msg) }

// Router sends each message to the handler registered for its kind.
type Router struct {
	routes map[model.Kind]Handler
}

func NewRouter() *Router {
	return &Router{routes: make(map[model.Kind]Handler)}
}

// Register must be called before the router is shared between goroutines.
func (r *Router) Register(k model.Kind, h Handler) *Router {
	r.routes[k] = h
	return r
}

func (r *Router) Handle(ctx context.Context, msg model.Message) error {
	h, ok := r.routes[msg.Kind()]
	if !ok {
		return fmt.Errorf("no handler for %q", msg.Kind())
	}
	return h.Handle(ctx, msg)
}

type envelopeIDKey struct{}

// WithEnvelopeID attaches the id of the envelope being handled.
func WithEnvelopeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, envelopeIDKey{}, id)
}

func EnvelopeID(ctx context.Context) string {
	id, _ := ctx.Value(envelopeIDKey{}).(string)
	return id
}
