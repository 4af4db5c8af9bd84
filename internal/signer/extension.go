package signer

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
)

// Provider is the surface a host application installs to act as the
// first-tier signer: the in-process analog of a key-holding browser
// extension. The key never leaves the provider.
type Provider interface {
	PublicKey(ctx context.Context) (string, error)
	SignEvent(ctx context.Context, ev *nostr.Event) error
}

// Extension wraps a host-installed Provider as a Signer.
type Extension struct {
	provider Provider
}

// NewExtension wraps the provider; a nil provider is never available.
func NewExtension(p Provider) *Extension {
	return &Extension{provider: p}
}

func (e *Extension) PublicKey(ctx context.Context) (string, error) {
	return e.provider.PublicKey(ctx)
}

func (e *Extension) SignEvent(ctx context.Context, ev *nostr.Event) error {
	return e.provider.SignEvent(ctx, ev)
}

func (e *Extension) Available(ctx context.Context) bool {
	if e.provider == nil {
		return false
	}
	_, err := e.provider.PublicKey(ctx)
	return err == nil
}

func (e *Extension) Kind() Kind { return KindExtension }
