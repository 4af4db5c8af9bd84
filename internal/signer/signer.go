// Package signer presents interchangeable identity providers behind one
// capability contract and resolves the active one for a session. Callers
// hold only the Signer interface and never branch on a concrete variant.
package signer

import (
	"context"
	"errors"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/store"
)

// ErrNoSigner reports identity-resolution exhaustion: no tier could
// establish an identity. Surfaced to the visitor, never a crash.
var ErrNoSigner = errors.New("cannot establish identity: no signer available")

// Kind tags a signer variant.
type Kind string

const (
	KindExtension Kind = "extension"
	KindCompanion Kind = "companion"
	KindBridge    Kind = "bridge"
	KindLocal     Kind = "local"
)

// Signer is the four-operation capability contract every variant exposes.
type Signer interface {
	// PublicKey returns the hex public identity.
	PublicKey(ctx context.Context) (string, error)

	// SignEvent fills in the event's pubkey, id, and signature.
	SignEvent(ctx context.Context, ev *nostr.Event) error

	// Available reports whether this signer can serve the session.
	Available(ctx context.Context) bool

	// Kind identifies the variant for UI copy; behavior never depends on it.
	Kind() Kind
}

// Options configures the resolution chain. Zero-value tiers are skipped.
type Options struct {
	// Extension is a host-installed in-process signer, if any.
	Extension Provider

	// Companion configures a previously paired companion device.
	Companion *CompanionConfig

	// BridgeURL points at a hosted bridge signer endpoint.
	BridgeURL string

	// KV backs the local fallback key. Required: the chain must always be
	// able to terminate in the fallback tier.
	KV store.KV

	Log zerolog.Logger
}

// Resolve walks the fixed tier order — extension, companion, bridge, local
// fallback — and returns the first available signer. Callers cache the
// result for the session's lifetime; resolution is not repeated per sign
// request.
func Resolve(ctx context.Context, opts Options) (Signer, error) {
	var chain []Signer

	if opts.Extension != nil {
		chain = append(chain, NewExtension(opts.Extension))
	}
	if opts.Companion != nil {
		chain = append(chain, NewCompanion(*opts.Companion, opts.Log))
	}
	if opts.BridgeURL != "" {
		chain = append(chain, NewBridge(opts.BridgeURL))
	}
	if opts.KV != nil {
		chain = append(chain, NewLocal(opts.KV, opts.Log))
	}

	for _, s := range chain {
		if s.Available(ctx) {
			opts.Log.Debug().Str("kind", string(s.Kind())).Msg("signer resolved")
			return s, nil
		}
	}
	return nil, ErrNoSigner
}
