package signer

import (
	"context"
	"errors"
	"sync"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/keys"
	"github.com/Symbiosis-Lab/moss-social/internal/store"
)

// localKeyName is the storage slot holding the fallback private key.
const localKeyName = "moss_fallback_key"

// Local is the last-resort signer: a real key generated on first use and
// kept in persistent storage, which owns it beyond the page view.
type Local struct {
	kv  store.KV
	log zerolog.Logger

	once    sync.Once
	key     keys.SecretKey
	isNew   bool
	initErr error
}

// NewLocal creates the fallback signer. The key is loaded or generated
// lazily on first use.
func NewLocal(kv store.KV, log zerolog.Logger) *Local {
	return &Local{kv: kv, log: log.With().Str("signer", "local").Logger()}
}

func (l *Local) init(ctx context.Context) error {
	l.once.Do(func() {
		stored, err := l.kv.Get(ctx, localKeyName)
		switch {
		case err == nil:
			l.key, l.initErr = keys.Decode(stored)
			return
		case !errors.Is(err, store.ErrNotFound):
			l.initErr = err
			return
		}

		key, err := keys.Generate()
		if err != nil {
			l.initErr = err
			return
		}
		if err := l.kv.Set(ctx, localKeyName, key.Hex()); err != nil {
			l.initErr = err
			return
		}
		l.key = key
		l.isNew = true
		l.log.Info().Msg("generated fallback key")
	})
	return l.initErr
}

func (l *Local) PublicKey(ctx context.Context) (string, error) {
	if err := l.init(ctx); err != nil {
		return "", err
	}
	return l.key.PublicKey(), nil
}

func (l *Local) SignEvent(ctx context.Context, ev *nostr.Event) error {
	if err := l.init(ctx); err != nil {
		return err
	}
	return l.key.Sign(ev)
}

func (l *Local) Available(ctx context.Context) bool {
	return l.init(ctx) == nil
}

func (l *Local) Kind() Kind { return KindLocal }

// IsNewKey reports whether the key was generated this session; the UI uses
// it to prompt the visitor to back the key up.
func (l *Local) IsNewKey() bool { return l.isNew }

// UpgradeAvailable reports whether a stronger signer should be offered.
// Always true for the fallback tier.
func (l *Local) UpgradeAvailable() bool { return true }
