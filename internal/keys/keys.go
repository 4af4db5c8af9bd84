// Package keys decodes externally supplied encoded private keys, derives
// public identities, and signs events. The curve arithmetic itself lives in
// the protocol library; this package only orchestrates keys around it.
package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

var (
	ErrInvalidKey = errors.New("invalid private key")
	ErrNoKey      = errors.New("no signing key configured")
)

// SecretKey is a decoded signing key. The zero value is unusable; obtain one
// through Decode or Generate.
type SecretKey struct {
	hex    string
	pubkey string
}

// Decode accepts an nsec bech32 string or a raw 64-character hex key.
func Decode(encoded string) (SecretKey, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return SecretKey{}, ErrNoKey
	}

	var skHex string
	if strings.HasPrefix(encoded, "nsec1") {
		prefix, value, err := nip19.Decode(encoded)
		if err != nil || prefix != "nsec" {
			return SecretKey{}, fmt.Errorf("%w: malformed nsec encoding", ErrInvalidKey)
		}
		skHex = value.(string)
	} else {
		raw, err := hex.DecodeString(encoded)
		if err != nil || len(raw) != 32 {
			return SecretKey{}, fmt.Errorf("%w: expected nsec or 64 hex characters", ErrInvalidKey)
		}
		skHex = strings.ToLower(encoded)
	}

	pub, err := nostr.GetPublicKey(skHex)
	if err != nil {
		return SecretKey{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return SecretKey{hex: skHex, pubkey: pub}, nil
}

// Generate creates a fresh signing key.
func Generate() (SecretKey, error) {
	return Decode(nostr.GeneratePrivateKey())
}

// PublicKey returns the hex-encoded public key.
func (k SecretKey) PublicKey() string { return k.pubkey }

// Hex returns the raw hex form of the private key.
func (k SecretKey) Hex() string { return k.hex }

// Nsec returns the checksummed human-readable private key encoding.
func (k SecretKey) Nsec() (string, error) {
	return nip19.EncodePrivateKey(k.hex)
}

// Npub returns the checksummed human-readable public key encoding.
func (k SecretKey) Npub() (string, error) {
	return nip19.EncodePublicKey(k.pubkey)
}

// Sign fills in the event's pubkey, id, and signature.
func (k SecretKey) Sign(ev *nostr.Event) error {
	if k.hex == "" {
		return ErrNoKey
	}
	return ev.Sign(k.hex)
}
