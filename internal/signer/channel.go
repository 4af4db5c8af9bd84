package signer

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// The companion channel encrypts each payload to the peer's static X25519
// key with a fresh ephemeral key.
// Wire format: ephemeral_pk[32] + nonce[12] + ciphertext[N+16], base64.

const (
	channelInfo     = "moss-companion-v1"
	ephemeralPKSize = 32
	nonceSize       = 12
	keySize         = 32
	tagSize         = 16
	minSealedLen    = ephemeralPKSize + nonceSize + tagSize
)

// ChannelError represents an encryption/decryption failure on the
// companion channel.
type ChannelError struct {
	Message string
}

func (e *ChannelError) Error() string { return e.Message }

// ChannelKey is one side's static X25519 keypair. The session generates a
// fresh one; the companion's public half comes from pairing configuration.
type ChannelKey struct {
	priv []byte
	pub  []byte
}

// NewChannelKey generates a static channel keypair.
func NewChannelKey() (*ChannelKey, error) {
	priv := make([]byte, keySize)
	if _, err := rand.Read(priv); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	return &ChannelKey{priv: priv, pub: pub}, nil
}

// PublicHex returns the hex-encoded public half, shared with the peer so
// it can seal replies.
func (k *ChannelKey) PublicHex() string {
	return hex.EncodeToString(k.pub)
}

// deriveChannelKey derives the AEAD key with HKDF-SHA256 over the ECDH
// shared secret, salted by both public keys.
func deriveChannelKey(sharedSecret, ephemeralPK, recipientPK []byte) ([]byte, error) {
	salt := make([]byte, 0, len(ephemeralPK)+len(recipientPK))
	salt = append(salt, ephemeralPK...)
	salt = append(salt, recipientPK...)

	hkdfReader := hkdf.New(sha256.New, sharedSecret, salt, []byte(channelInfo))
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Seal encrypts a payload to the recipient's hex-encoded X25519 public key.
func Seal(plaintext, recipientPubHex string) (string, error) {
	recipientPub, err := hex.DecodeString(recipientPubHex)
	if err != nil || len(recipientPub) != keySize {
		return "", &ChannelError{Message: fmt.Sprintf("invalid recipient channel key: %v", err)}
	}

	ephPriv := make([]byte, keySize)
	if _, err := rand.Read(ephPriv); err != nil {
		return "", err
	}
	ephPub, err := curve25519.X25519(ephPriv, curve25519.Basepoint)
	if err != nil {
		return "", err
	}

	sharedSecret, err := curve25519.X25519(ephPriv, recipientPub)
	if err != nil {
		return "", err
	}

	key, err := deriveChannelKey(sharedSecret, ephPub, recipientPub)
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := aead.Seal(nil, nonce, []byte(plaintext), nil)

	wire := make([]byte, 0, len(ephPub)+nonceSize+len(ciphertext))
	wire = append(wire, ephPub...)
	wire = append(wire, nonce...)
	wire = append(wire, ciphertext...)

	return base64.StdEncoding.EncodeToString(wire), nil
}

// Open decrypts a payload sealed to this channel key.
func (k *ChannelKey) Open(sealedB64 string) (string, error) {
	wire, err := base64.StdEncoding.DecodeString(sealedB64)
	if err != nil {
		return "", &ChannelError{Message: fmt.Sprintf("invalid base64 payload: %v", err)}
	}
	if len(wire) < minSealedLen {
		return "", &ChannelError{Message: fmt.Sprintf("payload too short: %d bytes, minimum %d", len(wire), minSealedLen)}
	}

	ephPK := wire[:ephemeralPKSize]
	nonce := wire[ephemeralPKSize : ephemeralPKSize+nonceSize]
	ciphertext := wire[ephemeralPKSize+nonceSize:]

	sharedSecret, err := curve25519.X25519(k.priv, ephPK)
	if err != nil {
		return "", &ChannelError{Message: "decryption failed: invalid ephemeral key"}
	}

	key, err := deriveChannelKey(sharedSecret, ephPK, k.pub)
	if err != nil {
		return "", err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", &ChannelError{Message: "decryption failed: wrong key or tampered payload"}
	}

	return string(plaintext), nil
}
