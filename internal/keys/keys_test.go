package keys

import (
	"errors"
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestGenerateRoundTrip(t *testing.T) {
	k, err := Generate()
	if err != nil {
		t.Fatal(err)
	}

	nsec, err := k.Nsec()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(nsec, "nsec1") {
		t.Fatalf("expected nsec encoding, got %q", nsec)
	}

	decoded, err := Decode(nsec)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.PublicKey() != k.PublicKey() {
		t.Fatal("nsec round trip changed the derived public key")
	}
}

func TestDecodeHex(t *testing.T) {
	k, err := Generate()
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := Decode(k.Hex())
	if err != nil {
		t.Fatal(err)
	}
	if decoded.PublicKey() != k.PublicKey() {
		t.Fatal("hex decode changed the derived public key")
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, bad := range []string{"nsec1qqqqqqqq", "not-a-key", "abcd"} {
		if _, err := Decode(bad); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Decode(%q): expected ErrInvalidKey, got %v", bad, err)
		}
	}
}

func TestDecodeEmptyIsConfigError(t *testing.T) {
	if _, err := Decode("  "); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
}

func TestSignProducesVerifiableEvent(t *testing.T) {
	k, err := Generate()
	if err != nil {
		t.Fatal(err)
	}

	ev := nostr.Event{
		Kind:      nostr.KindTextNote,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{{"r", "https://example.com/"}},
		Content:   "signed",
	}
	if err := k.Sign(&ev); err != nil {
		t.Fatal(err)
	}

	if ev.PubKey != k.PublicKey() {
		t.Fatal("signing must stamp the signer's pubkey")
	}
	ok, err := ev.CheckSignature()
	if err != nil || !ok {
		t.Fatalf("signature did not verify: ok=%v err=%v", ok, err)
	}
}

func TestZeroKeyRefusesToSign(t *testing.T) {
	var k SecretKey
	ev := nostr.Event{Kind: nostr.KindTextNote}
	if err := k.Sign(&ev); !errors.Is(err, ErrNoKey) {
		t.Fatalf("expected ErrNoKey, got %v", err)
	}
}
