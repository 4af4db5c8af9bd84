package signer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/keys"
	"github.com/Symbiosis-Lab/moss-social/internal/relay"
)

// companionRPCKind is the event kind carrying signing requests and
// responses between a session and its paired companion device.
const companionRPCKind = 24133

const (
	companionPingTimeout = 3 * time.Second
	companionRPCTimeout  = 10 * time.Second
)

var errCompanionUnreachable = errors.New("companion did not respond")

// CompanionConfig is established once during out-of-band pairing.
type CompanionConfig struct {
	// RelayURL is the relay both sides agreed to meet on.
	RelayURL string

	// Pubkey is the companion's transport identity (hex).
	Pubkey string

	// ChannelPub is the companion's static X25519 channel key (hex); all
	// request payloads are sealed to it.
	ChannelPub string
}

// Companion signs through a paired device over an encrypted relay-mediated
// channel. The session uses a transient transport key, so the visitor's
// real key never exists on this side.
type Companion struct {
	cfg CompanionConfig
	log zerolog.Logger

	transport  keys.SecretKey
	channel    *ChannelKey
	rpcPubkey  string // cached result of get_public_key
	transportE error
}

// NewCompanion prepares the transport and channel keys for a session.
func NewCompanion(cfg CompanionConfig, log zerolog.Logger) *Companion {
	c := &Companion{cfg: cfg, log: log.With().Str("signer", "companion").Logger()}

	c.transport, c.transportE = keys.Generate()
	if c.transportE == nil {
		c.channel, c.transportE = NewChannelKey()
	}
	return c
}

type companionRequest struct {
	ID       string       `json:"id"`
	Method   string       `json:"method"`
	Event    *nostr.Event `json:"event,omitempty"`
	ReplyKey string       `json:"reply_key"`
}

type companionResponse struct {
	ID     string       `json:"id"`
	Result string       `json:"result,omitempty"`
	Event  *nostr.Event `json:"event,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// rpc publishes one sealed request and waits for the sealed response.
func (c *Companion) rpc(ctx context.Context, method string, payload *nostr.Event, timeout time.Duration) (*companionResponse, error) {
	if c.transportE != nil {
		return nil, c.transportE
	}

	req := companionRequest{
		ID:       uuid.NewString(),
		Method:   method,
		Event:    payload,
		ReplyKey: c.channel.PublicHex(),
	}
	plain, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	sealed, err := Seal(string(plain), c.cfg.ChannelPub)
	if err != nil {
		return nil, err
	}

	ev := nostr.Event{
		Kind:      companionRPCKind,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{{"p", c.cfg.Pubkey}},
		Content:   sealed,
	}
	if err := c.transport.Sign(&ev); err != nil {
		return nil, err
	}

	conn, err := relay.Dial(ctx, c.cfg.RelayURL, c.log)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.Publish(ctx, &ev); err != nil {
		return nil, err
	}

	since := ev.CreatedAt - 1
	reply, err := conn.AwaitFirst(ctx, nostr.Filters{{
		Kinds:   []int{companionRPCKind},
		Authors: []string{c.cfg.Pubkey},
		Tags:    nostr.TagMap{"p": []string{c.transport.PublicKey()}},
		Since:   &since,
	}}, timeout)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, errCompanionUnreachable
	}

	opened, err := c.channel.Open(reply.Content)
	if err != nil {
		return nil, err
	}
	var resp companionResponse
	if err := json.Unmarshal([]byte(opened), &resp); err != nil {
		return nil, err
	}
	if resp.ID != req.ID {
		return nil, fmt.Errorf("companion response for unknown request %q", resp.ID)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("companion refused: %s", resp.Error)
	}
	return &resp, nil
}

func (c *Companion) PublicKey(ctx context.Context) (string, error) {
	if c.rpcPubkey != "" {
		return c.rpcPubkey, nil
	}
	resp, err := c.rpc(ctx, "get_public_key", nil, companionRPCTimeout)
	if err != nil {
		return "", err
	}
	c.rpcPubkey = resp.Result
	return c.rpcPubkey, nil
}

func (c *Companion) SignEvent(ctx context.Context, ev *nostr.Event) error {
	resp, err := c.rpc(ctx, "sign_event", ev, companionRPCTimeout)
	if err != nil {
		return err
	}
	if resp.Event == nil {
		return errors.New("companion returned no event")
	}
	if ok, err := resp.Event.CheckSignature(); err != nil || !ok {
		return errors.New("companion returned an invalid signature")
	}
	*ev = *resp.Event
	return nil
}

func (c *Companion) Available(ctx context.Context) bool {
	if c.cfg.RelayURL == "" || c.cfg.Pubkey == "" || c.cfg.ChannelPub == "" {
		return false
	}
	_, err := c.rpc(ctx, "ping", nil, companionPingTimeout)
	if err != nil {
		c.log.Debug().Err(err).Msg("companion unavailable")
		return false
	}
	return true
}

func (c *Companion) Kind() Kind { return KindCompanion }
