package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

// Bridge signs through a hosted signer endpoint, the cross-origin message
// channel analog: the key stays with the bridge service.
type Bridge struct {
	url    string
	client *http.Client
}

// NewBridge creates a bridge signer for the given endpoint URL.
func NewBridge(url string) *Bridge {
	return &Bridge{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type bridgeRequest struct {
	Method string       `json:"method"`
	Event  *nostr.Event `json:"event,omitempty"`
}

type bridgeResponse struct {
	Pubkey string       `json:"pubkey,omitempty"`
	Event  *nostr.Event `json:"event,omitempty"`
	Error  string       `json:"error,omitempty"`
}

func (b *Bridge) call(ctx context.Context, method string, ev *nostr.Event) (*bridgeResponse, error) {
	body, err := json.Marshal(bridgeRequest{Method: method, Event: ev})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		var br bridgeResponse
		_ = json.Unmarshal(respBody, &br)
		return nil, fmt.Errorf("bridge error %d: %s", resp.StatusCode, br.Error)
	}

	var br bridgeResponse
	if err := json.Unmarshal(respBody, &br); err != nil {
		return nil, err
	}
	if br.Error != "" {
		return nil, fmt.Errorf("bridge refused: %s", br.Error)
	}
	return &br, nil
}

func (b *Bridge) PublicKey(ctx context.Context) (string, error) {
	resp, err := b.call(ctx, "get_public_key", nil)
	if err != nil {
		return "", err
	}
	return resp.Pubkey, nil
}

func (b *Bridge) SignEvent(ctx context.Context, ev *nostr.Event) error {
	resp, err := b.call(ctx, "sign_event", ev)
	if err != nil {
		return err
	}
	if resp.Event == nil {
		return errors.New("bridge returned no event")
	}
	if ok, err := resp.Event.CheckSignature(); err != nil || !ok {
		return errors.New("bridge returned an invalid signature")
	}
	*ev = *resp.Event
	return nil
}

func (b *Bridge) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := b.call(ctx, "ping", nil)
	return err == nil
}

func (b *Bridge) Kind() Kind { return KindBridge }
