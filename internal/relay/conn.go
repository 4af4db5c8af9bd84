// Package relay implements the client side of the store-and-forward event
// broadcast protocol: one websocket connection per relay endpoint, filtered
// subscription queries collected until end-of-stored-results, and publishes
// acknowledged per event.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"github.com/Symbiosis-Lab/moss-social/internal/metrics"
)

const (
	// DialTimeout bounds the websocket handshake. Exceeding it fails only
	// the endpoint being dialed.
	DialTimeout = 10 * time.Second

	// FetchTimeout bounds one subscription round. Hitting it is not an
	// error: the fetch returns whatever was collected.
	FetchTimeout = 15 * time.Second

	// PublishTimeout bounds the wait for a relay acknowledgment.
	PublishTimeout = 10 * time.Second

	writeTimeout = 5 * time.Second
)

// ErrRejected reports that a relay refused a published event.
var ErrRejected = errors.New("event rejected by relay")

// Conn is a client connection to a single relay. It is not safe for
// concurrent use; fan-out callers open one Conn per relay per operation.
type Conn struct {
	url string
	ws  *websocket.Conn
	log zerolog.Logger
}

// Dial opens a connection to a relay endpoint with a bounded handshake.
func Dial(ctx context.Context, url string, log zerolog.Logger) (*Conn, error) {
	start := time.Now()
	dialer := websocket.Dialer{HandshakeTimeout: DialTimeout}

	ctx, cancel := context.WithTimeout(ctx, DialTimeout)
	defer cancel()

	ws, _, err := dialer.DialContext(ctx, url, nil)
	metrics.RelayOpDuration.WithLabelValues("connect").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return &Conn{url: url, ws: ws, log: log.With().Str("relay", url).Logger()}, nil
}

// URL returns the endpoint this connection was dialed to.
func (c *Conn) URL() string { return c.url }

// Close abandons the connection. Best-effort: in-flight reads and writes are
// not unwound beyond the socket closing under them.
func (c *Conn) Close() error { return c.ws.Close() }

// Fetch issues a subscription query and accumulates matching events until
// the relay signals end-of-stored-results or the timeout elapses, whichever
// comes first. A timeout returns the events collected so far with a nil
// error. Events that fail the filters or their own signature are dropped.
func (c *Conn) Fetch(ctx context.Context, filters nostr.Filters) ([]nostr.Event, error) {
	start := time.Now()
	defer func() {
		metrics.RelayOpDuration.WithLabelValues("fetch").Observe(time.Since(start).Seconds())
	}()

	sub := uuid.NewString()
	req, err := encodeReq(sub, filters)
	if err != nil {
		return nil, err
	}
	if err := c.write(req); err != nil {
		metrics.RelayFetches.WithLabelValues(c.url, "error").Inc()
		return nil, err
	}

	deadline := time.Now().Add(FetchTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetReadDeadline(deadline)

	var collected []nostr.Event
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if isTimeout(err) {
				c.log.Debug().Int("events", len(collected)).Msg("fetch timed out, returning partial results")
				metrics.RelayFetches.WithLabelValues(c.url, "timeout").Inc()
				return collected, nil
			}
			metrics.RelayFetches.WithLabelValues(c.url, "error").Inc()
			return collected, fmt.Errorf("fetch from %s: %w", c.url, err)
		}

		msg, err := decodeServerMessage(data)
		if err != nil {
			c.log.Debug().Err(err).Msg("skipping malformed relay message")
			continue
		}

		switch msg.label {
		case "EVENT":
			if msg.sub != sub {
				continue
			}
			if ev := c.accept(msg.event, filters); ev != nil {
				collected = append(collected, *ev)
			}
		case "EOSE":
			if msg.sub != sub {
				continue
			}
			if closeMsg, err := encodeClose(sub); err == nil {
				_ = c.write(closeMsg)
			}
			metrics.RelayFetches.WithLabelValues(c.url, "ok").Inc()
			return collected, nil
		case "NOTICE":
			c.log.Debug().Str("notice", msg.reason).Msg("relay notice")
		}
	}
}

// Publish sends a signed event and waits for the relay's acknowledgment.
// A rejection surfaces as ErrRejected with the relay's reason attached.
func (c *Conn) Publish(ctx context.Context, ev *nostr.Event) error {
	start := time.Now()
	defer func() {
		metrics.RelayOpDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())
	}()

	msg, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if err := c.write(msg); err != nil {
		metrics.RelayPublishes.WithLabelValues(c.url, "error").Inc()
		return err
	}

	deadline := time.Now().Add(PublishTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetReadDeadline(deadline)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			metrics.RelayPublishes.WithLabelValues(c.url, "error").Inc()
			return fmt.Errorf("publish to %s: %w", c.url, err)
		}

		reply, err := decodeServerMessage(data)
		if err != nil || reply.label != "OK" || reply.eventID != ev.ID {
			continue
		}
		if !reply.ok {
			metrics.RelayPublishes.WithLabelValues(c.url, "rejected").Inc()
			return fmt.Errorf("%w: %s", ErrRejected, reply.reason)
		}
		metrics.RelayPublishes.WithLabelValues(c.url, "acked").Inc()
		return nil
	}
}

// AwaitFirst subscribes with the given filters and returns the first
// matching event, stored or live. It is the request/response primitive used
// for relay-mediated signing channels. A timeout returns (nil, nil).
func (c *Conn) AwaitFirst(ctx context.Context, filters nostr.Filters, timeout time.Duration) (*nostr.Event, error) {
	sub := uuid.NewString()
	req, err := encodeReq(sub, filters)
	if err != nil {
		return nil, err
	}
	if err := c.write(req); err != nil {
		return nil, err
	}
	defer func() {
		if closeMsg, err := encodeClose(sub); err == nil {
			_ = c.write(closeMsg)
		}
	}()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetReadDeadline(deadline)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if isTimeout(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("await on %s: %w", c.url, err)
		}

		msg, err := decodeServerMessage(data)
		if err != nil {
			continue
		}
		if msg.label != "EVENT" || msg.sub != sub {
			continue
		}
		if ev := c.accept(msg.event, filters); ev != nil {
			return ev, nil
		}
	}
}

// accept validates one delivered event against the subscription's filters
// and its own signature. Invalid events are dropped, never errored.
func (c *Conn) accept(ev *nostr.Event, filters nostr.Filters) *nostr.Event {
	if ev == nil {
		return nil
	}
	if !filters.Match(ev) {
		metrics.EventsDropped.WithLabelValues("filter_mismatch").Inc()
		return nil
	}
	if ok, err := ev.CheckSignature(); err != nil || !ok {
		c.log.Debug().Str("event", ev.ID).Msg("dropping event with bad signature")
		metrics.EventsDropped.WithLabelValues("bad_signature").Inc()
		return nil
	}
	return ev
}

func (c *Conn) write(data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
