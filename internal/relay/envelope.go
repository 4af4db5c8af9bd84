package relay

import (
	"encoding/json"
	"errors"

	"github.com/nbd-wtf/go-nostr"
)

// Wire envelopes are JSON arrays whose first element names the message:
// client→relay REQ/EVENT/CLOSE, relay→client EVENT/EOSE/OK/NOTICE.

var errMalformedMessage = errors.New("malformed relay message")

func encodeReq(sub string, filters nostr.Filters) ([]byte, error) {
	arr := make([]any, 0, 2+len(filters))
	arr = append(arr, "REQ", sub)
	for _, f := range filters {
		arr = append(arr, f)
	}
	return json.Marshal(arr)
}

func encodeEvent(ev *nostr.Event) ([]byte, error) {
	return json.Marshal([]any{"EVENT", ev})
}

func encodeClose(sub string) ([]byte, error) {
	return json.Marshal([]any{"CLOSE", sub})
}

// serverMessage is the decoded form of a relay→client envelope. Unknown
// labels decode into just the label so callers can skip them.
type serverMessage struct {
	label   string
	sub     string
	event   *nostr.Event
	eventID string
	ok      bool
	reason  string
}

func decodeServerMessage(data []byte) (serverMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return serverMessage{}, err
	}
	if len(parts) == 0 {
		return serverMessage{}, errMalformedMessage
	}

	var msg serverMessage
	if err := json.Unmarshal(parts[0], &msg.label); err != nil {
		return serverMessage{}, err
	}

	switch msg.label {
	case "EVENT":
		if len(parts) < 3 {
			return serverMessage{}, errMalformedMessage
		}
		if err := json.Unmarshal(parts[1], &msg.sub); err != nil {
			return serverMessage{}, err
		}
		msg.event = &nostr.Event{}
		if err := json.Unmarshal(parts[2], msg.event); err != nil {
			return serverMessage{}, err
		}
	case "EOSE":
		if len(parts) < 2 {
			return serverMessage{}, errMalformedMessage
		}
		if err := json.Unmarshal(parts[1], &msg.sub); err != nil {
			return serverMessage{}, err
		}
	case "OK":
		if len(parts) < 3 {
			return serverMessage{}, errMalformedMessage
		}
		if err := json.Unmarshal(parts[1], &msg.eventID); err != nil {
			return serverMessage{}, err
		}
		if err := json.Unmarshal(parts[2], &msg.ok); err != nil {
			return serverMessage{}, err
		}
		if len(parts) > 3 {
			_ = json.Unmarshal(parts[3], &msg.reason)
		}
	case "NOTICE":
		if len(parts) > 1 {
			_ = json.Unmarshal(parts[1], &msg.reason)
		}
	}

	return msg, nil
}
