package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// EventKind classifies a decoded inbound event.
type EventKind int

const (
	// EventText carries translated text.
	EventText EventKind = iota
	// EventAudio carries synthesized speech as raw bytes.
	EventAudio
	// EventError carries a vendor-reported error.
	EventError
	// EventHeartbeatAck acknowledges a keep-alive probe.
	EventHeartbeatAck
)

// Event is one decoded inbound unit. A single wire message may yield more
// than one event: the vendor is allowed to put text and audio in the same
// output envelope.
type Event struct {
	Kind    EventKind
	Text    string
	Audio   []byte
	Code    string
	Message string
}

// ErrorText renders a vendor error event as "code: message".
func (e Event) ErrorText() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type inboundEnvelope struct {
	Type   string         `json:"type"`
	Output *outputPayload `json:"output"`
	Error  *errorPayload  `json:"error"`
}

type outputPayload struct {
	Text  *string `json:"text"`
	Audio string  `json:"audio"`
}

type errorPayload struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

// DecodeInbound parses one raw wire message into events. On a malformed
// payload it returns the events decoded so far together with the error, so a
// single bad field does not discard the rest of the message.
func DecodeInbound(data []byte) ([]Event, error) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("parse inbound frame: %w", err)
	}

	switch {
	case envelope.Error != nil:
		return []Event{{
			Kind:    EventError,
			Code:    normalizeErrorCode(envelope.Error.Code),
			Message: normalizeErrorMessage(envelope.Error.Message),
		}}, nil

	case envelope.Output != nil:
		var events []Event
		if envelope.Output.Text != nil {
			events = append(events, Event{Kind: EventText, Text: *envelope.Output.Text})
		}
		if envelope.Output.Audio != "" {
			audio, err := base64.StdEncoding.DecodeString(envelope.Output.Audio)
			if err != nil {
				return events, fmt.Errorf("decode output audio: %w", err)
			}
			events = append(events, Event{Kind: EventAudio, Audio: audio})
		}
		if len(events) == 0 {
			return nil, errors.New("output frame carries neither text nor audio")
		}
		return events, nil

	case envelope.Type == heartbeatAckType:
		return []Event{{Kind: EventHeartbeatAck}}, nil
	}

	// Unknown frames are tolerated; the contract is versioned and may grow.
	return nil, nil
}

func normalizeErrorCode(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown"
	}
	var code string
	if err := json.Unmarshal(raw, &code); err == nil {
		if code == "" {
			return "unknown"
		}
		return code
	}
	// Numeric and other non-string codes are passed through verbatim.
	return string(raw)
}

func normalizeErrorMessage(message string) string {
	if message == "" {
		return "Unknown error"
	}
	return message
}
