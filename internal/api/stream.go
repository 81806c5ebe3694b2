// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
)

// =============================================================================
// STREAM
// =============================================================================

// Stream reads typed events off a newline-delimited JSON response body.
// It is a finite, non-restartable sequence: Recv returns io.EOF when the
// server closes the stream. Closing the stream (directly or via request
// context cancellation) terminates it without further events.
type Stream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	closed bool
}

func newStream(body io.ReadCloser) *Stream {
	return &Stream{
		body:   body,
		reader: bufio.NewReader(body),
	}
}

// Recv returns the next event. io.EOF marks the natural end of the
// stream. A line that is not valid JSON yields a stream protocol error;
// envelopes with unknown kinds are skipped (reserved for future use).
func (s *Stream) Recv() (Event, error) {
	if s.closed {
		return Event{}, io.EOF
	}

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(bytes.TrimSpace(line)) == 0 {
				return Event{}, io.EOF
			}
			if err != io.EOF {
				return Event{}, &Error{Kind: KindNetwork, Message: "stream read failed", Cause: err}
			}
			// Fall through to process the final unterminated line.
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			continue
		}

		var wire wireEvent
		if jsonErr := json.Unmarshal(line, &wire); jsonErr != nil {
			return Event{}, &Error{Kind: KindStream, Message: "malformed stream event", Cause: jsonErr}
		}

		evt, known := decodeEvent(wire)
		if !known {
			if err == io.EOF {
				return Event{}, io.EOF
			}
			continue
		}
		return evt, nil
	}
}

// Close terminates the stream and releases the connection. Idempotent.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// decodeEvent maps a wire envelope onto the typed Event. The second
// return is false for reserved/unknown kinds.
func decodeEvent(wire wireEvent) (Event, bool) {
	evt := Event{Kind: EventKind(wire.Kind)}

	switch evt.Kind {
	case EventDelta:
		evt.Text = wire.Text
	case EventToolStart:
		evt.CallID = wire.CallID
		evt.Tool = wire.Tool
		evt.Input = wire.Input
	case EventToolResult:
		evt.CallID = wire.CallID
		if wire.Success != nil {
			evt.Success = *wire.Success
		}
		evt.Payload = wire.Payload
	case EventAssistantComplete:
		evt.MessageID = wire.MessageID
	case EventConversationCreated:
		evt.ConversationID = wire.ConversationID
		evt.Title = wire.Title
	case EventError:
		evt.Code = wire.Code
		evt.Message = wire.Message
	default:
		return Event{}, false
	}
	return evt, true
}

// ErrorFromEvent converts an error event into the matching typed error.
func ErrorFromEvent(evt Event) error {
	kind := KindStream
	switch evt.Code {
	case "auth":
		kind = KindAuth
	case "validation":
		kind = KindValidation
	case "app_context":
		kind = KindAppContext
	case "timeout":
		kind = KindTimeout
	case "network":
		kind = KindNetwork
	}
	return &Error{Kind: kind, Message: orDefault(evt.Message, "stream error")}
}
