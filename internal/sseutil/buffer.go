// Package sseutil reassembles Server-Sent Events from an arbitrarily chunked byte stream.
// It is shared by the Gemini stream executor and the client SDK so both sides of the
// proxy parse SSE with identical rules.
package sseutil

import (
	"bytes"
	"strings"
)

// DoneMarker is the payload that terminates an OpenAI-style event stream.
const DoneMarker = "[DONE]"

var dataPrefix = []byte("data:")

// Event is one complete SSE event.
type Event struct {
	// Data is the concatenation of all data lines of the event, joined by "\n".
	Data string
	// Done reports that Data equals the [DONE] marker.
	Done bool
}

// Buffer holds the unconsumed transport bytes and the data lines collected since the
// last event boundary. The zero value is ready to use. A Buffer belongs to a single
// stream and must not be shared between goroutines.
type Buffer struct {
	tail    []byte
	pending []string
	done    bool
}

// Feed appends chunk to the buffer and returns every event completed by it.
// Once a [DONE] event has been returned, all further input is ignored.
func (b *Buffer) Feed(chunk []byte) []Event {
	if b.done {
		return nil
	}
	b.tail = append(b.tail, chunk...)

	var events []Event
	for !b.done {
		idx := bytes.IndexByte(b.tail, '\n')
		if idx < 0 {
			break
		}
		line := b.tail[:idx]
		b.tail = b.tail[idx+1:]
		if ev, ok := b.consumeLine(line); ok {
			events = append(events, ev)
		}
	}
	if len(b.tail) == 0 {
		b.tail = nil
	}
	return events
}

// Finish flushes the state left at end of stream: a trailing line without a terminator is
// processed as a complete line, and pending data lines are emitted as a final event even
// though the upstream never sent the closing blank line.
func (b *Buffer) Finish() []Event {
	if b.done {
		return nil
	}
	var events []Event
	if len(b.tail) > 0 {
		line := b.tail
		b.tail = nil
		if ev, ok := b.consumeLine(line); ok {
			events = append(events, ev)
		}
	}
	if !b.done {
		if ev, ok := b.flush(); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Done reports whether a [DONE] event has been produced.
func (b *Buffer) Done() bool { return b.done }

// Pending returns the number of data lines waiting for an event boundary.
func (b *Buffer) Pending() int { return len(b.pending) }

func (b *Buffer) consumeLine(line []byte) (Event, bool) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(line) == 0 {
		return b.flush()
	}
	if line[0] == ':' {
		return Event{}, false
	}
	if bytes.HasPrefix(line, dataPrefix) {
		value := line[len(dataPrefix):]
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
		b.pending = append(b.pending, string(value))
	}
	// event:, id:, retry: and unknown fields are ignored.
	return Event{}, false
}

func (b *Buffer) flush() (Event, bool) {
	if len(b.pending) == 0 {
		return Event{}, false
	}
	data := strings.Join(b.pending, "\n")
	b.pending = b.pending[:0]
	ev := Event{Data: data}
	if strings.TrimSpace(data) == DoneMarker {
		ev.Done = true
		b.done = true
		b.tail = nil
	}
	return ev, true
}
