package executor

import (
	"strings"

	"github.com/kiosk-llm/relay/internal/sseutil"
	chat_completions "github.com/kiosk-llm/relay/internal/translator/gemini/openai/chat-completions"
	"github.com/tidwall/gjson"
)

// StreamState is the per-request state of one Gemini stream: the running text already
// forwarded, the SSE reassembly buffer and the chunk identity fixed at stream start.
// It is owned by a single goroutine.
type StreamState struct {
	chat_completions.StreamEmitter

	// LastText is the full text forwarded so far.
	LastText string
	// Events reassembles SSE events from transport reads.
	Events sseutil.Buffer

	// OnMalformed, when set, is called with every payload that is not valid JSON.
	OnMalformed func(payload string)

	done bool
}

// NewStreamState starts the state for a stream whose chunks are rendered by emitter.
func NewStreamState(emitter chat_completions.StreamEmitter) *StreamState {
	return &StreamState{StreamEmitter: emitter}
}

// Done reports whether the stream has reached a terminal event.
func (s *StreamState) Done() bool { return s.done }

// Feed consumes one transport read and returns the deltas to forward, in order.
// done is true once a terminal event was seen; its delta is included and later input is ignored.
func (s *StreamState) Feed(chunk []byte) (deltas []string, done bool) {
	if s.done {
		return nil, true
	}
	return s.applyEvents(s.Events.Feed(chunk))
}

// Finish flushes whatever the upstream left unterminated when it closed the stream.
func (s *StreamState) Finish() (deltas []string, done bool) {
	if s.done {
		return nil, true
	}
	deltas, _ = s.applyEvents(s.Events.Finish())
	s.done = true
	return deltas, true
}

func (s *StreamState) applyEvents(events []sseutil.Event) ([]string, bool) {
	var deltas []string
	for _, ev := range events {
		var delta string
		var done bool
		if ev.Done {
			done = true
		} else {
			delta, done = s.Apply(ev.Data)
		}
		if delta != "" {
			deltas = append(deltas, delta)
		}
		if done {
			s.done = true
			return deltas, true
		}
	}
	return deltas, false
}

// Apply computes the delta for one decoded Gemini event payload and reports whether the
// event ends the stream. A finishReason other than STOP ends the stream after the delta.
// Payloads that are not JSON are reported to OnMalformed and skipped.
func (s *StreamState) Apply(payload string) (delta string, done bool) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return "", false
	}
	// Gemini does not send [DONE]; honor it anyway.
	if trimmed == sseutil.DoneMarker {
		return "", true
	}
	if !gjson.Valid(trimmed) {
		if s.OnMalformed != nil {
			s.OnMalformed(trimmed)
		}
		return "", false
	}

	raw := []byte(trimmed)
	delta, s.LastText = ComputeDelta(s.LastText, chat_completions.ExtractText(raw))

	reason := chat_completions.FinishReason(raw)
	return delta, reason != "" && reason != chat_completions.FinishReasonStop
}

// ComputeDelta returns the text to forward for the freshly extracted text cur, given the
// text last already forwarded, and the new running text.
//
// Gemini may send cumulative snapshots or true increments. When cur extends last it is a
// snapshot and only the suffix is new; otherwise cur is an increment in its own right.
func ComputeDelta(last, cur string) (delta, next string) {
	switch {
	case cur == "":
		return "", last
	case last != "" && strings.HasPrefix(cur, last):
		return cur[len(last):], cur
	default:
		return cur, last + cur
	}
}
