package llm

import (
	"context"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Request is one completion call: a system prompt plus the conversation so far.
type Request struct {
	System   string
	Messages []Message
}

// Client streams a completion. onChunk is called for every text fragment in
// order; returning an error from it aborts the stream. The full text is
// returned once the stream ends.
type Client interface {
	Stream(ctx context.Context, req Request, onChunk func(chunk string) error) (string, error)
	Name() string
}

// HandoffMarker is emitted by the model at the start of a reply it wants a person to take over.
const HandoffMarker = "[[HANDOFF]]"

// HandoffFilter removes HandoffMarker from a chunked stream, including
// markers split across chunk boundaries. Only a marker that opens the reply
// counts as a hand-off; one quoted later is stripped and ignored.
type HandoffFilter struct {
	pending string
	started bool
	seen    bool
}

// Write consumes a chunk and returns the text that is safe to show.
func (f *HandoffFilter) Write(chunk string) string {
	buf := f.pending + chunk
	if i := strings.Index(buf, HandoffMarker); i >= 0 {
		if !f.started && strings.TrimSpace(buf[:i]) == "" {
			f.seen = true
		}
		buf = strings.ReplaceAll(buf, HandoffMarker, "")
	}

	hold := partialMarkerSuffix(buf)
	f.pending = buf[len(buf)-hold:]
	return f.emit(buf[:len(buf)-hold])
}

// Flush returns any held-back text that turned out not to be a marker.
func (f *HandoffFilter) Flush() string {
	out := f.pending
	f.pending = ""
	return f.emit(out)
}

// Seen reports whether the reply started with the marker, ignoring leading whitespace.
func (f *HandoffFilter) Seen() bool {
	return f.seen
}

func (f *HandoffFilter) emit(s string) string {
	if !f.started {
		s = strings.TrimLeft(s, " \t\r\n")
		if s != "" {
			f.started = true
		}
	}
	return s
}

// partialMarkerSuffix returns the length of the longest suffix of s that is a proper prefix of the marker.
func partialMarkerSuffix(s string) int {
	max := len(HandoffMarker) - 1
	if max > len(s) {
		max = len(s)
	}
	for n := max; n > 0; n-- {
		if strings.HasPrefix(HandoffMarker, s[len(s)-n:]) {
			return n
		}
	}
	return 0
}
