// Package memstore provides the client for the external conversational
// memory service. The gateway is the only caller; it relies on this package
// to classify failures so the mode controller can branch on them:
// credential rejections are surfaced as AuthError (immediate degradation),
// timeouts and 5xx responses as TransientError (degradation only after
// corroboration).
package memstore

import (
	"context"
	"time"
)

// Fetch modes supported by the memory service. The set is closed on purpose:
// the cache invalidates by enumerating it, and the gateway rejects unknown
// modes as caller bugs rather than forwarding them upstream.
const (
	// FetchModeRecent returns a sliding window over the most recent turns.
	FetchModeRecent = "recent"

	// FetchModeFull returns the full distilled context for the conversation.
	FetchModeFull = "full"
)

// FetchModes lists every supported fetch mode.
var FetchModes = []string{FetchModeRecent, FetchModeFull}

// ValidFetchMode reports whether mode names a supported fetch mode.
func ValidFetchMode(mode string) bool {
	for _, m := range FetchModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Fact is a distilled piece of knowledge recalled from the memory service.
type Fact struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Context is the payload returned by a context fetch. An empty Context (no
// facts, no summary) is a confirmed "no memory yet" result, distinct from a
// failed fetch.
type Context struct {
	ConversationID string `json:"conversation_id"`
	Summary        string `json:"summary,omitempty"`
	Facts          []Fact `json:"facts,omitempty"`
}

// Empty reports whether the context carries no recalled content.
func (c *Context) Empty() bool {
	return c == nil || (c.Summary == "" && len(c.Facts) == 0)
}

// Client is the interface the gateway programs against. The HTTP
// implementation lives in this package; tests substitute fakes.
type Client interface {
	// Fetch retrieves conversation context. The returned Context is never
	// nil on success; a confirmed-empty result is a Context with no content.
	Fetch(ctx context.Context, conversationID, mode string) (*Context, error)

	// Append appends one conversation turn. The text is expected to have
	// passed through redaction already.
	Append(ctx context.Context, conversationID, role, text string, metadata map[string]string) error
}
