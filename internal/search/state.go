// Package search holds the request-scoped search values shared by the Slack
// bot and the HTTP API: metadata filters and the conversation state carried
// inside bot replies.
package search

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// MaxStateLength is the longest encoded state that fits in a Slack button value.
const MaxStateLength = 2000

// ErrStateTooLarge is returned when an encoded state does not fit in a button value.
var ErrStateTooLarge = errors.New("conversation state too large")

// ConversationState is everything needed to re-run a search from an
// interaction on a previous reply. It travels with the reply itself, so the
// bot keeps no session store.
type ConversationState struct {
	Query      string    `json:"q"`
	Filters    FilterSet `json:"f"`
	Rerank     bool      `json:"r,omitempty"`
	NumResults int       `json:"n"`
}

// NewConversationState starts a conversation for query, asking for one result.
func NewConversationState(query string) ConversationState {
	return ConversationState{Query: query, NumResults: 1}
}

// Refined reports whether filters, reranking or extra results have been
// requested since the original query.
func (s ConversationState) Refined() bool {
	return !s.Filters.IsEmpty() || s.Rerank || s.NumResults > 1
}

// Encode serializes the state into an opaque token.
func (s ConversationState) Encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to marshal conversation state: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	if len(token) > MaxStateLength {
		return "", fmt.Errorf("%w: %d bytes", ErrStateTooLarge, len(token))
	}
	return token, nil
}

// DecodeConversationState parses a token produced by Encode.
func DecodeConversationState(token string) (ConversationState, error) {
	var s ConversationState

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return s, fmt.Errorf("failed to decode conversation state: %w", err)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("failed to unmarshal conversation state: %w", err)
	}
	if s.NumResults < 1 {
		s.NumResults = 1
	}
	return s, nil
}
