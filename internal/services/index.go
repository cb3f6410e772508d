package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"searchbot/internal/metrics"
	"searchbot/internal/vectara"
)

// Indexer uploads documents to the remote corpus.
type Indexer interface {
	IndexMessage(ctx context.Context, p vectara.IndexParams) (bool, error)
}

// InboundMessage is a message posted in a channel the bot has joined.
type InboundMessage struct {
	Channel     string
	ChannelType string
	User        string
	Text        string
	ClientMsgID string
	EventTS     string
	Type        string
}

// MessageMetadata is stored with every indexed message and returned with
// search results.
type MessageMetadata struct {
	MessageLink string  `json:"message_link"`
	MessageType string  `json:"message_type"`
	Poster      string  `json:"poster"`
	Channel     string  `json:"channel"`
	ChannelType string  `json:"channel_type"`
	Timestamp   float64 `json:"timestamp"`
}

// IndexService turns Slack messages into corpus documents.
type IndexService struct {
	indexer            Indexer
	customerID         int64
	corpusID           int64
	workspaceSubdomain string
}

// NewIndexService creates an index service writing to one customer corpus.
// workspaceSubdomain is used to build message permalinks.
func NewIndexService(indexer Indexer, customerID, corpusID int64, workspaceSubdomain string) *IndexService {
	return &IndexService{
		indexer:            indexer,
		customerID:         customerID,
		corpusID:           corpusID,
		workspaceSubdomain: workspaceSubdomain,
	}
}

// BuildDocument converts msg into upload parameters. The document id is
// the client message id so re-indexing a message cannot create a duplicate.
func (s *IndexService) BuildDocument(msg InboundMessage) (vectara.IndexParams, error) {
	timestamp, err := strconv.ParseFloat(msg.EventTS, 64)
	if err != nil {
		return vectara.IndexParams{}, fmt.Errorf("invalid event timestamp %q: %w", msg.EventTS, err)
	}

	documentID := msg.ClientMsgID
	if documentID == "" {
		documentID = msg.Channel + "-" + msg.EventTS
	}

	return vectara.IndexParams{
		CustomerID: s.customerID,
		CorpusID:   s.corpusID,
		Text:       msg.Text,
		ID:         documentID,
		Title:      fmt.Sprintf("Message from <@%s> at %s", msg.User, msg.EventTS),
		Metadata: MessageMetadata{
			MessageLink: Permalink(s.workspaceSubdomain, msg.Channel, msg.EventTS),
			MessageType: msg.Type,
			Poster:      msg.User,
			Channel:     msg.Channel,
			ChannelType: msg.ChannelType,
			Timestamp:   timestamp,
		},
	}, nil
}

// IndexMessage uploads msg. It reports false when the backend rejected the
// document; errors are reserved for failures to reach it.
func (s *IndexService) IndexMessage(ctx context.Context, msg InboundMessage) (bool, error) {
	params, err := s.BuildDocument(msg)
	if err != nil {
		metrics.SlackMessagesIndexed.WithLabelValues("invalid").Inc()
		return false, err
	}

	ok, err := s.indexer.IndexMessage(ctx, params)
	if err != nil {
		metrics.SlackMessagesIndexed.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to index message: %w", err)
	}
	if !ok {
		metrics.SlackMessagesIndexed.WithLabelValues("rejected").Inc()
		return false, nil
	}

	slog.Info("Message indexed",
		"document_id", params.ID,
		"channel", msg.Channel,
		"user", msg.User)
	metrics.SlackMessagesIndexed.WithLabelValues("success").Inc()
	return true, nil
}

// Permalink builds the archive link of a message from its timestamp.
func Permalink(workspaceSubdomain, channel, ts string) string {
	return fmt.Sprintf("https://%s.slack.com/archives/%s/p%s",
		workspaceSubdomain, channel, strings.Replace(ts, ".", "", 1))
}
