package slack

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// Messenger sends the bot's output to Slack.
type Messenger interface {
	// PostMessage posts reply to a channel or direct conversation.
	PostMessage(ctx context.Context, channelID string, reply Reply) error
	// Respond answers a slash command or interaction through its response URL.
	Respond(ctx context.Context, responseURL string, reply Reply) error
	// PublishHome publishes the home tab for a user.
	PublishHome(ctx context.Context, userID string, blocks []slack.Block) error
}

// APIMessenger is a Messenger backed by the Slack Web API.
type APIMessenger struct {
	client     *slack.Client
	httpClient *http.Client
}

// NewAPIMessenger creates a messenger using client. httpClient is used for
// response URL calls.
func NewAPIMessenger(client *slack.Client, httpClient *http.Client) *APIMessenger {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &APIMessenger{client: client, httpClient: httpClient}
}

func (m *APIMessenger) PostMessage(ctx context.Context, channelID string, reply Reply) error {
	options := []slack.MsgOption{
		slack.MsgOptionText(reply.Text, false),
		slack.MsgOptionDisableLinkUnfurl(),
		slack.MsgOptionDisableMediaUnfurl(),
	}
	if len(reply.Blocks) > 0 {
		options = append(options, slack.MsgOptionBlocks(reply.Blocks...))
	}

	if _, _, err := m.client.PostMessageContext(ctx, channelID, options...); err != nil {
		return fmt.Errorf("failed to post message to %s: %w", channelID, err)
	}
	return nil
}

func (m *APIMessenger) Respond(ctx context.Context, responseURL string, reply Reply) error {
	msg := &slack.WebhookMessage{Text: reply.Text}
	if reply.InChannel {
		msg.ResponseType = slack.ResponseTypeInChannel
	}
	if len(reply.Blocks) > 0 {
		msg.Blocks = &slack.Blocks{BlockSet: reply.Blocks}
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, responseURL, m.httpClient, msg); err != nil {
		return fmt.Errorf("failed to respond: %w", err)
	}
	return nil
}

func (m *APIMessenger) PublishHome(ctx context.Context, userID string, blocks []slack.Block) error {
	view := slack.HomeTabViewRequest{
		Type:       slack.VTHomeTab,
		CallbackID: "home_view",
		Blocks:     slack.Blocks{BlockSet: blocks},
	}

	if _, err := m.client.PublishViewContext(ctx, userID, view, ""); err != nil {
		return fmt.Errorf("failed to publish home view for %s: %w", userID, err)
	}
	return nil
}
