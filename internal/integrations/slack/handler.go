package slack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"searchbot/internal/search"
	"searchbot/internal/services"
)

const (
	searchFailedText = "Sorry, something went wrong while searching. Please try again."
	usageText        = "Usage: `%s [#channel | @user] <query>`"
)

// Querier runs the query pipeline for a conversation state.
type Querier interface {
	Query(ctx context.Context, state search.ConversationState) (*services.QueryResult, error)
}

// MessageIndexer uploads a channel message to the corpus.
type MessageIndexer interface {
	IndexMessage(ctx context.Context, msg services.InboundMessage) (bool, error)
}

// Handler reacts to parsed Slack events: channel messages are indexed,
// everything else is a search.
type Handler struct {
	messenger    Messenger
	querier      Querier
	indexer      MessageIndexer
	botUserID    string
	slashCommand string
	now          func() time.Time
}

// NewHandler creates a handler. botUserID identifies mentions of the bot
// and its own messages.
func NewHandler(messenger Messenger, querier Querier, indexer MessageIndexer, botUserID, slashCommand string) *Handler {
	return &Handler{
		messenger:    messenger,
		querier:      querier,
		indexer:      indexer,
		botUserID:    botUserID,
		slashCommand: slashCommand,
		now:          time.Now,
	}
}

// Handle processes one event. Acknowledging the event is the caller's job
// and must happen before Handle is called.
func (h *Handler) Handle(ctx context.Context, event Event) error {
	switch ev := event.(type) {
	case HomeOpened:
		return h.handleHomeOpened(ctx, ev)
	case MessagePosted:
		return h.handleMessage(ctx, ev)
	case SlashCommand:
		return h.handleSlashCommand(ctx, ev)
	case BlockAction:
		return h.handleBlockAction(ctx, ev)
	}
	return nil
}

func (h *Handler) handleHomeOpened(ctx context.Context, ev HomeOpened) error {
	slog.Info("App home opened", "user", ev.User)
	return h.messenger.PublishHome(ctx, ev.User, HomeBlocks(h.slashCommand))
}

func (h *Handler) handleMessage(ctx context.Context, ev MessagePosted) error {
	if h.isFromBot(ev) {
		slog.Debug("Skipping bot message", "channel", ev.Channel, "bot_id", ev.BotID, "subtype", ev.SubType)
		return nil
	}
	if ev.Text == "" {
		return nil
	}

	mention := h.mention()
	switch ev.ChannelType {
	case "im":
		state := search.NewConversationState(h.stripMention(ev.Text))
		return h.queryAndPost(ctx, ev.Channel, state)

	case "channel", "group":
		if mention != "" && strings.Contains(ev.Text, mention) {
			state := search.NewConversationState(h.stripMention(ev.Text))
			state.Filters.Channel = ev.Channel
			return h.queryAndPost(ctx, ev.Channel, state)
		}

		_, err := h.indexer.IndexMessage(ctx, services.InboundMessage{
			Channel:     ev.Channel,
			ChannelType: ev.ChannelType,
			User:        ev.User,
			Text:        ev.Text,
			ClientMsgID: ev.ClientMsgID,
			EventTS:     ev.EventTS,
			Type:        ev.Type,
		})
		return err
	}

	slog.Warn("Unhandled channel type", "channel_type", ev.ChannelType, "channel", ev.Channel)
	return nil
}

func (h *Handler) handleSlashCommand(ctx context.Context, ev SlashCommand) error {
	state := ParseCommandText(ev.Text)
	slog.Info("Slash command received",
		"command", ev.Command,
		"user", ev.User,
		"channel_filter", state.Filters.Channel,
		"user_filter", state.Filters.User)

	if state.Query == "" {
		return h.messenger.Respond(ctx, ev.ResponseURL, Reply{Text: fmt.Sprintf(usageText, h.slashCommand)})
	}
	return h.queryAndRespond(ctx, ev.ResponseURL, state, false)
}

func (h *Handler) handleBlockAction(ctx context.Context, ev BlockAction) error {
	state := ev.State
	switch ev.ActionID {
	case search.ActionMoreResults:
		state.NumResults++
	case search.ActionEnableReranker:
		state.Rerank = true
	case search.ActionFilterChannel, search.ActionFilterUser, search.ActionFilterStart, search.ActionFilterEnd:
	default:
		slog.Warn("Unknown action received", "action_id", ev.ActionID)
		return nil
	}

	slog.Info("Refining search",
		"action_id", ev.ActionID,
		"user", ev.User,
		"num_results", state.NumResults,
		"rerank", state.Rerank)

	// Answering through the response URL keeps the visibility of the reply
	// the control belongs to, and works in channels the bot has not joined.
	if ev.ResponseURL != "" {
		return h.queryAndRespond(ctx, ev.ResponseURL, state, !ev.Ephemeral)
	}
	return h.queryAndPost(ctx, ev.Channel, state)
}

func (h *Handler) queryAndRespond(ctx context.Context, responseURL string, state search.ConversationState, inChannel bool) error {
	reply, err := h.query(ctx, state)
	if err != nil {
		if respondErr := h.messenger.Respond(ctx, responseURL, Reply{Text: searchFailedText}); respondErr != nil {
			err = errors.Join(err, respondErr)
		}
		return err
	}
	reply.InChannel = inChannel
	return h.messenger.Respond(ctx, responseURL, reply)
}

func (h *Handler) queryAndPost(ctx context.Context, channel string, state search.ConversationState) error {
	if state.Query == "" {
		return h.messenger.PostMessage(ctx, channel, Reply{Text: fmt.Sprintf(usageText, h.slashCommand)})
	}

	reply, err := h.query(ctx, state)
	if err != nil {
		if postErr := h.messenger.PostMessage(ctx, channel, Reply{Text: searchFailedText}); postErr != nil {
			err = errors.Join(err, postErr)
		}
		return err
	}
	return h.messenger.PostMessage(ctx, channel, reply)
}

func (h *Handler) query(ctx context.Context, state search.ConversationState) (Reply, error) {
	result, err := h.querier.Query(ctx, state)
	if err != nil {
		return Reply{}, err
	}
	return ResultReply(result, h.now())
}

// isFromBot reports whether a message was posted by a bot, including this one.
func (h *Handler) isFromBot(ev MessagePosted) bool {
	if ev.BotID != "" || ev.SubType != "" {
		return true
	}
	return h.botUserID != "" && ev.User == h.botUserID
}

func (h *Handler) mention() string {
	if h.botUserID == "" {
		return ""
	}
	return "<@" + h.botUserID + ">"
}

func (h *Handler) stripMention(text string) string {
	if mention := h.mention(); mention != "" {
		text = strings.ReplaceAll(text, mention, "")
	}
	return strings.TrimSpace(text)
}

// ParseCommandText splits slash command text into a query and an optional
// leading channel (<#C123|name>) or user (<@U123|name>) filter.
func ParseCommandText(text string) search.ConversationState {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "<") {
		return search.NewConversationState(text)
	}

	token, rest, _ := strings.Cut(text, " ")
	id, _, _ := strings.Cut(token, "|")
	id = strings.TrimSuffix(id, ">")

	state := search.NewConversationState(strings.TrimSpace(rest))
	switch {
	case strings.HasPrefix(id, "<#"):
		state.Filters.Channel = id[2:]
	case strings.HasPrefix(id, "<@"):
		state.Filters.User = id[2:]
	default:
		state.Query = text
	}
	return state
}
