package slack

import (
	"github.com/slack-go/slack"

	"searchbot/internal/search"
)

// Event kinds, used as metric labels.
const (
	KindHomeOpened   = "home_opened"
	KindMessage      = "message"
	KindSlashCommand = "slash_command"
	KindBlockAction  = "block_action"
)

// Event is an inbound Slack event the bot reacts to.
type Event interface {
	Kind() string
}

// HomeOpened is sent when a user opens the app's home tab.
type HomeOpened struct {
	User string
}

// MessagePosted is a message in a channel or direct conversation the bot
// can see.
type MessagePosted struct {
	Channel     string
	ChannelType string
	User        string
	Text        string
	ClientMsgID string
	EventTS     string
	Type        string
	SubType     string
	BotID       string
}

// SlashCommand is an invocation of the bot's slash command.
type SlashCommand struct {
	Command     string
	Text        string
	Channel     string
	User        string
	ResponseURL string
}

// BlockAction is an interaction with one of the controls attached to a
// search reply. State is the conversation the reply belonged to, with
// Filters re-read from the current values of the controls. Ephemeral is
// set when the reply was only visible to the user who acted on it.
type BlockAction struct {
	ActionID    string
	Channel     string
	User        string
	ResponseURL string
	Ephemeral   bool
	State       search.ConversationState
}

func (HomeOpened) Kind() string    { return KindHomeOpened }
func (MessagePosted) Kind() string { return KindMessage }
func (SlashCommand) Kind() string  { return KindSlashCommand }
func (BlockAction) Kind() string   { return KindBlockAction }

// Reply is an outgoing message: display blocks plus a plain-text fallback.
// InChannel makes a response URL reply visible to the whole channel instead
// of only the requesting user.
type Reply struct {
	Text      string
	Blocks    []slack.Block
	InChannel bool
}
