package slack

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"searchbot/internal/search"
)

// ErrNoConversationState is returned for interactions on a message that
// carries no conversation state.
var ErrNoConversationState = errors.New("no conversation state on message")

// ParseEvent converts a socket mode event into one of the bot's event
// types. It returns nil for events the bot ignores.
func ParseEvent(evt socketmode.Event) (Event, error) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok || eventsAPIEvent.Type != slackevents.CallbackEvent {
			return nil, nil
		}
		return parseCallbackEvent(eventsAPIEvent.InnerEvent), nil

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slack.SlashCommand)
		if !ok {
			return nil, nil
		}
		return SlashCommand{
			Command:     cmd.Command,
			Text:        cmd.Text,
			Channel:     cmd.ChannelID,
			User:        cmd.UserID,
			ResponseURL: cmd.ResponseURL,
		}, nil

	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok || callback.Type != slack.InteractionTypeBlockActions {
			return nil, nil
		}
		return ParseBlockAction(callback)
	}

	return nil, nil
}

func parseCallbackEvent(inner slackevents.EventsAPIInnerEvent) Event {
	switch ev := inner.Data.(type) {
	case *slackevents.AppHomeOpenedEvent:
		return HomeOpened{User: ev.User}
	case *slackevents.MessageEvent:
		return MessagePosted{
			Channel:     ev.Channel,
			ChannelType: ev.ChannelType,
			User:        ev.User,
			Text:        ev.Text,
			ClientMsgID: ev.ClientMsgID,
			EventTS:     eventTimestamp(ev),
			Type:        ev.Type,
			SubType:     ev.SubType,
			BotID:       ev.BotID,
		}
	}
	return nil
}

func eventTimestamp(ev *slackevents.MessageEvent) string {
	if ev.EventTimeStamp != "" {
		return ev.EventTimeStamp
	}
	return ev.TimeStamp
}

// ParseBlockAction converts a block_actions interaction. The conversation
// state comes from the clicked button, the id of the control's block, or
// the buttons of the message the control belongs to; filters always come
// from the controls' current values.
func ParseBlockAction(callback slack.InteractionCallback) (Event, error) {
	if len(callback.ActionCallback.BlockActions) == 0 {
		return nil, nil
	}
	action := callback.ActionCallback.BlockActions[0]

	state, err := recoverState(action, callback.BlockActionState, callback.Message.Blocks.BlockSet)
	if err != nil {
		return nil, fmt.Errorf("failed to recover conversation state for %s: %w", action.ActionID, err)
	}
	state.Filters = search.FiltersFromState(callback.BlockActionState)

	channel := callback.Channel.ID
	if channel == "" {
		channel = callback.Container.ChannelID
	}

	return BlockAction{
		ActionID:    action.ActionID,
		Channel:     channel,
		User:        callback.User.ID,
		ResponseURL: callback.ResponseURL,
		Ephemeral:   callback.Container.IsEphemeral,
		State:       state,
	}, nil
}

// Ephemeral replies come without a message, so block ids are checked
// before the message's buttons.
func recoverState(action *slack.BlockAction, values *slack.BlockActionStates, blocks []slack.Block) (search.ConversationState, error) {
	if isStateButton(action.ActionID) && action.Value != "" {
		return search.DecodeConversationState(action.Value)
	}

	if token, ok := stateFromBlockID(action.BlockID); ok {
		return search.DecodeConversationState(token)
	}

	if values != nil {
		blockIDs := make([]string, 0, len(values.Values))
		for blockID := range values.Values {
			blockIDs = append(blockIDs, blockID)
		}
		sort.Strings(blockIDs)
		for _, blockID := range blockIDs {
			if token, ok := stateFromBlockID(blockID); ok {
				return search.DecodeConversationState(token)
			}
		}
	}

	for _, block := range blocks {
		actions, ok := block.(*slack.ActionBlock)
		if !ok || actions.Elements == nil {
			continue
		}
		for _, element := range actions.Elements.ElementSet {
			button, ok := element.(*slack.ButtonBlockElement)
			if !ok || !isStateButton(button.ActionID) || button.Value == "" {
				continue
			}
			return search.DecodeConversationState(button.Value)
		}
	}

	return search.ConversationState{}, ErrNoConversationState
}

// stateFromBlockID returns the state token of a filter block id built by
// stateBlockID.
func stateFromBlockID(blockID string) (string, bool) {
	base, token, found := strings.Cut(blockID, blockIDSeparator)
	if !found || token == "" {
		return "", false
	}
	if base != blockUserChannelFilters && base != blockDateFilters {
		return "", false
	}
	return token, true
}

func isStateButton(actionID string) bool {
	return actionID == search.ActionMoreResults || actionID == search.ActionEnableReranker
}
