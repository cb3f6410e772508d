package slack

import (
	"fmt"
	"time"

	"github.com/slack-go/slack"

	"searchbot/internal/markdown"
	"searchbot/internal/search"
	"searchbot/internal/services"
)

// NoResultsText is the reply when a search finds nothing.
const NoResultsText = "Sorry, I couldn't find any relevant results"

// DefaultStartDate is the initial value of the start date picker.
const DefaultStartDate = "2022-09-01"

const (
	blockUserChannelFilters = "user_channel_filters"
	blockDateFilters        = "date_filters"
	blockRefine             = "refine"

	// Slack rejects longer block ids.
	maxBlockIDLength = 255
	blockIDSeparator = ":"
)

// ResultReply renders a search result. The interactive controls are only
// attached while the conversation has not been refined yet, so each search
// gets at most one set of them.
func ResultReply(result *services.QueryResult, now time.Time) (Reply, error) {
	if !result.Found {
		return Reply{Text: NoResultsText}, nil
	}

	state := result.State
	blocks := []slack.Block{
		markdownSection(fmt.Sprintf("Search results for: *%s*", markdown.Escape(state.Query))),
		slack.NewDividerBlock(),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("<@%s> said:\n> %s", result.Poster, result.Text), false, false),
		}, nil),
		markdownSection(fmt.Sprintf("<%s|Link>", result.Link)),
	}

	if !state.Refined() {
		controls, err := controlBlocks(state, result.Rerank, now)
		if err != nil {
			return Reply{}, err
		}
		blocks = append(blocks, controls...)
		blocks = append([]slack.Block{header("Search Results")}, blocks...)
	} else if state.NumResults != 1 {
		blocks = append([]slack.Block{header(fmt.Sprintf("Search Results (Result %d)", state.NumResults))}, blocks...)
	}

	return Reply{
		Text:   fmt.Sprintf("@%s said:\n> %s\n\n at %s", result.Poster, result.Text, result.Timestamp),
		Blocks: blocks,
	}, nil
}

func controlBlocks(state search.ConversationState, reranked bool, now time.Time) ([]slack.Block, error) {
	token, err := state.Encode()
	if err != nil {
		return nil, err
	}

	userSelect := slack.NewOptionsSelectBlockElement(slack.OptTypeUser, plainText("Filter by user"), search.ActionFilterUser)
	channelSelect := slack.NewOptionsSelectBlockElement(slack.OptTypeChannels, plainText("Filter by channel"), search.ActionFilterChannel)

	startDate := slack.NewDatePickerBlockElement(search.ActionFilterStart)
	startDate.InitialDate = DefaultStartDate
	startDate.Placeholder = plainText("Start Date")

	endDate := slack.NewDatePickerBlockElement(search.ActionFilterEnd)
	endDate.InitialDate = now.AddDate(0, 0, 1).Format(search.DateLayout)
	endDate.Placeholder = plainText("End Date")

	var buttons []slack.BlockElement
	if !reranked {
		buttons = append(buttons, slack.NewButtonBlockElement(search.ActionEnableReranker, token, plainText("Enable Reranker")))
	}
	buttons = append(buttons, slack.NewButtonBlockElement(search.ActionMoreResults, token, plainText("More Results")).WithStyle(slack.StylePrimary))

	return []slack.Block{
		slack.NewDividerBlock(),
		markdownSection("User and Channel Filters:"),
		slack.NewActionBlock(stateBlockID(blockUserChannelFilters, token), userSelect, channelSelect),
		markdownSection("Minimum and Maximum Post Time Filters:"),
		slack.NewActionBlock(stateBlockID(blockDateFilters, token), startDate, endDate),
		slack.NewActionBlock(blockRefine, buttons...),
	}, nil
}

// stateBlockID appends the state token to a filter block id. Slack echoes
// block ids back with every interaction, which matters for ephemeral
// replies: their interactions carry no copy of the message. Tokens that do
// not fit leave the plain id, and the state is then read from the buttons.
func stateBlockID(base, token string) string {
	id := base + blockIDSeparator + token
	if len(id) > maxBlockIDLength {
		return base
	}
	return id
}

// HomeBlocks is the static welcome layout of the app home tab.
func HomeBlocks(slashCommand string) []slack.Block {
	return []slack.Block{
		markdownSection("*Welcome to Vectara* :tada:"),
		slack.NewDividerBlock(),
		markdownSection("To interact with Vectara with this slackbot:\n1. Invite it to any channels you want to be searchable\n2. Wait :slightly_smiling_face:"),
		markdownSection("The slackbot doesn't attempt to index any message history prior to it joining: it will only index Slack messages sent after the bot is in the channel"),
		slack.NewDividerBlock(),
		markdownSection(fmt.Sprintf("After messages have been sent while the bot has been in the channels, you can perform searches several ways:\n"+
			"1. Send me a message: `@` me and then send query text e.g. `@VectaraSlackSearch who mentioned going to Hawaii?`\n"+
			"2. Use the `%[1]s` command, e.g. `%[1]s who mentioned going to Hawaii?`\n"+
			"3. Use the `%[1]s` command with channel parameters, e.g. `%[1]s #vacations who mentioned going to Hawaii` to limit the search to just that channel",
			slashCommand)),
	}
}

func markdownSection(text string) *slack.SectionBlock {
	return slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)
}

func header(text string) *slack.HeaderBlock {
	return slack.NewHeaderBlock(plainText(text))
}

func plainText(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.PlainTextType, text, true, false)
}
