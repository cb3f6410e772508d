package slack

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchbot/internal/search"
	"searchbot/internal/services"
)

const testBotUserID = "UBOT"

type sentReply struct {
	target string
	reply  Reply
}

type mockMessenger struct {
	posted    []sentReply
	responded []sentReply
	homes     []string
	err       error
}

func (m *mockMessenger) PostMessage(ctx context.Context, channelID string, reply Reply) error {
	m.posted = append(m.posted, sentReply{target: channelID, reply: reply})
	return m.err
}

func (m *mockMessenger) Respond(ctx context.Context, responseURL string, reply Reply) error {
	m.responded = append(m.responded, sentReply{target: responseURL, reply: reply})
	return m.err
}

func (m *mockMessenger) PublishHome(ctx context.Context, userID string, blocks []slack.Block) error {
	m.homes = append(m.homes, userID)
	return m.err
}

type mockQuerier struct {
	found  bool
	err    error
	states []search.ConversationState
}

func (m *mockQuerier) Query(ctx context.Context, state search.ConversationState) (*services.QueryResult, error) {
	m.states = append(m.states, state)
	if m.err != nil {
		return nil, m.err
	}
	return &services.QueryResult{
		State:     state,
		Found:     m.found,
		Rerank:    state.Rerank,
		Text:      "we are going to Hawaii",
		Poster:    "U1",
		Channel:   "C1",
		Link:      "https://acme.slack.com/archives/C1/p1662000000000100",
		Timestamp: "1662000000.0001",
	}, nil
}

type mockIndexer struct {
	messages []services.InboundMessage
}

func (m *mockIndexer) IndexMessage(ctx context.Context, msg services.InboundMessage) (bool, error) {
	m.messages = append(m.messages, msg)
	return true, nil
}

type handlerFixture struct {
	handler   *Handler
	messenger *mockMessenger
	querier   *mockQuerier
	indexer   *mockIndexer
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		messenger: &mockMessenger{},
		querier:   &mockQuerier{found: true},
		indexer:   &mockIndexer{},
	}
	f.handler = NewHandler(f.messenger, f.querier, f.indexer, testBotUserID, "/vectara")
	f.handler.now = func() time.Time { return time.Date(2023, 3, 14, 9, 0, 0, 0, time.UTC) }
	return f
}

func TestHandle_HomeOpened(t *testing.T) {
	f := newHandlerFixture()

	require.NoError(t, f.handler.Handle(context.Background(), HomeOpened{User: "U1"}))
	assert.Equal(t, []string{"U1"}, f.messenger.homes)
}

func TestHandle_ChannelMessageIsIndexed(t *testing.T) {
	f := newHandlerFixture()

	err := f.handler.Handle(context.Background(), MessagePosted{
		Channel:     "C1",
		ChannelType: "channel",
		User:        "U1",
		Text:        "we are going to Hawaii",
		ClientMsgID: "msg-1",
		EventTS:     "1662000000.000100",
		Type:        "message",
	})
	require.NoError(t, err)

	require.Len(t, f.indexer.messages, 1)
	assert.Equal(t, services.InboundMessage{
		Channel:     "C1",
		ChannelType: "channel",
		User:        "U1",
		Text:        "we are going to Hawaii",
		ClientMsgID: "msg-1",
		EventTS:     "1662000000.000100",
		Type:        "message",
	}, f.indexer.messages[0])
	assert.Empty(t, f.querier.states)
	assert.Empty(t, f.messenger.posted)
}

func TestHandle_ChannelMentionIsQuery(t *testing.T) {
	f := newHandlerFixture()

	err := f.handler.Handle(context.Background(), MessagePosted{
		Channel:     "C1",
		ChannelType: "channel",
		User:        "U1",
		Text:        "<@UBOT> who is going to Hawaii?",
		EventTS:     "1662000000.000100",
	})
	require.NoError(t, err)

	assert.Empty(t, f.indexer.messages)
	require.Len(t, f.querier.states, 1)
	assert.Equal(t, "who is going to Hawaii?", f.querier.states[0].Query)
	assert.Equal(t, "C1", f.querier.states[0].Filters.Channel)
	require.Len(t, f.messenger.posted, 1)
	assert.Equal(t, "C1", f.messenger.posted[0].target)
}

func TestHandle_DirectMessageIsQuery(t *testing.T) {
	f := newHandlerFixture()

	err := f.handler.Handle(context.Background(), MessagePosted{
		Channel:     "D1",
		ChannelType: "im",
		User:        "U1",
		Text:        "who is going to Hawaii?",
	})
	require.NoError(t, err)

	require.Len(t, f.querier.states, 1)
	assert.Equal(t, search.NewConversationState("who is going to Hawaii?"), f.querier.states[0])
	require.Len(t, f.messenger.posted, 1)
	assert.Equal(t, "D1", f.messenger.posted[0].target)
	assert.NotEmpty(t, f.messenger.posted[0].reply.Blocks)
	assert.Empty(t, f.indexer.messages)
}

func TestHandle_SkippedMessages(t *testing.T) {
	testCases := []struct {
		name string
		ev   MessagePosted
	}{
		{name: "bot id", ev: MessagePosted{ChannelType: "channel", Text: "hello", BotID: "B1"}},
		{name: "subtype", ev: MessagePosted{ChannelType: "channel", Text: "hello", SubType: "message_changed"}},
		{name: "own message", ev: MessagePosted{ChannelType: "im", Text: "hello", User: testBotUserID}},
		{name: "no text", ev: MessagePosted{ChannelType: "channel", User: "U1"}},
		{name: "unhandled channel type", ev: MessagePosted{ChannelType: "mpim", Text: "hello", User: "U1"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newHandlerFixture()

			require.NoError(t, f.handler.Handle(context.Background(), tc.ev))
			assert.Empty(t, f.indexer.messages)
			assert.Empty(t, f.querier.states)
			assert.Empty(t, f.messenger.posted)
		})
	}
}

func TestHandle_EmptyMentionGetsUsage(t *testing.T) {
	f := newHandlerFixture()

	err := f.handler.Handle(context.Background(), MessagePosted{Channel: "D1", ChannelType: "im", User: "U1", Text: "<@UBOT>"})
	require.NoError(t, err)

	assert.Empty(t, f.querier.states)
	require.Len(t, f.messenger.posted, 1)
	assert.Contains(t, f.messenger.posted[0].reply.Text, "/vectara")
}

func TestHandle_SlashCommand(t *testing.T) {
	f := newHandlerFixture()

	err := f.handler.Handle(context.Background(), SlashCommand{
		Command:     "/vectara",
		Text:        "<#C03V4NCQJK2|vacations> who is going to Hawaii",
		ResponseURL: "https://hooks.slack.com/commands/1",
	})
	require.NoError(t, err)

	require.Len(t, f.querier.states, 1)
	state := f.querier.states[0]
	assert.Equal(t, "who is going to Hawaii", state.Query)
	assert.Equal(t, "C03V4NCQJK2", state.Filters.Channel)
	assert.Equal(t, 1, state.NumResults)

	require.Len(t, f.messenger.responded, 1)
	assert.Equal(t, "https://hooks.slack.com/commands/1", f.messenger.responded[0].target)
	assert.Empty(t, f.messenger.posted)
}

func TestHandle_SearchFailure(t *testing.T) {
	f := newHandlerFixture()
	f.querier.err = errors.New("vectara authentication failed with status 401")

	err := f.handler.Handle(context.Background(), SlashCommand{Text: "hawaii", ResponseURL: "https://hooks.slack.com/commands/1"})

	assert.ErrorContains(t, err, "401")
	require.Len(t, f.messenger.responded, 1)
	assert.Equal(t, searchFailedText, f.messenger.responded[0].reply.Text)
}

func TestHandle_NoResults(t *testing.T) {
	f := newHandlerFixture()
	f.querier.found = false

	err := f.handler.Handle(context.Background(), MessagePosted{Channel: "D1", ChannelType: "im", User: "U1", Text: "hawaii"})
	require.NoError(t, err)

	require.Len(t, f.messenger.posted, 1)
	assert.Equal(t, NoResultsText, f.messenger.posted[0].reply.Text)
	assert.Empty(t, f.messenger.posted[0].reply.Blocks)
}

func TestHandle_BlockActions(t *testing.T) {
	start := time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		action   BlockAction
		expected search.ConversationState
	}{
		{
			name:     "more results asks for one more",
			action:   BlockAction{ActionID: search.ActionMoreResults, Channel: "C1", State: search.NewConversationState("hawaii")},
			expected: search.ConversationState{Query: "hawaii", NumResults: 2},
		},
		{
			name:     "enable reranker",
			action:   BlockAction{ActionID: search.ActionEnableReranker, Channel: "C1", State: search.NewConversationState("hawaii")},
			expected: search.ConversationState{Query: "hawaii", NumResults: 1, Rerank: true},
		},
		{
			name: "filter keeps the result count",
			action: BlockAction{ActionID: search.ActionFilterStart, Channel: "C1", State: search.ConversationState{
				Query: "hawaii", NumResults: 1, Filters: search.FilterSet{Start: &start},
			}},
			expected: search.ConversationState{Query: "hawaii", NumResults: 1, Filters: search.FilterSet{Start: &start}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newHandlerFixture()

			require.NoError(t, f.handler.Handle(context.Background(), tc.action))
			require.Len(t, f.querier.states, 1)
			assert.Equal(t, tc.expected, f.querier.states[0])
			require.Len(t, f.messenger.posted, 1)
			assert.Equal(t, "C1", f.messenger.posted[0].target)
		})
	}
}

func TestHandle_BlockActionRespondsThroughResponseURL(t *testing.T) {
	testCases := []struct {
		name      string
		ephemeral bool
		inChannel bool
	}{
		{name: "ephemeral reply stays private", ephemeral: true, inChannel: false},
		{name: "channel reply stays public", ephemeral: false, inChannel: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newHandlerFixture()

			err := f.handler.Handle(context.Background(), BlockAction{
				ActionID:    search.ActionFilterUser,
				Channel:     "C1",
				ResponseURL: "https://hooks.slack.com/actions/1",
				Ephemeral:   tc.ephemeral,
				State:       search.ConversationState{Query: "hawaii", NumResults: 1, Filters: search.FilterSet{User: "U2"}},
			})
			require.NoError(t, err)

			assert.Empty(t, f.messenger.posted)
			require.Len(t, f.messenger.responded, 1)
			assert.Equal(t, "https://hooks.slack.com/actions/1", f.messenger.responded[0].target)
			assert.Equal(t, tc.inChannel, f.messenger.responded[0].reply.InChannel)
			assert.NotEmpty(t, f.messenger.responded[0].reply.Blocks)
		})
	}
}

func TestHandle_SlashCommandReplyIsPrivate(t *testing.T) {
	f := newHandlerFixture()

	require.NoError(t, f.handler.Handle(context.Background(), SlashCommand{Text: "hawaii", ResponseURL: "https://hooks.slack.com/commands/1"}))

	require.Len(t, f.messenger.responded, 1)
	assert.False(t, f.messenger.responded[0].reply.InChannel)
}

func TestHandle_UnknownAction(t *testing.T) {
	f := newHandlerFixture()

	require.NoError(t, f.handler.Handle(context.Background(), BlockAction{ActionID: "something_else", State: search.NewConversationState("q")}))
	assert.Empty(t, f.querier.states)
}

func TestParseCommandText(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected search.ConversationState
	}{
		{
			name:     "plain query",
			input:    "who mentioned going to Hawaii?",
			expected: search.NewConversationState("who mentioned going to Hawaii?"),
		},
		{
			name:  "channel with name",
			input: "<#C03V4NCQJK2|foo-bar> hawaii",
			expected: search.ConversationState{Query: "hawaii", NumResults: 1,
				Filters: search.FilterSet{Channel: "C03V4NCQJK2"}},
		},
		{
			name:  "user with name",
			input: "<@U03V4NCQJK2|shane> hawaii trip",
			expected: search.ConversationState{Query: "hawaii trip", NumResults: 1,
				Filters: search.FilterSet{User: "U03V4NCQJK2"}},
		},
		{
			name:  "channel without name",
			input: "<#C03V4NCQJK2> hawaii",
			expected: search.ConversationState{Query: "hawaii", NumResults: 1,
				Filters: search.FilterSet{Channel: "C03V4NCQJK2"}},
		},
		{
			name:  "token only",
			input: "<#C03V4NCQJK2|foo-bar>",
			expected: search.ConversationState{NumResults: 1,
				Filters: search.FilterSet{Channel: "C03V4NCQJK2"}},
		},
		{
			name:     "leading link is part of the query",
			input:    "<https://example.com> docs",
			expected: search.NewConversationState("<https://example.com> docs"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseCommandText(tc.input))
		})
	}
}
