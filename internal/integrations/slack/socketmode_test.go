package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchbot/internal/search"
)

// callRecorder records acks and handled events in the order they happen.
type callRecorder struct {
	calls []string
}

func (r *callRecorder) Ack(req socketmode.Request, payload ...interface{}) {
	r.calls = append(r.calls, "ack:"+req.EnvelopeID)
}

func (r *callRecorder) Handle(ctx context.Context, event Event) error {
	r.calls = append(r.calls, "handle:"+event.Kind())
	return nil
}

func newTestListener(r *callRecorder) *Listener {
	return &Listener{
		acker:        r,
		handler:      r,
		eventTimeout: time.Second,
		spawn:        func(f func()) { f() },
	}
}

func moreResultsCallback(t *testing.T) slack.InteractionCallback {
	t.Helper()

	token, err := search.NewConversationState("hawaii").Encode()
	require.NoError(t, err)

	var callback slack.InteractionCallback
	require.NoError(t, json.Unmarshal([]byte(fmt.Sprintf(`{
		"type": "block_actions",
		"channel": {"id": "C1"},
		"actions": [{"action_id": "more_results", "block_id": "refine", "type": "button", "value": %q}]
	}`, token)), &callback))
	return callback
}

func TestListener_AcksBeforeHandling(t *testing.T) {
	testCases := []struct {
		name     string
		evt      socketmode.Event
		expected []string
	}{
		{
			name: "events api",
			evt: socketmode.Event{
				Type:    socketmode.EventTypeEventsAPI,
				Request: &socketmode.Request{EnvelopeID: "env-1"},
				Data: slackevents.EventsAPIEvent{
					Type: slackevents.CallbackEvent,
					InnerEvent: slackevents.EventsAPIInnerEvent{
						Type: "app_home_opened",
						Data: &slackevents.AppHomeOpenedEvent{User: "U1"},
					},
				},
			},
			expected: []string{"ack:env-1", "handle:" + KindHomeOpened},
		},
		{
			name: "interactive",
			evt: socketmode.Event{
				Type:    socketmode.EventTypeInteractive,
				Request: &socketmode.Request{EnvelopeID: "env-2"},
				Data:    moreResultsCallback(t),
			},
			expected: []string{"ack:env-2", "handle:" + KindBlockAction},
		},
		{
			name: "slash command",
			evt: socketmode.Event{
				Type:    socketmode.EventTypeSlashCommand,
				Request: &socketmode.Request{EnvelopeID: "env-3"},
				Data:    slack.SlashCommand{Command: "/vectara", Text: "hawaii"},
			},
			expected: []string{"ack:env-3", "handle:" + KindSlashCommand},
		},
		{
			name: "ignored interaction is still acked",
			evt: socketmode.Event{
				Type:    socketmode.EventTypeInteractive,
				Request: &socketmode.Request{EnvelopeID: "env-4"},
				Data:    slack.InteractionCallback{Type: slack.InteractionTypeViewSubmission},
			},
			expected: []string{"ack:env-4"},
		},
		{
			name:     "hello",
			evt:      socketmode.Event{Type: socketmode.EventTypeHello, Request: &socketmode.Request{Type: "hello"}},
			expected: nil,
		},
		{
			name:     "connecting",
			evt:      socketmode.Event{Type: socketmode.EventTypeConnecting},
			expected: nil,
		},
		{
			name:     "connected",
			evt:      socketmode.Event{Type: socketmode.EventTypeConnected},
			expected: nil,
		},
		{
			name:     "connection error",
			evt:      socketmode.Event{Type: socketmode.EventTypeConnectionError},
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := &callRecorder{}
			newTestListener(r).handleEvent(context.Background(), tc.evt)
			assert.Equal(t, tc.expected, r.calls)
		})
	}
}

func TestListener_Connected(t *testing.T) {
	l := newTestListener(&callRecorder{})
	assert.False(t, l.Connected())

	steps := []struct {
		eventType socketmode.EventType
		expected  bool
	}{
		{socketmode.EventTypeConnecting, false},
		{socketmode.EventTypeConnected, true},
		{socketmode.EventTypeHello, true},
		{socketmode.EventTypeConnectionError, false},
		{socketmode.EventTypeConnected, true},
		{socketmode.EventTypeDisconnect, false},
		{socketmode.EventTypeConnected, true},
		{socketmode.EventTypeInvalidAuth, false},
	}

	for _, step := range steps {
		l.handleEvent(context.Background(), socketmode.Event{Type: step.eventType})
		assert.Equal(t, step.expected, l.Connected(), "after %s", step.eventType)
	}
}
