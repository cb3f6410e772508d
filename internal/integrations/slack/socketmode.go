package slack

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"searchbot/internal/metrics"
)

// acker acknowledges socket mode requests.
type acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// eventHandler processes a parsed event.
type eventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// Listener receives events over a socket mode connection and hands them
// to a Handler.
type Listener struct {
	socket       *socketmode.Client
	acker        acker
	handler      eventHandler
	eventTimeout time.Duration
	connected    atomic.Bool

	// spawn runs event processing off the receive loop.
	spawn func(func())
}

// BotUserID looks up the user id the bot token belongs to.
func BotUserID(ctx context.Context, client *slack.Client) (string, error) {
	authTest, err := client.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get bot user ID: %w", err)
	}
	return authTest.UserID, nil
}

// NewListener creates a socket mode listener on client, which must carry an
// app-level token.
func NewListener(client *slack.Client, handler *Handler, eventTimeout time.Duration) *Listener {
	socket := socketmode.New(client)
	return &Listener{
		socket:       socket,
		acker:        socket,
		handler:      handler,
		eventTimeout: eventTimeout,
		spawn:        func(f func()) { go f() },
	}
}

// Connected reports whether the socket mode connection is currently up.
func (l *Listener) Connected() bool {
	return l.connected.Load()
}

// Run connects and processes events until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	defer l.connected.Store(false)
	go l.handleEvents(ctx)
	return l.socket.RunContext(ctx)
}

func (l *Listener) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-l.socket.Events:
			if !ok {
				return
			}
			l.handleEvent(ctx, evt)
		}
	}
}

func (l *Listener) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		l.connected.Store(false)
		slog.Info("Connecting to Slack with socket mode")
		return
	case socketmode.EventTypeConnectionError:
		l.connected.Store(false)
		slog.Warn("Slack socket mode connection failed, retrying")
		return
	case socketmode.EventTypeDisconnect:
		l.connected.Store(false)
		slog.Info("Slack asked to disconnect, reconnecting")
		return
	case socketmode.EventTypeConnected:
		l.connected.Store(true)
		slog.Info("Connected to Slack with socket mode")
		return
	case socketmode.EventTypeInvalidAuth:
		l.connected.Store(false)
		slog.Error("Slack rejected the app token")
		return
	case socketmode.EventTypeEventsAPI, socketmode.EventTypeInteractive, socketmode.EventTypeSlashCommand:
		// Slack expires interactions that are not acknowledged quickly, so
		// ack before any network call.
		if evt.Request != nil {
			l.acker.Ack(*evt.Request)
		}
	default:
		return
	}

	event, err := ParseEvent(evt)
	if err != nil {
		slog.Error("Failed to parse Slack event", "type", evt.Type, "error", err)
		metrics.SlackEventsFailed.WithLabelValues("parse").Inc()
		return
	}
	if event == nil {
		slog.Debug("Ignored Slack event", "type", evt.Type)
		return
	}

	metrics.SlackEventsReceived.WithLabelValues(event.Kind()).Inc()
	l.spawn(func() { l.process(ctx, event) })
}

func (l *Listener) process(ctx context.Context, event Event) {
	ctx, cancel := context.WithTimeout(ctx, l.eventTimeout)
	defer cancel()

	if err := l.handler.Handle(ctx, event); err != nil {
		slog.Error("Failed to handle Slack event", "kind", event.Kind(), "error", err)
		metrics.SlackEventsFailed.WithLabelValues(event.Kind()).Inc()
	}
}
