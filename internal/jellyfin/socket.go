package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/easierlife/internal/config"
	"github.com/saltyorg/easierlife/internal/events"
	"github.com/saltyorg/easierlife/internal/library"
)

// Publisher receives item events decoded from the socket
type Publisher interface {
	Publish(ctx context.Context, e events.ItemEvent) error
}

type socketMessage struct {
	MessageType string `json:"MessageType"`
	Data        any    `json:"Data,omitempty"`
}

type socketResponse struct {
	MessageType string          `json:"MessageType"`
	Data        json.RawMessage `json:"Data,omitempty"`
}

// libraryChanged is the payload of a LibraryChanged message
type libraryChanged struct {
	ItemsAdded   []string `json:"ItemsAdded"`
	ItemsUpdated []string `json:"ItemsUpdated"`
	ItemsRemoved []string `json:"ItemsRemoved"`
}

// SocketWatcher streams library changes from the Jellyfin websocket onto a publisher
type SocketWatcher struct {
	client    *Client
	publisher Publisher
	dialer    *websocket.Dialer

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewSocketWatcher creates a watcher for the client's server
func NewSocketWatcher(client *Client, publisher Publisher) *SocketWatcher {
	return &SocketWatcher{
		client:         client,
		publisher:      publisher,
		dialer:         websocket.DefaultDialer,
		initialBackoff: 1 * time.Second,
		maxBackoff:     5 * time.Minute,
	}
}

// Name returns the handler name
func (w *SocketWatcher) Name() string {
	return "jellyfin-socket"
}

// Run keeps a websocket connection open until ctx is cancelled, reconnecting with exponential backoff
func (w *SocketWatcher) Run(ctx context.Context) error {
	pingInterval := config.GetTimeouts().WebSocketPing
	backoff := w.initialBackoff

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		connected, err := w.runOnce(ctx, pingInterval)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			backoff = w.initialBackoff
		}

		log.Warn().
			Err(err).
			Dur("backoff", backoff).
			Msg("Jellyfin WebSocket disconnected, reconnecting")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, w.maxBackoff)
	}
}

// runOnce handles a single connection. connected reports whether the dial succeeded.
func (w *SocketWatcher) runOnce(ctx context.Context, pingInterval time.Duration) (connected bool, err error) {
	wsURL, err := w.socketURL()
	if err != nil {
		return false, fmt.Errorf("failed to build WebSocket URL: %w", err)
	}

	conn, _, err := w.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("WebSocket dial failed: %w", err)
	}
	defer conn.Close()

	log.Info().Str("server", w.client.BaseURL()).Msg("Connected to Jellyfin WebSocket")

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	readErrCh := make(chan error, 1)
	keepAliveCh := make(chan struct{}, 1)

	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				readErrCh <- err
				return
			}

			log.Trace().RawJSON("message", message).Msg("Received WebSocket message")

			var msg socketResponse
			if err := json.Unmarshal(message, &msg); err != nil {
				log.Debug().Err(err).Msg("Failed to parse WebSocket message")
				continue
			}

			switch msg.MessageType {
			case "ForceKeepAlive":
				select {
				case keepAliveCh <- struct{}{}:
				default:
				}
			case "LibraryChanged":
				w.handleLibraryChanged(ctx, msg.Data)
			}
		}
	}()

	// gorilla connections allow one concurrent writer; all writes happen below
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return true, ctx.Err()
		case err := <-readErrCh:
			return true, err
		case <-keepAliveCh:
			if err := conn.WriteJSON(socketMessage{MessageType: "KeepAlive"}); err != nil {
				return true, fmt.Errorf("keep-alive failed: %w", err)
			}
		case <-pingTicker.C:
			if err := conn.WriteJSON(socketMessage{MessageType: "KeepAlive"}); err != nil {
				return true, fmt.Errorf("keep-alive failed: %w", err)
			}
		}
	}
}

// handleLibraryChanged publishes one event per added or updated item.
// The socket carries no update reason, so updates are published with ReasonNone.
func (w *SocketWatcher) handleLibraryChanged(ctx context.Context, data json.RawMessage) {
	var changed libraryChanged
	if err := json.Unmarshal(data, &changed); err != nil {
		log.Debug().Err(err).Msg("Failed to parse LibraryChanged payload")
		return
	}

	log.Debug().
		Int("added", len(changed.ItemsAdded)).
		Int("updated", len(changed.ItemsUpdated)).
		Int("removed", len(changed.ItemsRemoved)).
		Msg("Jellyfin library changed")

	for _, id := range changed.ItemsAdded {
		w.publish(ctx, events.NewItemEvent(events.ItemAdded, id, library.ReasonNone, events.SourceWebSocket))
	}
	for _, id := range changed.ItemsUpdated {
		w.publish(ctx, events.NewItemEvent(events.ItemUpdated, id, library.ReasonNone, events.SourceWebSocket))
	}
}

func (w *SocketWatcher) publish(ctx context.Context, e events.ItemEvent) {
	if err := w.publisher.Publish(ctx, e); err != nil {
		log.Debug().Err(err).Str("item_id", e.ItemID).Msg("Failed to publish library event")
	}
}

// socketURL converts the server address to its websocket endpoint
func (w *SocketWatcher) socketURL() (string, error) {
	parsed, err := url.Parse(w.client.BaseURL())
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = parsed.Path + "/socket"

	q := url.Values{}
	q.Set("api_key", w.client.apiKey)
	parsed.RawQuery = q.Encode()

	return parsed.String(), nil
}
