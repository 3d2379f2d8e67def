// Package chat provides the realtime conversation channel. A [Channel] is
// one WebSocket connection scoped to a single conversation: messages for the
// conversation arrive on [Channel.Messages], and [Channel.Send] publishes
// into it. Authentication reuses the session access token.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrClosed is returned by [Channel.Send] after the channel shut down.
var ErrClosed = errors.New("chat channel closed")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second

	// maxMessageSize bounds a single inbound frame.
	maxMessageSize = 32 << 10
)

// Message is one chat message on the conversation stream.
type Message struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId,omitempty"`
	SenderName     string    `json:"senderName,omitempty"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sentAt,omitempty"`
}

// outbound is the publish frame. The server derives the sender from the
// token, so only the conversation and content travel.
type outbound struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// Channel is a live subscription to one conversation.
type Channel struct {
	conversationID string
	conn           *websocket.Conn
	log            zerolog.Logger

	messages chan Message
	done     chan struct{}

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// Dial connects to the conversation stream at baseURL (the API root; the
// scheme is rewritten to ws/wss) using token as the bearer credential.
// The returned channel delivers messages until [Channel.Close] or a read
// failure, after which [Channel.Messages] is closed.
func Dial(ctx context.Context, baseURL, conversationID, token string, log zerolog.Logger) (*Channel, error) {
	if conversationID == "" {
		return nil, errors.New("chat: conversation id required")
	}
	if token == "" {
		return nil, errors.New("chat: token required")
	}

	endpoint, err := streamURL(baseURL, conversationID)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("chat: dial %s: %s: %w", endpoint, resp.Status, err)
		}
		return nil, fmt.Errorf("chat: dial %s: %w", endpoint, err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	ch := &Channel{
		conversationID: conversationID,
		conn:           conn,
		log:            log,
		messages:       make(chan Message, 32),
		done:           make(chan struct{}),
	}

	go ch.readPump()
	go ch.pingPump()
	return ch, nil
}

// streamURL turns the API root into the conversation stream endpoint.
func streamURL(baseURL, conversationID string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "ws://"), strings.HasPrefix(base, "wss://"):
	default:
		return "", fmt.Errorf("chat: unsupported base url %q", baseURL)
	}
	return base + "/chat/conversations/" + conversationID + "/stream", nil
}

// Messages returns the inbound stream. The channel is closed when the
// connection ends; a slow consumer drops messages rather than blocking the
// read loop.
func (c *Channel) Messages() <-chan Message { return c.messages }

// ConversationID returns the conversation this channel is bound to.
func (c *Channel) ConversationID() string { return c.conversationID }

// Send publishes content into the conversation.
func (c *Channel) Send(ctx context.Context, content string) error {
	select {
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	frame, err := json.Marshal(outbound{ConversationID: c.conversationID, Content: content})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.shutdown()
		return fmt.Errorf("chat: send: %w", err)
	}
	return nil
}

// Close sends a close frame and tears the connection down. Safe to call
// more than once.
func (c *Channel) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	close(c.done)
	return c.conn.Close()
}

// shutdown tears down after an I/O failure, without a close handshake.
func (c *Channel) shutdown() {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	c.closed = true
	c.closeMu.Unlock()

	close(c.done)
	_ = c.conn.Close()
}

func (c *Channel) readPump() {
	defer close(c.messages)
	defer c.shutdown()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Str("conversation", c.conversationID).Msg("chat stream ended")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Debug().Err(err).Msg("discarding unparseable chat frame")
			continue
		}

		select {
		case c.messages <- msg:
		default:
			c.log.Debug().Str("conversation", c.conversationID).Msg("dropping chat message, consumer behind")
		}
	}
}

func (c *Channel) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				c.shutdown()
				return
			}
		}
	}
}
