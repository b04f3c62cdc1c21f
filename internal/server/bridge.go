package server

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/battlelinehq/battleline/internal/game"
	"github.com/battlelinehq/battleline/internal/pubsub"
	"github.com/battlelinehq/battleline/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024
)

// Bridge forwards one session's events to one websocket connection, and
// relays move messages from the connection back to the session's actor.
// It subscribes on creation and is guaranteed to unsubscribe when either
// pump exits, so a dropped connection cannot leak a subscription.
type Bridge struct {
	conn      *websocket.Conn
	actor     *session.Actor
	hub       *pubsub.Hub[session.Event]
	sub       *pubsub.Subscriber[session.Event]
	out       chan *Message
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewBridge attaches a bridge to conn for the given live actor. The
// subscription is registered before NewBridge returns.
func NewBridge(ctx context.Context, conn *websocket.Conn, actor *session.Actor, hub *pubsub.Hub[session.Event], queueSize int, logger *log.Logger) *Bridge {
	ctx, cancel := context.WithCancel(ctx)
	b := &Bridge{
		conn:   conn,
		actor:  actor,
		hub:    hub,
		sub:    pubsub.NewSubscriber[session.Event](queueSize),
		out:    make(chan *Message, 16),
		logger: logger.WithPrefix("bridge").With("session", actor.ID()),
		ctx:    ctx,
		cancel: cancel,
	}
	hub.Subscribe(actor.Topic(), b.sub)
	return b
}

// Start begins the read and write pumps.
func (b *Bridge) Start() {
	go b.writePump()
	go b.readPump()
}

// Close tears the bridge down: unsubscribes, cancels both pumps and
// closes the connection. Idempotent.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		b.hub.Unsubscribe(b.actor.Topic(), b.sub)
		b.cancel()
		_ = b.conn.Close()
		b.logger.Debug("bridge closed")
	})
}

// Done is closed once the bridge has been cancelled.
func (b *Bridge) Done() <-chan struct{} {
	return b.ctx.Done()
}

// writePump serializes events and outgoing messages to the connection.
func (b *Bridge) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		b.Close()
	}()

	for {
		select {
		case ev := <-b.sub.C:
			msg, err := messageFromEvent(ev)
			if err != nil {
				b.logger.Error("failed to encode event", "error", err)
				continue
			}
			if !b.write(msg) {
				return
			}

		case msg := <-b.out:
			if !b.write(msg) {
				return
			}

		case <-ticker.C:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-b.actor.Terminated():
			// The session is gone; flush whatever the terminal publish left
			// in the queue, then close instead of pinging a dead stream.
			for {
				select {
				case ev := <-b.sub.C:
					msg, err := messageFromEvent(ev)
					if err != nil {
						continue
					}
					if !b.write(msg) {
						return
					}
				default:
					_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = b.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
			}

		case <-b.ctx.Done():
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = b.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (b *Bridge) write(msg *Message) bool {
	_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := b.conn.WriteJSON(msg); err != nil {
		b.logger.Debug("failed to write message", "error", err)
		return false
	}
	return true
}

// readPump consumes client messages until the connection drops. The only
// accepted inbound type is a move.
func (b *Bridge) readPump() {
	defer b.Close()

	b.conn.SetReadLimit(maxMessageSize)
	_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
	b.conn.SetPongHandler(func(string) error {
		_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg Message
		if err := b.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				b.logger.Debug("websocket read error", "error", err)
			}
			return
		}
		b.handleMessage(&msg)
	}
}

func (b *Bridge) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeMove:
		var data MoveData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			b.sendError("invalid_message", "failed to parse move data")
			return
		}
		b.handleMove(data)
	default:
		b.sendError("unknown_message_type", "unknown message type: "+string(msg.Type))
	}
}

func (b *Bridge) handleMove(data MoveData) {
	err := b.actor.ApplyMove(b.ctx, data.Move())
	var rejected *game.RejectedError
	switch {
	case err == nil:
		// The accepted move comes back to this client as a state event.
	case errors.As(err, &rejected):
		b.sendError("move_rejected", rejected.Reason)
	case errors.Is(err, session.ErrTerminated):
		b.sendError("session_terminated", "the game is over")
	default:
		b.logger.Error("failed to apply move", "error", err)
		b.sendError("internal_error", "failed to apply move")
	}
}

func (b *Bridge) sendError(code, message string) {
	msg, err := NewMessage(MessageTypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		b.logger.Error("failed to create error message", "error", err)
		return
	}
	select {
	case b.out <- msg:
	case <-b.ctx.Done():
	default:
		b.logger.Warn("outbound buffer full, dropping error message", "code", code)
	}
}
