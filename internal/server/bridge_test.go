package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/battlelinehq/battleline/internal/game"
	"github.com/battlelinehq/battleline/internal/session"
)

func dialEvents(t *testing.T, env *testEnv, id uint64) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(env.http.URL, "http") + fmt.Sprintf("/events/%d", id)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

func TestBridgeStreamsStateEvents(t *testing.T) {
	env := newTestEnv(t)
	actor := env.registry.NewSession()
	conn := dialEvents(t, env, actor.ID())

	st, err := actor.Record(context.Background())
	require.NoError(t, err)
	moves := game.LegalMoves(st, st.Turn)
	require.NotEmpty(t, moves)
	require.NoError(t, actor.ApplyMove(context.Background(), moves[0]))

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeState, msg.Type)

	var ev session.Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	require.Equal(t, actor.ID(), ev.Session)
	require.Equal(t, uint64(1), ev.Seq)
}

func TestBridgeRelaysMoves(t *testing.T) {
	env := newTestEnv(t)
	actor := env.registry.NewSession()
	conn := dialEvents(t, env, actor.ID())

	st, err := actor.Record(context.Background())
	require.NoError(t, err)
	moves := game.LegalMoves(st, st.Turn)
	require.NotEmpty(t, moves)
	move := moves[0]

	out, err := NewMessage(MessageTypeMove, MoveData{
		Seat:  move.Seat,
		Color: string(move.Card.Color),
		Rank:  move.Card.Rank,
		Flag:  move.Flag,
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(out))

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeState, msg.Type)

	after, err := actor.Record(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, after.MoveCount)
}

func TestBridgeReportsRejectedMoves(t *testing.T) {
	env := newTestEnv(t)
	actor := env.registry.NewSession()
	conn := dialEvents(t, env, actor.ID())

	st, err := actor.Record(context.Background())
	require.NoError(t, err)
	waiting := 3 - st.Turn

	// A move from the seat whose turn it is not must bounce.
	hand := st.Hand(waiting)
	require.NotEmpty(t, hand)
	out, err := NewMessage(MessageTypeMove, MoveData{
		Seat:  waiting,
		Color: string(hand[0].Color),
		Rank:  hand[0].Rank,
		Flag:  0,
	})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(out))

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeError, msg.Type)

	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	require.Equal(t, "move_rejected", data.Code)

	after, err := actor.Record(context.Background())
	require.NoError(t, err)
	require.Zero(t, after.MoveCount)
}

func TestBridgeRejectsUnknownMessageTypes(t *testing.T) {
	env := newTestEnv(t)
	actor := env.registry.NewSession()
	conn := dialEvents(t, env, actor.ID())

	out, err := NewMessage(MessageType("chat"), map[string]string{"text": "hello"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(out))

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeError, msg.Type)

	var data ErrorData
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	require.Equal(t, "unknown_message_type", data.Code)
}

func TestBridgeUnsubscribesOnDisconnect(t *testing.T) {
	env := newTestEnv(t)
	actor := env.registry.NewSession()
	hub := env.registry.Hub()

	conn := dialEvents(t, env, actor.ID())
	require.Eventually(t, func() bool {
		return hub.Subscribers(actor.Topic()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return hub.Subscribers(actor.Topic()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

// TestBridgeClosesWhenSessionAlreadyTerminated attaches a bridge in the
// window after a session's terminal publish. No event will ever arrive,
// so the bridge must close the connection rather than keep it alive on
// pings indefinitely.
func TestBridgeClosesWhenSessionAlreadyTerminated(t *testing.T) {
	env := newTestEnv(t)
	actor := env.registry.NewSession()
	ctx := context.Background()

	for {
		st, err := actor.Record(ctx)
		if err != nil {
			break
		}
		moves := game.LegalMoves(st, st.Turn)
		require.NotEmpty(t, moves)
		if err := actor.ApplyMove(ctx, moves[0]); err != nil {
			break
		}
	}
	<-actor.Terminated()

	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewBridge(context.Background(), conn, actor, env.registry.Hub(), 8, log.New(io.Discard)).Start()
	}))
	t.Cleanup(ts.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			require.True(t,
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived),
				"expected a close frame, got %v", err)
			break
		}
	}

	require.Eventually(t, func() bool {
		return env.registry.Hub().Subscribers(actor.Topic()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBridgeAnnouncesGameEnd(t *testing.T) {
	env := newTestEnv(t)
	actor := env.registry.NewSession()
	conn := dialEvents(t, env, actor.ID())

	// Drive the game to completion from outside the socket.
	ctx := context.Background()
	for {
		st, err := actor.Record(ctx)
		if err != nil {
			break
		}
		if st.Over {
			break
		}
		moves := game.LegalMoves(st, st.Turn)
		require.NotEmpty(t, moves)
		err = actor.ApplyMove(ctx, moves[0])
		if err != nil {
			require.ErrorIs(t, err, session.ErrTerminated)
			break
		}
	}

	// Every move produced a state event; the final one is game_ended.
	for {
		msg := readMessage(t, conn)
		if msg.Type == MessageTypeGameEnded {
			return
		}
		require.Equal(t, MessageTypeState, msg.Type)
	}
}
