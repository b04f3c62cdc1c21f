package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/charmbracelet/log"

	"github.com/battlelinehq/battleline/internal/game"
	"github.com/battlelinehq/battleline/internal/pubsub"
	"github.com/battlelinehq/battleline/internal/store"
)

// ErrTerminated reports a command sent to an actor that has already
// finished its game. Callers should fall back to the durable store.
var ErrTerminated = errors.New("session terminated")

// Engine validates and applies moves; implemented by game.Engine.
type Engine interface {
	Apply(s *game.State, m game.Move) (*game.State, error)
}

// DocumentFunc renders the read-only document archived with a finished
// session.
type DocumentFunc func(id uint64, st *game.State) ([]byte, error)

const (
	persistAttempts = 3
	persistBackoff  = 250 * time.Millisecond
	persistTimeout  = 10 * time.Second
)

type command struct {
	move  *game.Move // nil requests a snapshot
	reply chan result
}

type result struct {
	state *game.State
	err   error
}

// Actor is the sole owner of one live game's state. Every command is
// processed by a single goroutine in arrival order, which is the only
// serialization mechanism for the state it wraps.
type Actor struct {
	id         uint64
	engine     Engine
	hub        *pubsub.Hub[Event]
	store      store.Store
	document   DocumentFunc
	deregister func(uint64)
	logger     *log.Logger

	cmds chan command
	done chan struct{}

	// owned by run
	state *game.State
	seq   uint64
}

func newActor(id uint64, state *game.State, r *Registry) *Actor {
	a := &Actor{
		id:         id,
		engine:     r.engine,
		hub:        r.hub,
		store:      r.store,
		document:   r.document,
		deregister: r.Deregister,
		logger:     r.logger.WithPrefix("actor").With("session", id),
		cmds:       make(chan command),
		done:       make(chan struct{}),
		state:      state,
	}
	go a.run()
	return a
}

// ID returns the session id.
func (a *Actor) ID() uint64 { return a.id }

// Topic returns the pubsub topic key, which equals the session id.
func (a *Actor) Topic() uint64 { return a.id }

// Terminated is closed once the actor has stopped accepting commands.
func (a *Actor) Terminated() <-chan struct{} { return a.done }

// ApplyMove submits a move. It returns a *game.RejectedError for illegal
// moves (state unchanged, nothing published) and ErrTerminated once the
// game is over.
func (a *Actor) ApplyMove(ctx context.Context, m game.Move) error {
	res, err := a.send(ctx, command{move: &m})
	if err != nil {
		return err
	}
	return res.err
}

// Record returns a deep snapshot of the current state as of the call.
// Snapshots are ordered with moves through the same command channel.
func (a *Actor) Record(ctx context.Context) (*game.State, error) {
	res, err := a.send(ctx, command{})
	if err != nil {
		return nil, err
	}
	return res.state, nil
}

func (a *Actor) send(ctx context.Context, cmd command) (result, error) {
	cmd.reply = make(chan result, 1)
	select {
	case a.cmds <- cmd:
	case <-a.done:
		return result{}, ErrTerminated
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
	select {
	case res := <-cmd.reply:
		return res, nil
	case <-a.done:
		// The actor may have terminated after accepting our command;
		// take the reply if it was produced before the stop.
		select {
		case res := <-cmd.reply:
			return res, nil
		default:
			return result{}, ErrTerminated
		}
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

func (a *Actor) run() {
	for cmd := range a.cmds {
		if cmd.move == nil {
			cmd.reply <- result{state: a.state.Clone()}
			continue
		}

		next, err := a.engine.Apply(a.state, *cmd.move)
		if err != nil {
			cmd.reply <- result{err: err}
			continue
		}

		a.state = next
		a.seq++
		ev := a.event()
		cmd.reply <- result{}

		if next.Over {
			a.hub.Publish(a.id, ev)
			a.logger.Info("game ended", "winner", next.Winner, "moves", next.MoveCount)
			final := next.Clone()
			go a.persist(final)
			a.deregister(a.id)
			close(a.done)
			return
		}
		a.hub.Publish(a.id, ev)
	}
}

func (a *Actor) event() Event {
	ev := Event{
		Type:    EventStateUpdated,
		Session: a.id,
		Seq:     a.seq,
		Turn:    a.state.Turn,
		Winner:  a.state.Winner,
	}
	if a.state.Over {
		ev.Type = EventGameEnded
	}
	raw, err := json.Marshal(a.state)
	if err != nil {
		a.logger.Error("failed to serialize state for event", "error", err)
		return ev
	}
	ev.State = raw
	return ev
}

// persist archives the terminal state. It runs off the actor goroutine so
// a slow store cannot stall registry lookups; failures are retried and
// logged loudly rather than swallowed.
func (a *Actor) persist(final *game.State) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	raw, err := json.Marshal(final)
	if err != nil {
		a.logger.Error("failed to serialize final state", "error", err)
		return
	}
	doc, err := a.document(a.id, final)
	if err != nil {
		a.logger.Error("failed to render final document", "error", err)
		doc = nil
	}
	rec := store.Record{State: raw, Document: doc, SavedAt: time.Now()}

	for attempt := 1; attempt <= persistAttempts; attempt++ {
		err = a.store.Put(ctx, a.id, rec)
		if err == nil {
			a.logger.Debug("session archived", "attempt", attempt)
			return
		}
		a.logger.Warn("archive attempt failed", "attempt", attempt, "error", err)
		time.Sleep(persistBackoff * time.Duration(attempt))
	}
	a.logger.Error("final state not archived, session degraded", "error", err)
}
