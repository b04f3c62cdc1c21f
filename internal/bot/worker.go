package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/battlelinehq/battleline/internal/game"
	"github.com/battlelinehq/battleline/internal/pubsub"
	"github.com/battlelinehq/battleline/internal/session"
)

// Options tunes a Worker. Zero values give a real clock, no think delay
// and the default queue size.
type Options struct {
	Clock     quartz.Clock
	Delay     time.Duration
	QueueSize int
	Logger    *log.Logger
}

// Worker plays one seat of one session. It subscribes to the session's
// topic and reacts to turn events; duplicate or stale triggers resolve to
// rejected moves, which it treats as no-ops. The actor's serialization is
// the correctness mechanism, not anything the worker does.
type Worker struct {
	id       string
	actor    *session.Actor
	hub      *pubsub.Hub[session.Event]
	seat     int
	strategy Strategy
	clock    quartz.Clock
	delay    time.Duration
	logger   *log.Logger
	sub      *pubsub.Subscriber[session.Event]
}

// New builds a worker for seat on the actor's session.
func New(actor *session.Actor, hub *pubsub.Hub[session.Event], seat int, strategy Strategy, opts Options) *Worker {
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	id := fmt.Sprintf("bot-seat%d-%s", seat, uuid.NewString()[:8])
	return &Worker{
		id:       id,
		actor:    actor,
		hub:      hub,
		seat:     seat,
		strategy: strategy,
		clock:    opts.Clock,
		delay:    opts.Delay,
		logger:   opts.Logger.WithPrefix("bot").With("bot", id, "session", actor.ID(), "seat", seat),
		sub:      pubsub.NewSubscriber[session.Event](opts.QueueSize),
	}
}

// ID returns the worker's instance id.
func (w *Worker) ID() string { return w.id }

// Run plays until the session terminates or ctx is cancelled. It always
// unsubscribes on the way out.
func (w *Worker) Run(ctx context.Context) {
	topic := w.actor.Topic()
	w.hub.Subscribe(topic, w.sub)
	defer w.hub.Unsubscribe(topic, w.sub)
	w.logger.Debug("worker attached")

	// A fresh session has no event history, so look at the board once
	// before waiting for triggers.
	if !w.maybeMove(ctx) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.actor.Terminated():
			return
		case ev := <-w.sub.C:
			if ev.Type == session.EventGameEnded {
				w.logger.Debug("game ended", "winner", ev.Winner)
				return
			}
			if ev.Turn != w.seat {
				continue
			}
			if !w.maybeMove(ctx) {
				return
			}
		}
	}
}

// maybeMove submits one move if it is actually this seat's turn. Returns
// false when the worker should stop.
func (w *Worker) maybeMove(ctx context.Context) bool {
	if w.delay > 0 && !w.think(ctx) {
		return false
	}

	st, err := w.actor.Record(ctx)
	if err != nil {
		return false
	}
	if st.Over || st.Turn != w.seat {
		return true
	}
	move, ok := w.strategy.ChooseMove(st, w.seat)
	if !ok {
		return true
	}

	err = w.actor.ApplyMove(ctx, move)
	var rejected *game.RejectedError
	switch {
	case err == nil:
		w.logger.Debug("played", "card", move.Card, "flag", move.Flag)
		return true
	case errors.As(err, &rejected):
		// Stale trigger; the state moved on underneath us.
		w.logger.Debug("move rejected", "reason", rejected.Reason)
		return true
	default:
		return false
	}
}

func (w *Worker) think(ctx context.Context) bool {
	timer := w.clock.NewTimer(w.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	case <-w.actor.Terminated():
		return false
	}
}
