package bot

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"

	"github.com/battlelinehq/battleline/internal/game"
	"github.com/battlelinehq/battleline/internal/session"
)

func newRegistry(t *testing.T, seed int64) *session.Registry {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	r, err := session.NewRegistry(session.Config{
		NewState: func() *game.State { return game.New(rng) },
	})
	require.NoError(t, err)
	return r
}

func TestGreedyOnlyReturnsLegalMoves(t *testing.T) {
	st := game.New(rand.New(rand.NewSource(1)))
	strategy := NewGreedy(1)

	move, ok := strategy.ChooseMove(st, 1)
	require.True(t, ok)
	require.Equal(t, 1, move.Seat)
	require.Contains(t, st.Hand(1), move.Card)

	st.Hands[1] = nil
	_, ok = strategy.ChooseMove(st, 2)
	require.False(t, ok)
}

func TestWorkerNeverDoubleMovesOnDuplicateTriggers(t *testing.T) {
	r := newRegistry(t, 2)
	actor := r.NewSession()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(actor, r.Hub(), 1, NewGreedy(2), Options{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// The worker's startup check plays seat 1's first move.
	require.Eventually(t, func() bool {
		st, err := actor.Record(ctx)
		return err == nil && st.MoveCount == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Flood the topic with stale "your turn" triggers. Every one resolves
	// against the live state, where it is seat 2's turn.
	for i := 0; i < 10; i++ {
		r.Hub().Publish(actor.Topic(), session.Event{
			Type:    session.EventStateUpdated,
			Session: actor.ID(),
			Turn:    1,
		})
	}

	time.Sleep(100 * time.Millisecond)
	st, err := actor.Record(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.MoveCount, "duplicate triggers produced extra accepted moves")
	require.Equal(t, 2, st.Turn)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
}

func TestTwoWorkersCompleteAGame(t *testing.T) {
	r := newRegistry(t, 3)
	actor := r.NewSession()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for seat := 1; seat <= 2; seat++ {
		go New(actor, r.Hub(), seat, NewGreedy(int64(seat)), Options{}).Run(ctx)
	}

	select {
	case <-actor.Terminated():
	case <-time.After(10 * time.Second):
		t.Fatal("computer-vs-computer game never finished")
	}

	require.Eventually(t, func() bool {
		return r.Hub().Subscribers(actor.Topic()) == 0
	}, 2*time.Second, 5*time.Millisecond, "workers left subscriptions behind")
}

func TestWorkerThinkDelayUsesClock(t *testing.T) {
	r := newRegistry(t, 4)
	actor := r.NewSession()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mClock := quartz.NewMock(t)
	trap := mClock.Trap().NewTimer()
	defer trap.Close()

	w := New(actor, r.Hub(), 1, NewGreedy(4), Options{Clock: mClock, Delay: time.Minute})
	go w.Run(ctx)

	// Hold the worker inside its think timer, prove nothing was played,
	// then release it.
	call := trap.MustWait(ctx)
	st, err := actor.Record(ctx)
	require.NoError(t, err)
	require.Zero(t, st.MoveCount)
	call.MustRelease(ctx)

	mClock.Advance(time.Minute).MustWait(ctx)

	require.Eventually(t, func() bool {
		st, err := actor.Record(ctx)
		return err == nil && st.MoveCount == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWorkerStopsWhenSessionTerminates(t *testing.T) {
	r := newRegistry(t, 5)
	actor := r.NewSession()
	ctx := context.Background()

	w := New(actor, r.Hub(), 2, NewGreedy(5), Options{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// Play the game out from the outside; the worker plays seat 2.
	rng := rand.New(rand.NewSource(5))
	for {
		st, err := actor.Record(ctx)
		if err != nil {
			break
		}
		if st.Turn == 1 {
			moves := game.LegalMoves(st, 1)
			require.NotEmpty(t, moves)
			_ = actor.ApplyMove(ctx, moves[rng.Intn(len(moves))])
		} else {
			time.Sleep(time.Millisecond)
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after session terminated")
	}
}
