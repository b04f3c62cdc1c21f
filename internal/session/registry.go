// Package session holds the lifecycle machinery for live games: the
// registry that issues session ids and the actor that owns each game's
// state. A session id is resolvable to exactly one of live, archived or
// unknown at any time.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/battlelinehq/battleline/internal/game"
	"github.com/battlelinehq/battleline/internal/pubsub"
	"github.com/battlelinehq/battleline/internal/store"
)

// Status tags a Resolution.
type Status int

const (
	// StatusUnknown means the id was never issued or its archive write has
	// not landed yet.
	StatusUnknown Status = iota
	// StatusLive means a live actor serves the id.
	StatusLive
	// StatusArchived means the game concluded and a durable record exists.
	StatusArchived
)

// Resolution is the single answer to "what is session id X": a live actor
// handle, an archived record, or nothing.
type Resolution struct {
	Status Status
	Actor  *Actor
	Record *store.Record
}

// Summary describes one live session for the lobby view.
type Summary struct {
	ID       uint64
	Watchers int
}

// Config wires a Registry's collaborators.
type Config struct {
	Hub      *pubsub.Hub[Event]
	Store    store.Store
	Engine   Engine
	Document DocumentFunc
	// NewState produces the initial state for a fresh session. Defaults to
	// a time-seeded deal.
	NewState func() *game.State
	Logger   *log.Logger
}

// Registry issues session ids, spawns actors and answers lookups. It is
// the single source of truth for which games are live.
type Registry struct {
	hub      *pubsub.Hub[Event]
	store    store.Store
	engine   Engine
	document DocumentFunc
	newState func() *game.State
	logger   *log.Logger

	mu     sync.RWMutex
	nextID uint64
	actors map[uint64]*Actor
}

// NewRegistry builds a registry from cfg, filling in defaults for any
// collaborator left nil. The id counter starts above the store's highest
// archived id, so ids stay unique across restarts; a store that cannot
// report its high-water mark is an error, because issuing ids below it
// would let new sessions shadow and overwrite archived ones.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Hub == nil {
		cfg.Hub = pubsub.New[Event]()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemory()
	}
	if cfg.Engine == nil {
		cfg.Engine = game.Engine{}
	}
	if cfg.Document == nil {
		cfg.Document = func(uint64, *game.State) ([]byte, error) { return nil, nil }
	}
	if cfg.NewState == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		var mu sync.Mutex
		cfg.NewState = func() *game.State {
			mu.Lock()
			defer mu.Unlock()
			return game.New(rng)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	maxID, err := cfg.Store.MaxID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("read archived id high-water mark: %w", err)
	}
	return &Registry{
		hub:      cfg.Hub,
		store:    cfg.Store,
		engine:   cfg.Engine,
		document: cfg.Document,
		newState: cfg.NewState,
		logger:   cfg.Logger.WithPrefix("registry"),
		nextID:   maxID,
		actors:   make(map[uint64]*Actor),
	}, nil
}

// Hub returns the event hub shared by this registry's actors.
func (r *Registry) Hub() *pubsub.Hub[Event] { return r.hub }

// NewSession allocates a fresh id, spawns its actor and registers the
// mapping atomically. It never fails.
func (r *Registry) NewSession() *Actor {
	state := r.newState()
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	actor := newActor(id, state, r)
	r.actors[id] = actor
	r.mu.Unlock()

	r.logger.Info("session created", "session", id)
	return actor
}

// Live returns the live actor for id, if one exists. Paths that must not
// fall back to the archive (event streaming) use this directly.
func (r *Registry) Live(id uint64) (*Actor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	actor, ok := r.actors[id]
	return actor, ok
}

// Resolve answers a session lookup with the explicit live/archived/unknown
// union. A store failure is returned as an error, distinct from a clean
// miss.
func (r *Registry) Resolve(ctx context.Context, id uint64) (Resolution, error) {
	if actor, ok := r.Live(id); ok {
		return Resolution{Status: StatusLive, Actor: actor}, nil
	}
	rec, err := r.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Resolution{Status: StatusUnknown}, nil
	}
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Status: StatusArchived, Record: &rec}, nil
}

// Deregister removes the mapping for id. Called by a terminating actor;
// idempotent.
func (r *Registry) Deregister(id uint64) {
	r.mu.Lock()
	_, ok := r.actors[id]
	delete(r.actors, id)
	r.mu.Unlock()
	if ok {
		r.logger.Info("session deregistered", "session", id)
	}
}

// Sessions snapshots the live sessions, sorted by id.
func (r *Registry) Sessions() []Summary {
	r.mu.RLock()
	ids := make([]uint64, 0, len(r.actors))
	for id := range r.actors {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		summaries = append(summaries, Summary{ID: id, Watchers: r.hub.Subscribers(id)})
	}
	return summaries
}
