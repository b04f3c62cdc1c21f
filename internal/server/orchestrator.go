package server

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/battlelinehq/battleline/internal/bot"
	"github.com/battlelinehq/battleline/internal/session"
)

// Mode selects which seats are played by computer workers.
type Mode string

const (
	ModePlayerVsPlayer Mode = "PlayerVsPlayer"
	ModePlayerVsComp   Mode = "PlayerVsComp"
	ModeCompVsComp     Mode = "CompVsComp"
)

// botSeats returns the seats a mode hands to computer players.
func (m Mode) botSeats() []int {
	switch m {
	case ModePlayerVsPlayer:
		return nil
	case ModePlayerVsComp:
		return []int{2}
	default:
		return []int{1, 2}
	}
}

// ParseMode reads the mode flag from a submitted form. It accepts either
// a bare flag key (PlayerVsComp=...) or a mode=... field. Anything
// unrecognized or missing maps to CompVsComp; that fallback is the
// documented default, and callers log it so it stays observable.
func ParseMode(form url.Values) (Mode, bool) {
	for _, m := range []Mode{ModePlayerVsPlayer, ModePlayerVsComp, ModeCompVsComp} {
		if form.Has(string(m)) {
			return m, true
		}
	}
	switch v := Mode(form.Get("mode")); v {
	case ModePlayerVsPlayer, ModePlayerVsComp, ModeCompVsComp:
		return v, true
	}
	return ModeCompVsComp, false
}

// ParseQuantity reads the quantity field, defaulting to 1 on absence or
// parse failure.
func ParseQuantity(form url.Values) int {
	n, err := strconv.Atoi(form.Get("quantity"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Orchestrator creates batches of sessions and attaches computer player
// workers according to the requested mode. Workers run against the
// orchestrator's base context so they outlive the creating request.
type Orchestrator struct {
	registry *session.Registry
	baseCtx  context.Context
	clock    quartz.Clock
	delay    time.Duration
	queue    int
	strategy func(sessionID uint64, seat int) bot.Strategy
	logger   *log.Logger
}

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Registry *session.Registry
	// BaseCtx bounds the lifetime of all spawned workers. Defaults to
	// context.Background().
	BaseCtx context.Context
	Clock   quartz.Clock
	Delay   time.Duration
	// QueueSize is the event queue capacity for each worker.
	QueueSize int
	// Strategy builds the move-selection strategy for one worker.
	// Defaults to a greedy strategy seeded per (session, seat).
	Strategy func(sessionID uint64, seat int) bot.Strategy
	Logger   *log.Logger
}

// NewOrchestrator builds an orchestrator from cfg.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.BaseCtx == nil {
		cfg.BaseCtx = context.Background()
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Strategy == nil {
		cfg.Strategy = func(sessionID uint64, seat int) bot.Strategy {
			return bot.NewGreedy(int64(sessionID)<<8 | int64(seat))
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Orchestrator{
		registry: cfg.Registry,
		baseCtx:  cfg.BaseCtx,
		clock:    cfg.Clock,
		delay:    cfg.Delay,
		queue:    cfg.QueueSize,
		strategy: cfg.Strategy,
		logger:   cfg.Logger.WithPrefix("orchestrator"),
	}
}

// CreateGames creates quantity independent sessions and attaches workers
// per mode. It returns the new session ids.
func (o *Orchestrator) CreateGames(mode Mode, quantity int) []uint64 {
	if quantity < 1 {
		quantity = 1
	}
	ids := make([]uint64, 0, quantity)
	for i := 0; i < quantity; i++ {
		actor := o.registry.NewSession()
		ids = append(ids, actor.ID())
		for _, seat := range mode.botSeats() {
			w := bot.New(actor, o.registry.Hub(), seat, o.strategy(actor.ID(), seat), bot.Options{
				Clock:     o.clock,
				Delay:     o.delay,
				QueueSize: o.queue,
				Logger:    o.logger,
			})
			go w.Run(o.baseCtx)
		}
	}
	o.logger.Info("created games", "mode", mode, "quantity", quantity, "sessions", ids)
	return ids
}
