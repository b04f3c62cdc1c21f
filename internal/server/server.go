// Package server exposes the game over HTTP: lobby and game pages, the
// game-creation form, an event stream per session and static assets. It
// owns no game state; everything flows through the session registry.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/battlelinehq/battleline/internal/game"
	"github.com/battlelinehq/battleline/internal/session"
	"github.com/battlelinehq/battleline/internal/view"
)

//go:embed assets
var assetsFS embed.FS

// assetContentTypes maps asset file extensions to content types. Anything
// else is answered with 415 rather than guessed at (or crashed on).
var assetContentTypes = map[string]string{
	".css": "text/css",
	".ico": "image/x-icon",
	".js":  "text/javascript",
}

// Renderer is the markup collaborator consumed by the handlers.
type Renderer interface {
	Lobby(w io.Writer, data view.LobbyData) error
	Game(w io.Writer, data view.GameData) error
}

// Server wires the HTTP surface to the registry, hub and orchestrator.
type Server struct {
	cfg      *Config
	logger   *log.Logger
	registry *session.Registry
	orch     *Orchestrator
	renderer Renderer
	router   *mux.Router
	upgrader websocket.Upgrader
	baseCtx  context.Context
}

// NewServer builds the server and its routes. baseCtx bounds the lifetime
// of every bridge the server spawns.
func NewServer(baseCtx context.Context, cfg *Config, registry *session.Registry, orch *Orchestrator, renderer Renderer, logger *log.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger.WithPrefix("server"),
		registry: registry,
		orch:     orch,
		renderer: renderer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		baseCtx: baseCtx,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(noCache)
	r.HandleFunc("/", s.handleLobby).Methods(http.MethodGet)
	r.HandleFunc("/battleline", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/battleline/{id}", s.handleView).Methods(http.MethodGet)
	r.HandleFunc("/events/{id}", s.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/assets/{path:.*}", s.handleAsset).Methods(http.MethodGet)
	r.NotFoundHandler = noCache(http.HandlerFunc(s.handleNotFound))
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:    s.cfg.ListenAddress(),
		Handler: s.router,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down")
		return httpSrv.Shutdown(context.Background())
	})
	return g.Wait()
}

// noCache disables client and proxy caching on every response.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLobby(w http.ResponseWriter, r *http.Request) {
	summaries := s.registry.Sessions()
	data := view.LobbyData{Sessions: make([]view.LobbySession, 0, len(summaries))}
	for _, sum := range summaries {
		data.Sessions = append(data.Sessions, view.LobbySession{ID: sum.ID, Watchers: sum.Watchers})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Lobby(w, data); err != nil {
		s.logger.Error("failed to render lobby", "error", err)
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.logger.Warn("unparseable create form", "error", err)
	}
	mode, recognized := ParseMode(r.Form)
	if !recognized {
		s.logger.Warn("unrecognized game mode, defaulting", "mode", mode)
	}
	quantity := ParseQuantity(r.Form)

	s.orch.CreateGames(mode, quantity)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	res, err := s.registry.Resolve(r.Context(), id)
	if err != nil {
		s.logger.Error("session lookup failed", "session", id, "error", err)
		http.Error(w, "session lookup failed", http.StatusInternalServerError)
		return
	}

	switch res.Status {
	case session.StatusLive:
		st, err := res.Actor.Record(r.Context())
		if err != nil {
			// The actor terminated between lookup and snapshot; the archive
			// write may still be in flight. Send the client back around.
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.renderGame(w, id, st, true)

	case session.StatusArchived:
		if len(res.Record.Document) == 0 {
			// The document render failed at archive time; rebuild the page
			// from the stored terminal state instead of serving a blank one.
			var st game.State
			if err := json.Unmarshal(res.Record.State, &st); err != nil {
				s.logger.Error("archived session has no renderable record", "session", id, "error", err)
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			s.renderGame(w, id, &st, false)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write(res.Record.Document); err != nil {
			s.logger.Debug("failed to write archived document", "session", id, "error", err)
		}

	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) renderGame(w http.ResponseWriter, id uint64, st *game.State, live bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.renderer.Game(w, view.GameData{ID: id, State: st, Live: live}); err != nil {
		s.logger.Error("failed to render game", "session", id, "error", err)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	actor, ok := s.registry.Live(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "session", id, "error", err)
		return
	}

	bridge := NewBridge(s.baseCtx, conn, actor, s.registry.Hub(), s.cfg.Game.EventQueueSize, s.logger)
	bridge.Start()
	s.logger.Debug("event stream attached", "session", id)
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	name := path.Clean(mux.Vars(r)["path"])
	contentType, ok := assetContentTypes[path.Ext(name)]
	if !ok {
		http.Error(w, fmt.Sprintf("unsupported asset type: %s", path.Ext(name)), http.StatusUnsupportedMediaType)
		return
	}

	data, err := assetsFS.ReadFile(path.Join("assets", name))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", contentType)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("failed to write asset", "asset", name, "error", err)
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	http.NotFound(w, r)
}
