// Package view renders the lobby and game pages. It is the only place
// markup lives; the core consumes it through the narrow Renderer surface.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/battlelinehq/battleline/internal/game"
)

//go:embed templates/*.html
var templatesFS embed.FS

// LobbySession is one live game row on the lobby page.
type LobbySession struct {
	ID       uint64
	Watchers int
}

// LobbyData feeds the lobby template.
type LobbyData struct {
	Sessions []LobbySession
}

// GameData feeds the game template. Live games embed the event-stream
// script; archived documents are rendered without it.
type GameData struct {
	ID    uint64
	State *game.State
	Live  bool
}

// Renderer holds the parsed templates.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"seatHand": func(st *game.State, seat int) []game.Card { return st.Hand(seat) },
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Lobby writes the lobby page.
func (r *Renderer) Lobby(w io.Writer, data LobbyData) error {
	return r.tmpl.ExecuteTemplate(w, "lobby.html", data)
}

// Game writes the game page.
func (r *Renderer) Game(w io.Writer, data GameData) error {
	return r.tmpl.ExecuteTemplate(w, "game.html", data)
}

// Document renders the immutable page archived with a finished session.
func (r *Renderer) Document(id uint64, st *game.State) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Game(&buf, GameData{ID: id, State: st}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
