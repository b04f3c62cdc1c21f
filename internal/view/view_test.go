package view

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/battlelinehq/battleline/internal/game"
)

func TestLobbyRendersSessions(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	err = r.Lobby(&buf, LobbyData{Sessions: []LobbySession{{ID: 3, Watchers: 2}, {ID: 9}}})
	require.NoError(t, err)

	html := buf.String()
	require.Contains(t, html, `href="/battleline/3"`)
	require.Contains(t, html, `href="/battleline/9"`)
	require.Contains(t, html, "2 watching")
}

func TestLobbyRendersEmptyState(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Lobby(&buf, LobbyData{}))
	require.Contains(t, buf.String(), "No live games")
}

func TestGameRendersLiveAndArchived(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	st := game.New(rand.New(rand.NewSource(1)))

	var live bytes.Buffer
	require.NoError(t, r.Game(&live, GameData{ID: 5, State: st, Live: true}))
	require.Contains(t, live.String(), "Seat 1 to act")
	require.Contains(t, live.String(), "/assets/app.js")

	doc, err := r.Document(5, st)
	require.NoError(t, err)
	require.NotContains(t, string(doc), "/assets/app.js", "archived document must not stream events")
}

func TestGameRendersOutcome(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	st := game.New(rand.New(rand.NewSource(2)))
	st.Over = true
	st.Turn = 0
	st.Winner = 2

	doc, err := r.Document(8, st)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(doc), "Seat 2 wins"))
}
