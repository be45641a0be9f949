package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spinmaster/internal/game"
	"github.com/desertthunder/spinmaster/internal/player"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistInputView ViewState = iota
	LoadingView
	GameView
	ScoreboardView
	WinnerView
	ErrorView
)

// PlayerStatus is the slice of the playback session the view renders.
type PlayerStatus interface {
	Readiness() player.Readiness
	IsPlaying() bool
	Err() error
}

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	view   ViewState
	engine *game.Engine
	match  *game.Match // nil in casual mode
	status PlayerStatus

	width       int
	height      int
	urlInput    textinput.Model
	pointsInput textinput.Model
	awarding    bool
	err         error
	help        help.Model
	keys        keyMap
}

type deckReadyMsg struct {
	err error
}

type actionDoneMsg struct {
	err error
}

// NewModel creates a TUI model over the game engine and playback status.
//
// match is nil for casual mode; competitive mode supplies one and gains the
// award/scoreboard views.
func NewModel(ctx context.Context, engine *game.Engine, match *game.Match, status PlayerStatus) *Model {
	urlInput := textinput.New()
	urlInput.Placeholder = "https://open.spotify.com/playlist/..."
	urlInput.CharLimit = 200
	urlInput.Width = 60

	pointsInput := textinput.New()
	pointsInput.Placeholder = "points"
	pointsInput.CharLimit = 4
	pointsInput.Width = 10

	return &Model{
		ctx:         ctx,
		view:        LoadingView,
		engine:      engine,
		match:       match,
		status:      status,
		urlInput:    urlInput,
		pointsInput: pointsInput,
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

// Init builds the deck, or asks for a playlist when none is saved.
func (m *Model) Init() tea.Cmd {
	if _, ok, _ := m.engine.PlaylistURL(); !ok {
		m.view = PlaylistInputView
		m.urlInput.Focus()
		return textinput.Blink
	}
	return m.initializeDeck()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistInputView:
			return m.handlePlaylistInputKeys(msg)
		case GameView:
			return m.handleGameKeys(msg)
		case ScoreboardView:
			return m.handleScoreboardKeys(msg)
		case WinnerView:
			return m.handleWinnerKeys(msg)
		case ErrorView:
			return m.handleErrorKeys(msg)
		}
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil

	case deckReadyMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = ErrorView
			return m, nil
		}
		m.view = GameView
		return m, nil

	case actionDoneMsg:
		// Playback failures are non-fatal; the view just reflects the
		// session's error field on the next render.
		if m.match != nil && m.match.WinnerID() != "" {
			m.view = WinnerView
		}
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case PlaylistInputView:
		return m.renderPlaylistInput()
	case LoadingView:
		return m.renderLoading()
	case GameView:
		return m.renderGame()
	case ScoreboardView:
		return m.renderScoreboard()
	case WinnerView:
		return m.renderWinner()
	case ErrorView:
		return m.renderError()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		url := strings.TrimSpace(m.urlInput.Value())
		if url == "" {
			// No playlist means the fallback track set.
			m.view = LoadingView
			return m, m.initializeDeck()
		}
		if err := m.engine.SetPlaylistURL(url); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.urlInput.Blur()
		m.view = LoadingView
		return m, m.initializeDeck()
	}

	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}

func (m *Model) handleGameKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.awarding {
		return m.handleAwardKeys(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.next):
		return m, m.dispatch(func() error {
			m.engine.Next(m.ctx)
			if m.match != nil {
				m.match.Advance()
			}
			return nil
		})

	case key.Matches(msg, m.keys.previous):
		return m, m.dispatch(func() error {
			m.engine.Previous(m.ctx)
			return nil
		})

	case key.Matches(msg, m.keys.flip):
		return m, m.dispatch(func() error {
			m.engine.Flip(m.ctx)
			return nil
		})

	case key.Matches(msg, m.keys.play):
		return m, m.dispatch(func() error {
			return m.engine.PlayCurrent(m.ctx)
		})

	case key.Matches(msg, m.keys.restart):
		m.engine.Restart()
		return m, nil

	case key.Matches(msg, m.keys.fullRestart):
		m.view = LoadingView
		return m, func() tea.Msg {
			return deckReadyMsg{err: m.engine.FullRestart(m.ctx)}
		}

	case key.Matches(msg, m.keys.playlist):
		if err := m.engine.ChangePlaylist(); err != nil {
			m.err = err
			m.view = ErrorView
			return m, nil
		}
		m.view = PlaylistInputView
		m.urlInput.SetValue("")
		m.urlInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.award):
		if m.match != nil {
			m.awarding = true
			m.pointsInput.SetValue("")
			m.pointsInput.Focus()
			return m, textinput.Blink
		}

	case key.Matches(msg, m.keys.scoreboard):
		if m.match != nil {
			m.view = ScoreboardView
		}
	}
	return m, nil
}

func (m *Model) handleAwardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.awarding = false
		m.pointsInput.Blur()
		return m, nil
	case "enter":
		m.match.AwardPoints(m.pointsInput.Value())
		m.awarding = false
		m.pointsInput.Blur()
		if m.match.WinnerID() != "" {
			m.view = WinnerView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.pointsInput, cmd = m.pointsInput.Update(msg)
	return m, cmd
}

func (m *Model) handleScoreboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "s":
		m.view = GameView
	}
	return m, nil
}

func (m *Model) handleWinnerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "enter":
		return m, tea.Quit
	case "s":
		m.view = ScoreboardView
	}
	return m, nil
}

func (m *Model) handleErrorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.err = nil
		m.view = LoadingView
		return m, func() tea.Msg {
			return deckReadyMsg{err: m.engine.FullRestart(m.ctx)}
		}
	case "c":
		if err := m.engine.ChangePlaylist(); err == nil {
			m.err = nil
			m.view = PlaylistInputView
			m.urlInput.SetValue("")
			m.urlInput.Focus()
			return m, textinput.Blink
		}
	}
	return m, nil
}

// dispatch runs a game action off the render loop.
func (m *Model) dispatch(action func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: action()}
	}
}

func (m *Model) initializeDeck() tea.Cmd {
	return func() tea.Msg {
		return deckReadyMsg{err: m.engine.Initialize(m.ctx)}
	}
}

func (m *Model) renderPlaylistInput() string {
	title := styles.title.Render("🎵 Spinmaster")
	prompt := "Paste a Spotify playlist URL, or press enter for the sample deck:"

	var errLine string
	if m.err != nil {
		errLine = "\n" + styles.err.Render(m.err.Error())
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s%s\n\n%s", title, prompt, m.urlInput.View(), errLine, helpView)
}

func (m *Model) renderLoading() string {
	return styles.title.Render("🎵 Spinmaster") + "\nPreparing your music cards..."
}

func (m *Model) renderGame() string {
	card, ok := m.engine.CurrentCard()
	if !ok {
		return styles.err.Render("No cards loaded\n\nPress q to quit")
	}

	var header string
	if info := m.engine.PlaylistInfo(); info != nil {
		header = styles.help.Render(fmt.Sprintf("%s by %s • %d songs loaded", info.Name, info.Owner, m.engine.Len()))
	}

	var face string
	if card.IsFlipped {
		face = fmt.Sprintf("%s\n%s\n%s",
			styles.answer.Render(card.Track.Name),
			card.Track.ArtistNames(),
			styles.help.Render(card.Track.Year()),
		)
	} else {
		face = "🎵\n\nListen and guess!\nArtist • Title • Year"
	}

	playState := " "
	if m.status.IsPlaying() {
		playState = styles.ok.Render("▶ playing")
	} else if m.status.Readiness() != player.Ready {
		playState = styles.warn.Render("player " + m.status.Readiness().String())
	}

	counter := fmt.Sprintf("Card %d of %d", m.engine.Index()+1, m.engine.Len())
	if m.engine.IsComplete() {
		counter += styles.ok.Render("  — all cards done, R to play again")
	}

	var turn string
	if m.match != nil {
		current := m.match.CurrentPlayer()
		turn = fmt.Sprintf("\n👤 %s's turn", styles.ok.Render(current.Name))
		if m.awarding {
			turn += fmt.Sprintf("  award: %s", m.pointsInput.View())
		}
	}

	var errLine string
	if err := m.status.Err(); err != nil {
		errLine = "\n" + styles.warn.Render(err.Error())
	}

	helpView := m.help.ShortHelpView(m.keys.ShortHelp())
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s %s%s%s\n\n%s",
		styles.title.Render("🎵 Spinmaster"),
		header,
		styles.card.Render(face),
		counter, playState, turn, errLine,
		helpView,
	)
}

func (m *Model) renderScoreboard() string {
	title := styles.title.Render("🏆 Scoreboard")

	var rows strings.Builder
	for _, p := range m.match.Players() {
		name := p.Name
		if p.ID == m.match.CurrentPlayer().ID {
			name = styles.ok.Render(name + " ←")
		}
		fmt.Fprintf(&rows, "%-24s %d\n", name, p.Score)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s", title, rows.String(), helpView)
}

func (m *Model) renderWinner() string {
	winner, ok := m.match.Winner()
	if !ok {
		return m.renderGame()
	}
	title := styles.ok.Render(fmt.Sprintf("🎉 %s wins!", winner.Name))
	sub := fmt.Sprintf("Reached %d points", m.match.WinPoints())
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.scoreboard, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", title, sub, helpView)
}

func (m *Model) renderError() string {
	return styles.err.Render(fmt.Sprintf("Game Error: %v", m.err)) +
		"\n\nr: retry • c: change playlist • q: quit"
}
