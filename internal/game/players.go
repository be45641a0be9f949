package game

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/desertthunder/spinmaster/internal/shared"
)

// DefaultWinPoints is the score threshold that declares a winner.
const DefaultWinPoints = 20

// Player is one competitive-mode participant.
type Player struct {
	ID    string
	Name  string
	Score int
}

// Match tracks competitive-mode scoring: a rotating current-player pointer
// and manually awarded points with a win threshold.
type Match struct {
	mu        sync.Mutex
	players   []Player
	current   int
	winnerID  string
	winPoints int
}

// NewMatch creates a match for the named players with the given win threshold.
func NewMatch(names []string, winPoints int) *Match {
	if winPoints <= 0 {
		winPoints = DefaultWinPoints
	}
	players := make([]Player, 0, len(names))
	for _, name := range names {
		players = append(players, Player{
			ID:   shared.GenerateID(),
			Name: name,
		})
	}
	return &Match{players: players, winPoints: winPoints}
}

// CurrentPlayer returns the player whose turn it is.
func (m *Match) CurrentPlayer() Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.players) == 0 {
		return Player{}
	}
	return m.players[m.current]
}

// Advance rotates the current-player pointer one step. Called once per
// next-card action.
func (m *Match) Advance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.players) == 0 {
		return
	}
	m.current = (m.current + 1) % len(m.players)
}

// AwardPoints parses input as a point value and adds it to the current
// player's score. Blank, non-numeric, zero, and negative inputs are no-ops.
// Returns whether any score changed.
func (m *Match) AwardPoints(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	parsed, err := strconv.ParseFloat(input, 64)
	if err != nil || math.IsInf(parsed, 0) || math.IsNaN(parsed) {
		return false
	}
	points := int(math.Floor(parsed))
	if points <= 0 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.players) == 0 {
		return false
	}
	m.players[m.current].Score += points
	m.checkWinnerLocked()
	return true
}

// checkWinnerLocked declares the first player at or over the threshold the
// winner, exactly once. Later score changes never reassign it.
func (m *Match) checkWinnerLocked() {
	if m.winnerID != "" {
		return
	}
	for _, p := range m.players {
		if p.Score >= m.winPoints {
			m.winnerID = p.ID
			return
		}
	}
}

// WinnerID returns the declared winner's id, or empty while the match runs.
func (m *Match) WinnerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.winnerID
}

// Winner returns the declared winner.
func (m *Match) Winner() (Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.winnerID == "" {
		return Player{}, false
	}
	for _, p := range m.players {
		if p.ID == m.winnerID {
			return p, true
		}
	}
	return Player{}, false
}

// ClearWinner resets the winner declaration (leaving competitive mode).
func (m *Match) ClearWinner() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.winnerID = ""
}

// Players returns a snapshot of the scoreboard.
func (m *Match) Players() []Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]Player, len(m.players))
	copy(snapshot, m.players)
	return snapshot
}

// WinPoints returns the win threshold.
func (m *Match) WinPoints() int {
	return m.winPoints
}
