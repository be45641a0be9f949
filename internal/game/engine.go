// package game composes auth, catalog, and playback into the card game flow.
//
// The Engine owns the shuffled card deck and sequences user actions against
// playback: navigation and flips always pause first so audio never bleeds
// between cards. The Match adds competitive scoring on top.
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spinmaster/internal/catalog"
	"github.com/desertthunder/spinmaster/internal/shared"
	"github.com/desertthunder/spinmaster/internal/store"
)

// Card is one song in the deck.
//
// Membership and order are fixed once a round starts; only the flipped flag
// and the engine's current index mutate during play.
type Card struct {
	ID        string
	Track     catalog.Track
	URI       string
	IsFlipped bool
}

// TrackSource resolves the deck's tracks from the catalog.
type TrackSource interface {
	Tracks(ctx context.Context, trackIDs []string) ([]catalog.Track, error)
	Playlist(ctx context.Context, playlistID string) (*catalog.Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]catalog.Track, error)
}

// Playback is the subset of the player session the engine drives.
type Playback interface {
	PlayTrack(ctx context.Context, uri string) error
	Pause(ctx context.Context) error
	IsPlaying() bool
}

// PlaylistInfo is the display metadata of the selected playlist.
type PlaylistInfo struct {
	Name        string
	Owner       string
	TotalTracks int
}

// Options contains configuration for creating an Engine.
type Options struct {
	Source   TrackSource
	Playback Playback
	Store    *store.KV
	Logger   *log.Logger

	// Shuffle is a test seam; defaults to rand.Shuffle.
	Shuffle func(n int, swap func(i, j int))
}

// Engine drives one game round over a shuffled deck of cards.
type Engine struct {
	source   TrackSource
	playback Playback
	kv       *store.KV
	logger   *log.Logger
	shuffle  func(n int, swap func(i, j int))

	mu           sync.Mutex
	cards        []Card
	index        int
	started      bool
	initializing bool
	generation   uint64
	playlistInfo *PlaylistInfo
}

// NewEngine creates a game engine. No deck exists until Initialize.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: track source must be provided", shared.ErrInvalidConfig)
	}
	if opts.Playback == nil {
		return nil, fmt.Errorf("%w: playback must be provided", shared.ErrInvalidConfig)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: state store must be provided", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Shuffle == nil {
		opts.Shuffle = rand.Shuffle
	}
	return &Engine{
		source:   opts.Source,
		playback: opts.Playback,
		kv:       opts.Store,
		logger:   opts.Logger,
		shuffle:  opts.Shuffle,
	}, nil
}

// Initialize fetches tracks, builds the deck, and shuffles it.
//
// Re-entrant calls while a fetch is in flight are rejected. Each attempt
// gets a generation number; a slow fetch superseded by a newer attempt
// (changed playlist, full restart) discards its result instead of
// clobbering the fresh deck.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	if e.initializing {
		e.mu.Unlock()
		return shared.ErrInitInProgress
	}
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.initializing = true
	e.generation++
	generation := e.generation
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.initializing = false
		e.mu.Unlock()
	}()

	tracks, info, err := e.fetchTracks(ctx)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return fmt.Errorf("%w: no playable tracks resolved", shared.ErrEmptyTrackSet)
	}

	cards := make([]Card, 0, len(tracks))
	for _, track := range tracks {
		if track.URI == "" {
			continue
		}
		cards = append(cards, Card{
			ID:    shared.GenerateID(),
			Track: track,
			URI:   track.URI,
		})
	}
	if len(cards) == 0 {
		return fmt.Errorf("%w: no playable tracks resolved", shared.ErrEmptyTrackSet)
	}

	e.shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generation != generation {
		e.logger.Debug("discarding stale deck", "generation", generation, "current", e.generation)
		return nil
	}
	e.cards = cards
	e.index = 0
	e.started = true
	e.playlistInfo = info
	e.logger.Info("deck ready", "cards", len(cards))
	return nil
}

// fetchTracks resolves the configured playlist or falls back to the sample set.
func (e *Engine) fetchTracks(ctx context.Context) ([]catalog.Track, *PlaylistInfo, error) {
	playlistURL, ok, err := e.kv.Get(KeyPlaylistURL)
	if err != nil {
		return nil, nil, err
	}

	if ok && playlistURL != "" {
		playlistID, err := ExtractPlaylistID(playlistURL)
		if err != nil {
			return nil, nil, err
		}

		playlist, err := e.source.Playlist(ctx, playlistID)
		if err != nil {
			return nil, nil, err
		}
		info := &PlaylistInfo{
			Name:        playlist.Name,
			Owner:       playlist.Owner.DisplayName,
			TotalTracks: playlist.Tracks.Total,
		}

		tracks, err := e.source.PlaylistTracks(ctx, playlistID)
		if err != nil {
			return nil, nil, err
		}
		return tracks, info, nil
	}

	e.logger.Debug("no playlist configured, using fallback tracks")
	tracks, err := e.source.Tracks(ctx, SampleTrackIDs())
	if err != nil {
		return nil, nil, err
	}
	return tracks, nil, nil
}

// pauseIfPlaying stops playback before a state change. Pause failures are
// logged, not fatal: the navigation still proceeds.
func (e *Engine) pauseIfPlaying(ctx context.Context) {
	if !e.playback.IsPlaying() {
		return
	}
	if err := e.playback.Pause(ctx); err != nil {
		e.logger.Warn("failed to pause before state change", "error", err)
	}
}

// Next advances to the next card, pausing playback first. At the last card
// it is a no-op.
func (e *Engine) Next(ctx context.Context) {
	e.pauseIfPlaying(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index < len(e.cards)-1 {
		e.index++
	}
}

// Previous retreats to the previous card, pausing playback first. At index 0
// it is a no-op.
func (e *Engine) Previous(ctx context.Context) {
	e.pauseIfPlaying(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index > 0 {
		e.index--
	}
}

// Flip toggles the current card between song and answer, pausing playback first.
func (e *Engine) Flip(ctx context.Context) {
	e.pauseIfPlaying(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.cards) == 0 {
		return
	}
	e.cards[e.index].IsFlipped = !e.cards[e.index].IsFlipped
}

// PlayCurrent plays the current card's track, or pauses if already playing.
func (e *Engine) PlayCurrent(ctx context.Context) error {
	e.mu.Lock()
	if len(e.cards) == 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: no deck", shared.ErrEmptyTrackSet)
	}
	uri := e.cards[e.index].URI
	e.mu.Unlock()

	if e.playback.IsPlaying() {
		return e.playback.Pause(ctx)
	}
	return e.playback.PlayTrack(ctx, uri)
}

// Restart resets to the first card and unflips everything without
// reshuffling or refetching.
func (e *Engine) Restart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index = 0
	for i := range e.cards {
		e.cards[i].IsFlipped = false
	}
}

// FullRestart clears the deck and re-runs fetch and shuffle.
func (e *Engine) FullRestart(ctx context.Context) error {
	e.mu.Lock()
	e.cards = nil
	e.index = 0
	e.started = false
	e.generation++
	e.mu.Unlock()

	return e.Initialize(ctx)
}

// SetPlaylistURL validates and persists the playlist selection and resets
// the round so the next Initialize uses it.
func (e *Engine) SetPlaylistURL(url string) error {
	if _, err := ExtractPlaylistID(url); err != nil {
		return err
	}
	if err := e.kv.Set(KeyPlaylistURL, url); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cards = nil
	e.index = 0
	e.started = false
	e.generation++
	e.playlistInfo = nil
	return nil
}

// PlaylistURL returns the persisted playlist selection, if any.
func (e *Engine) PlaylistURL() (string, bool, error) {
	return e.kv.Get(KeyPlaylistURL)
}

// ChangePlaylist clears the persisted playlist selection and resets the round.
func (e *Engine) ChangePlaylist() error {
	if err := e.kv.Delete(KeyPlaylistURL); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.cards = nil
	e.index = 0
	e.started = false
	e.generation++
	e.playlistInfo = nil
	return nil
}

// CurrentCard returns a copy of the card at the current index.
func (e *Engine) CurrentCard() (Card, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.cards) == 0 {
		return Card{}, false
	}
	return e.cards[e.index], true
}

// Cards returns a snapshot of the deck.
func (e *Engine) Cards() []Card {
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := make([]Card, len(e.cards))
	copy(snapshot, e.cards)
	return snapshot
}

// Index returns the current card position.
func (e *Engine) Index() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index
}

// Len returns the deck size.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cards)
}

// Started reports whether a deck has been built.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// IsComplete reports whether the current index is at the last card.
func (e *Engine) IsComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cards) > 0 && e.index >= len(e.cards)-1
}

// PlaylistInfo returns metadata for the selected playlist, when one is loaded.
func (e *Engine) PlaylistInfo() *PlaylistInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playlistInfo
}
