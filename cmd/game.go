package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spinmaster/internal/auth"
	"github.com/desertthunder/spinmaster/internal/catalog"
	"github.com/desertthunder/spinmaster/internal/game"
	"github.com/desertthunder/spinmaster/internal/player"
	"github.com/desertthunder/spinmaster/internal/shared"
	"github.com/desertthunder/spinmaster/internal/ui"
	"github.com/urfave/cli/v3"
)

// Play launches a casual game.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))
	return r.launchGame(ctx, nil)
}

// Compete launches a competitive game with rotating turns and scoring.
func (r *Runner) Compete(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	names := cmd.StringSlice("player")
	if len(names) < 2 {
		return fmt.Errorf("%w: competitive mode needs at least two --player flags", shared.ErrMissingArgument)
	}

	winPoints := cmd.Int("win-points")
	if winPoints <= 0 {
		winPoints = r.config.Game.WinPoints
	}

	return r.launchGame(ctx, game.NewMatch(names, winPoints))
}

// launchGame wires auth, catalog, playback, and the game engine into the TUI.
//
// Playback requires a premium account and a reachable Connect device; both
// are verified before the terminal is handed to bubbletea.
func (r *Runner) launchGame(ctx context.Context, match *game.Match) error {
	session, err := r.ensureSession()
	if err != nil {
		return err
	}
	if err := session.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if session.State() != auth.Authenticated {
		return fmt.Errorf("%w: run 'spinmaster auth login' first", shared.ErrNoToken)
	}

	kv, err := r.ensureStore()
	if err != nil {
		return err
	}

	// Logs go to a file from here on so log lines never corrupt the TUI render.
	fileLogger, err := shared.NewFileLogger("./tmp/spinmaster-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	client := catalog.NewClient(session.Token,
		catalog.WithHTTPClient(r.httpClient),
		catalog.WithLogger(fileLogger),
	)

	sdk := player.NewConnectSDK(client, session.Token, r.config.Player.Name, fileLogger)
	playback, err := player.NewSession(ctx, player.Options{
		SDK:     sdk,
		API:     client,
		Profile: client,
		Logger:  fileLogger,
	})
	if err != nil {
		return err
	}
	defer playback.Close()

	if err := playback.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect playback device: %w", err)
	}

	engine, err := game.NewEngine(game.Options{
		Source:   client,
		Playback: playback,
		Store:    kv,
		Logger:   fileLogger,
	})
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, engine, match, playback)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
