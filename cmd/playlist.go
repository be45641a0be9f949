package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spinmaster/internal/game"
	"github.com/desertthunder/spinmaster/internal/shared"
	"github.com/urfave/cli/v3"
)

// PlaylistSet validates and saves a playlist URL for future games.
func (r *Runner) PlaylistSet(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	url := cmd.StringArg("url")
	if url == "" {
		return fmt.Errorf("%w: playlist URL", shared.ErrMissingArgument)
	}

	id, err := game.ExtractPlaylistID(url)
	if err != nil {
		return err
	}

	kv, err := r.ensureStore()
	if err != nil {
		return err
	}
	if err := kv.Set(game.KeyPlaylistURL, url); err != nil {
		return err
	}

	r.writePlain("✓ Playlist saved (id: %s)\n", id)
	return nil
}

// PlaylistShow prints the saved playlist URL, if any.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	kv, err := r.ensureStore()
	if err != nil {
		return err
	}

	url, ok, err := kv.Get(game.KeyPlaylistURL)
	if err != nil {
		return err
	}
	if !ok {
		r.writePlain("No playlist saved; games use the built-in sample deck.\n")
		return nil
	}

	r.writePlain("%s\n", url)
	return nil
}

// PlaylistClear removes the saved playlist selection.
func (r *Runner) PlaylistClear(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	kv, err := r.ensureStore()
	if err != nil {
		return err
	}
	if err := kv.Delete(game.KeyPlaylistURL); err != nil {
		return err
	}

	r.writePlain("✓ Playlist cleared; games fall back to the sample deck.\n")
	return nil
}
