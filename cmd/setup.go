package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/spinmaster/internal/shared"
	"github.com/desertthunder/spinmaster/internal/store"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file from the embedded template and initializes
// the state database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
		r.reloadConfig(configPath)
	} else {
		if err := shared.CreateConfigFile(configPath); err != nil && !errors.Is(err, shared.ErrInvalidConfig) {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)
		r.reloadConfig(configPath)
	}

	r.logger.Info("initializing state database", "path", r.config.Database.Path)

	kv, err := store.Open(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create state database: %w", err)
	}
	kv.Configure(r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	r.kv = kv

	r.writePlain("✓ Setup complete\n")
	r.writePlainln("Next steps:")
	r.writePlain("1. Create a Spotify app at https://developer.spotify.com/dashboard\n")
	r.writePlain("2. Set credentials.spotify.client_id in %s\n", configPath)
	r.writePlain("3. Add the redirect URI %s to the app settings\n", r.config.Credentials.Spotify.RedirectURI)
	r.writePlain("4. Run 'spinmaster auth login'\n")
	return nil
}
