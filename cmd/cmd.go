// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authentication",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Spotify using the authorization code + PKCE flow",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the current authentication state",
				Flags:  []cli.Flag{configFlag(), &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Clear all stored tokens",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogout,
			},
		},
	}
}

// playlistCommand manages the saved playlist selection
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Manage the playlist the deck is drawn from",
		Commands: []*cli.Command{
			{
				Name:  "set",
				Usage: "Save a Spotify playlist URL for future games",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.PlaylistSet,
			},
			{
				Name:   "show",
				Usage:  "Show the saved playlist",
				Flags:  []cli.Flag{configFlag()},
				Action: r.PlaylistShow,
			},
			{
				Name:   "clear",
				Usage:  "Clear the saved playlist (games fall back to the sample deck)",
				Flags:  []cli.Flag{configFlag()},
				Action: r.PlaylistClear,
			},
		},
	}
}

// playCommand launches a casual game.
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "play",
		Usage:  "Start a game",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Play,
	}
}

// competeCommand launches a competitive game with named players.
func competeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "compete",
		Usage: "Start a competitive game with scoring",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringSliceFlag{
				Name:    "player",
				Aliases: []string{"p"},
				Usage:   "Player name (repeat for each player)",
			},
			&cli.IntFlag{
				Name:  "win-points",
				Usage: "Points required to win (overrides config)",
			},
		},
		Action: r.Compete,
	}
}

// setupCommand handles configuration and database initialization.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the state database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}
