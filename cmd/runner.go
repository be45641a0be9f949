package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spinmaster/internal/auth"
	"github.com/desertthunder/spinmaster/internal/shared"
	"github.com/desertthunder/spinmaster/internal/store"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The state store and auth session are opened lazily so commands that only
// touch configuration never create a database file.
type Runner struct {
	config     *shared.Config
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer

	kv      *store.KV
	session *auth.Session
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Store and Session are injectable for tests; when nil they are built from
// the loaded configuration on first use.
type RunnerOpts struct {
	Config     *shared.Config
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Store      *store.KV
	Session    *auth.Session
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		kv:         opts.Store,
		session:    opts.Session,
	}
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the state store and stops the auth session's background timer.
func (r *Runner) Close() {
	if r.session != nil {
		r.session.Close()
	}
	if r.kv != nil {
		if err := r.kv.Close(); err != nil {
			r.logger.Warn("failed to close state store", "error", err)
		}
	}
}

// reloadConfig loads the config file at path when it exists, keeping the
// current configuration otherwise.
func (r *Runner) reloadConfig(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, keeping current", "path", path, "error", err)
		return
	}
	r.config = config
}

// ensureStore opens the state database on first use.
func (r *Runner) ensureStore() (*store.KV, error) {
	if r.kv != nil {
		return r.kv, nil
	}
	kv, err := store.Open(r.config.Database.Path)
	if err != nil {
		return nil, err
	}
	kv.Configure(r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)
	r.kv = kv
	return kv, nil
}

// ensureSession builds the auth session from the loaded configuration.
func (r *Runner) ensureSession() (*auth.Session, error) {
	if r.session != nil {
		return r.session, nil
	}

	kv, err := r.ensureStore()
	if err != nil {
		return nil, err
	}

	session, err := auth.NewSession(auth.Options{
		ClientID:    r.config.Credentials.Spotify.ClientID,
		RedirectURI: r.config.Credentials.Spotify.RedirectURI,
		Store:       kv,
		Logger:      r.logger,
		HTTPClient:  r.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (run 'spinmaster setup' and fill in config.toml)", err)
	}
	r.session = session
	return session, nil
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistCommand, playCommand, competeCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
