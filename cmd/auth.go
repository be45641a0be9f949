package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/spinmaster/internal/server"
	"github.com/desertthunder/spinmaster/internal/shared"
	"github.com/urfave/cli/v3"
)

// loginTimeout bounds how long the login command waits for the browser redirect.
const loginTimeout = 2 * time.Minute

// AuthLogin runs the full authorization code + PKCE flow.
//
// A loopback HTTP server receives the redirect; the browser is opened to the
// authorize URL and the command blocks until the callback lands or the
// timeout elapses.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	session, err := r.ensureSession()
	if err != nil {
		return err
	}

	authURL, err := session.BeginLogin()
	if err != nil {
		return fmt.Errorf("failed to begin login: %w", err)
	}

	handler := server.NewCallbackHandler(session)
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(handler)

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("callback server shutdown failed", "error", err)
		}
	}()

	r.logger.Info("waiting for authorization", "callback", addr)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlainln("Open this URL in your browser to authorize:")
		r.writePlain("%s\n", authURL)
	}

	select {
	case result := <-handler.Result():
		if err := result.Error(); err != nil {
			return fmt.Errorf("authorization failed: %w", err)
		}
	case err := <-serveErr:
		return fmt.Errorf("callback server failed: %w", err)
	case <-time.After(loginTimeout):
		return fmt.Errorf("%w: no authorization callback received", shared.ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	r.writePlain("✓ Authenticated with Spotify\n")
	r.writePlain("Token expires at %s\n", session.ExpiresAt().Local().Format(time.RFC1123))
	return nil
}

// AuthStatus shows the restored authentication state.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	session, err := r.ensureSession()
	if err != nil {
		return err
	}
	if err := session.Restore(ctx); err != nil {
		r.logger.Warn("failed to restore session", "error", err)
	}

	status := struct {
		State     string `json:"state"`
		Fresh     bool   `json:"fresh"`
		ExpiresAt string `json:"expires_at,omitempty"`
	}{
		State: session.State().String(),
		Fresh: session.Fresh(),
	}
	if !session.ExpiresAt().IsZero() {
		status.ExpiresAt = session.ExpiresAt().Local().Format(time.RFC1123)
	}

	if cmd.Bool("json") {
		return r.writeJSON(status, true)
	}

	r.writePlain("State:   %s\n", status.State)
	if status.ExpiresAt != "" {
		r.writePlain("Fresh:   %t\n", status.Fresh)
		r.writePlain("Expires: %s\n", status.ExpiresAt)
	} else {
		r.writePlain("Run 'spinmaster auth login' to authenticate.\n")
	}
	return nil
}

// AuthLogout clears all stored tokens and handshake state.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	session, err := r.ensureSession()
	if err != nil {
		return err
	}
	session.Logout()
	r.writePlain("✓ Logged out\n")
	return nil
}
