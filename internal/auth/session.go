// package auth implements the OAuth2 authorization-code + PKCE session manager.
//
// A Session owns token acquisition, persistence, expiry tracking, and
// proactive/reactive refresh against the Spotify accounts service. There is
// no client secret: the authorization code is bound to a locally generated
// PKCE verifier instead.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spinmaster/internal/shared"
	"github.com/desertthunder/spinmaster/internal/store"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// DefaultScopes are the Spotify scopes required for playback and profile access.
var DefaultScopes = []string{
	"streaming",
	"user-read-email",
	"user-read-private",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
}

// Persisted state keys. Everything under the auth. prefix is cleared on logout.
const (
	KeyAccessToken  = "auth.access_token"
	KeyRefreshToken = "auth.refresh_token"
	KeyTokenExpiry  = "auth.token_expiry"
	KeyCompleted    = "auth.completed"
	KeyState        = "auth.state"
	KeyCodeVerifier = "auth.code_verifier"

	authPrefix = "auth."
)

const (
	verifierLength = 64
	stateLength    = 16

	// freshBuffer is how long before expiry a token stops counting as fresh.
	freshBuffer = 5 * time.Minute
	// refreshBuffer is how long before expiry the background check refreshes.
	refreshBuffer = 10 * time.Minute
	// checkInterval is the background freshness check period.
	checkInterval = 5 * time.Minute
)

// State enumerates the auth session lifecycle.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
	Refreshing
	Failed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options contains configuration for creating a Session.
type Options struct {
	ClientID    string
	RedirectURI string
	AuthURL     string // defaults to the Spotify authorize endpoint
	TokenURL    string // defaults to the Spotify token endpoint
	Scopes      []string
	Store       *store.KV
	Logger      *log.Logger
	HTTPClient  *http.Client
	Now         func() time.Time
}

// Session manages the OAuth token lifecycle for the client.
//
// Authenticated implies an access token is present and unexpired. Persisted
// fields (tokens, expiry, handshake nonces) live in the state store; in-flight
// markers are process-local only.
type Session struct {
	config     *oauth2.Config
	kv         *store.KV
	logger     *log.Logger
	httpClient *http.Client
	now        func() time.Time

	mu           sync.Mutex
	state        State
	failure      error
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	refreshing   bool
	stopTicker   chan struct{}
}

// NewSession creates an auth session in the Unauthenticated state.
func NewSession(opts Options) (*Session, error) {
	if opts.ClientID == "" {
		return nil, fmt.Errorf("%w: client_id must be set", shared.ErrInvalidConfig)
	}
	if opts.RedirectURI == "" {
		return nil, fmt.Errorf("%w: redirect_uri must be set", shared.ErrInvalidConfig)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: state store must be provided", shared.ErrInvalidConfig)
	}
	if opts.AuthURL == "" {
		opts.AuthURL = spotifyAuthURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if len(opts.Scopes) == 0 {
		opts.Scopes = DefaultScopes
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	config := &oauth2.Config{
		ClientID:    opts.ClientID,
		RedirectURL: opts.RedirectURI,
		Scopes:      opts.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  opts.AuthURL,
			TokenURL: opts.TokenURL,
		},
	}

	return &Session{
		config:     config,
		kv:         opts.Store,
		logger:     opts.Logger,
		httpClient: opts.HTTPClient,
		now:        opts.Now,
		state:      Unauthenticated,
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure reason when the session is in the Failed state.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Token returns the current access token.
//
// Always dereferences live session state so callers (including the playback
// SDK's token supplier) never hold a stale snapshot.
func (s *Session) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken == "" {
		return "", shared.ErrNoToken
	}
	return s.accessToken, nil
}

// ExpiresAt returns the absolute expiry of the current access token.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Fresh reports whether the token is valid and outside the 5-minute expiry buffer.
func (s *Session) Fresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != "" && s.now().Before(s.expiresAt.Add(-freshBuffer))
}

// DueForRefresh reports whether the token is inside the 10-minute refresh buffer.
func (s *Session) DueForRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken != "" && !s.now().Before(s.expiresAt.Add(-refreshBuffer))
}

// Restore loads persisted tokens at process start.
//
// A token inside the freshness buffer is refreshed immediately when a refresh
// token exists; an expired token with no refresh token is cleared.
func (s *Session) Restore(ctx context.Context) error {
	access, okAccess, err := s.kv.Get(KeyAccessToken)
	if err != nil {
		return err
	}
	expiryStr, okExpiry, err := s.kv.Get(KeyTokenExpiry)
	if err != nil {
		return err
	}
	refresh, _, err := s.kv.Get(KeyRefreshToken)
	if err != nil {
		return err
	}

	if !okAccess || !okExpiry {
		return nil
	}

	unix, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		s.logger.Warn("corrupt token expiry, clearing session", "value", expiryStr)
		s.Logout()
		return nil
	}
	expiresAt := time.Unix(unix, 0)

	s.mu.Lock()
	s.accessToken = access
	s.refreshToken = refresh
	s.expiresAt = expiresAt
	now := s.now()
	s.mu.Unlock()

	switch {
	case now.Before(expiresAt.Add(-freshBuffer)):
		s.setAuthenticated()
	case refresh != "":
		if err := s.Refresh(ctx); err != nil {
			return err
		}
	case now.Before(expiresAt):
		// Still valid but near expiry with nothing to refresh with.
		s.setAuthenticated()
	default:
		s.logger.Info("stored token expired, clearing session")
		s.Logout()
	}

	return nil
}

// BeginLogin generates the PKCE handshake state and returns the authorize URL.
//
// The verifier and anti-forgery nonce are persisted for the callback handler;
// the caller is responsible for navigating the browser to the returned URL.
func (s *Session) BeginLogin() (string, error) {
	verifier, err := shared.GenerateRandomString(verifierLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}

	nonce, err := shared.GenerateRandomString(stateLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}

	if err := s.kv.Set(KeyCodeVerifier, verifier); err != nil {
		return "", err
	}
	if err := s.kv.Set(KeyState, nonce); err != nil {
		return "", err
	}
	if err := s.kv.Delete(KeyCompleted); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.state = Authenticating
	s.failure = nil
	s.mu.Unlock()

	authURL := s.config.AuthCodeURL(nonce,
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", shared.CodeChallenge(verifier)),
	)
	return authURL, nil
}

// HandleCallback processes the authorization redirect.
//
// A callback whose state does not match the persisted nonce never reaches the
// token endpoint. A replayed callback after a completed exchange is a no-op;
// some environments deliver the redirect twice.
func (s *Session) HandleCallback(ctx context.Context, code, state, errParam string) error {
	if errParam != "" {
		err := fmt.Errorf("%w: %s", shared.ErrProviderDenied, errParam)
		s.fail(err)
		return err
	}

	if completed, ok, err := s.kv.Get(KeyCompleted); err != nil {
		return err
	} else if ok && completed == "true" {
		s.logger.Debug("auth already completed, skipping callback")
		return nil
	}

	saved, ok, err := s.kv.Get(KeyState)
	if err != nil {
		return err
	}
	if !ok || state == "" || state != saved {
		s.fail(shared.ErrStateMismatch)
		return shared.ErrStateMismatch
	}

	verifier, ok, err := s.kv.Get(KeyCodeVerifier)
	if err != nil {
		return err
	}
	if !ok || verifier == "" {
		err := fmt.Errorf("%w: code verifier not found", shared.ErrExchangeFailed)
		s.fail(err)
		return err
	}

	tok, err := s.config.Exchange(s.httpContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		err = fmt.Errorf("%w: %s", shared.ErrExchangeFailed, s.exchangeHint(err))
		s.fail(err)
		return err
	}

	if err := s.applyToken(tok); err != nil {
		return err
	}
	if err := s.kv.Set(KeyCompleted, "true"); err != nil {
		return err
	}
	if err := s.kv.Delete(KeyState, KeyCodeVerifier); err != nil {
		return err
	}

	s.setAuthenticated()
	s.logger.Info("authentication completed")
	return nil
}

// Refresh exchanges the refresh token for a new access token.
//
// At most one refresh is in flight: a concurrent call returns immediately. A
// provider response rejecting the refresh token itself clears the session.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return nil
	}
	if s.refreshToken == "" {
		s.mu.Unlock()
		return fmt.Errorf("%w: no refresh token available", shared.ErrRefreshFailed)
	}
	s.refreshing = true
	prev := s.state
	s.state = Refreshing
	refreshToken := s.refreshToken
	s.mu.Unlock()

	src := s.config.TokenSource(s.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()

	s.mu.Lock()
	s.refreshing = false
	s.mu.Unlock()

	if err != nil {
		if isInvalidGrant(err) {
			s.logger.Warn("refresh token rejected by provider, clearing session")
			s.Logout()
			return fmt.Errorf("%w: refresh token invalid", shared.ErrRefreshFailed)
		}
		s.mu.Lock()
		s.state = prev
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	if err := s.applyToken(tok); err != nil {
		return err
	}
	s.setAuthenticated()
	s.logger.Debug("access token refreshed", "expires_at", tok.Expiry)
	return nil
}

// Logout clears all persisted token and handshake state synchronously.
//
// Safe to call from any state.
func (s *Session) Logout() {
	s.mu.Lock()
	if s.stopTicker != nil {
		close(s.stopTicker)
		s.stopTicker = nil
	}
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	s.state = Unauthenticated
	s.failure = nil
	s.refreshing = false
	s.mu.Unlock()

	if err := s.kv.DeletePrefix(authPrefix); err != nil {
		s.logger.Warn("failed to clear persisted auth state", "error", err)
	}
}

// Close stops the background refresh timer without clearing persisted state.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopTicker != nil {
		close(s.stopTicker)
		s.stopTicker = nil
	}
}

// applyToken persists the token response and updates in-memory fields.
//
// The rotated refresh token is stored when the provider issues one; otherwise
// the previous refresh token stays valid and in place.
func (s *Session) applyToken(tok *oauth2.Token) error {
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = s.now().Add(time.Hour)
	}

	if err := s.kv.Set(KeyAccessToken, tok.AccessToken); err != nil {
		return err
	}
	if err := s.kv.Set(KeyTokenExpiry, strconv.FormatInt(expiry.Unix(), 10)); err != nil {
		return err
	}
	if tok.RefreshToken != "" {
		if err := s.kv.Set(KeyRefreshToken, tok.RefreshToken); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.accessToken = tok.AccessToken
	s.expiresAt = expiry
	if tok.RefreshToken != "" {
		s.refreshToken = tok.RefreshToken
	}
	s.mu.Unlock()

	return nil
}

// setAuthenticated marks the session authenticated and installs the refresh timer.
func (s *Session) setAuthenticated() {
	s.mu.Lock()
	s.state = Authenticated
	s.failure = nil
	installTicker := s.stopTicker == nil
	var stop chan struct{}
	if installTicker {
		stop = make(chan struct{})
		s.stopTicker = stop
	}
	s.mu.Unlock()

	if !installTicker {
		return
	}

	go func() {
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !s.shouldAutoRefresh() {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := s.Refresh(ctx); err != nil {
					s.logger.Warn("background token refresh failed", "error", err)
				}
				cancel()
			}
		}
	}()
}

func (s *Session) shouldAutoRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Authenticated || s.refreshToken == "" {
		return false
	}
	return !s.now().Before(s.expiresAt.Add(-refreshBuffer))
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = Failed
	s.failure = err
	s.mu.Unlock()
}

// httpContext threads a custom HTTP client into the oauth2 transport when one was injected.
func (s *Session) httpContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// exchangeHint extracts the provider's error text and appends recovery hints
// for the two failure modes users actually hit: redirect URI mismatch and
// authorization code reuse.
func (s *Session) exchangeHint(err error) string {
	msg := err.Error()

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorDescription != "" {
			msg = re.ErrorDescription
		} else if re.ErrorCode != "" {
			msg = re.ErrorCode
		}
	}

	switch {
	case strings.Contains(msg, "Invalid authorization code"):
		msg += ". This usually happens if the code was already used or expired. Please try logging in again."
	case strings.Contains(msg, "redirect_uri"):
		msg += fmt.Sprintf(". Make sure your Spotify app redirect URI matches exactly: %s", s.config.RedirectURL)
	}

	return msg
}

func isInvalidGrant(err error) bool {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return false
	}
	if re.ErrorCode == "invalid_grant" {
		return true
	}
	return strings.Contains(strings.ToLower(string(re.Body)), "invalid_grant")
}
