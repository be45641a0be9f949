package player

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spinmaster/internal/catalog"
	"github.com/desertthunder/spinmaster/internal/shared"
)

// Readiness enumerates the device session lifecycle.
type Readiness int

const (
	NotConnected Readiness = iota
	Connecting
	Ready
	Disconnected
)

func (r Readiness) String() string {
	switch r {
	case NotConnected:
		return "not_connected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Disconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

const (
	maxConnectAttempts = 3
	connectBackoffBase = time.Second
	deviceSettleWait   = 500 * time.Millisecond
)

// PlaybackAPI is the subset of the catalog client used for device commands.
type PlaybackAPI interface {
	Devices(ctx context.Context) ([]catalog.Device, error)
	TransferPlayback(ctx context.Context, deviceID string, play bool) error
	Play(ctx context.Context, opts catalog.PlayOptions) error
	Pause(ctx context.Context, deviceID string) error
}

// ProfileAPI is the subset of the catalog client used for the premium gate.
type ProfileAPI interface {
	Me(ctx context.Context) (*catalog.User, error)
}

// Options contains configuration for creating a Session.
type Options struct {
	SDK     SDK
	API     PlaybackAPI
	Profile ProfileAPI
	Logger  *log.Logger

	// test seams
	SettleWait func(ctx context.Context)
	Backoff    func(attempt int) time.Duration
}

// Session maintains exactly one live device session against the playback SDK.
//
// The event pump goroutine is the only writer of SDK-derived state; commands
// read it under the mutex. Playback failures are absorbed where they are not
// actionable and surfaced through Err otherwise.
type Session struct {
	sdk     SDK
	api     PlaybackAPI
	logger  *log.Logger
	settle  func(ctx context.Context)
	backoff func(attempt int) time.Duration

	mu           sync.Mutex
	readiness    Readiness
	deviceID     string
	isPlaying    bool
	currentTrack string
	lastErr      error
	reconnecting bool

	pumpOnce sync.Once
	stopPump chan struct{}
}

// NewSession verifies the account tier and creates a playback session.
//
// A non-premium account is a terminal condition: no session is created.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if opts.SDK == nil {
		return nil, fmt.Errorf("%w: playback SDK must be provided", shared.ErrInvalidConfig)
	}
	if opts.API == nil {
		return nil, fmt.Errorf("%w: playback API must be provided", shared.ErrInvalidConfig)
	}
	if opts.Profile == nil {
		return nil, fmt.Errorf("%w: profile API must be provided", shared.ErrInvalidConfig)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	user, err := opts.Profile.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify account: %w", err)
	}
	if user.Product != "premium" {
		return nil, fmt.Errorf("%w: account product is %q", shared.ErrPremiumRequired, user.Product)
	}

	s := &Session{
		sdk:       opts.SDK,
		api:       opts.API,
		logger:    opts.Logger,
		settle:    opts.SettleWait,
		backoff:   opts.Backoff,
		readiness: NotConnected,
		stopPump:  make(chan struct{}),
	}
	if s.settle == nil {
		s.settle = func(ctx context.Context) {
			select {
			case <-time.After(deviceSettleWait):
			case <-ctx.Done():
			}
		}
	}
	if s.backoff == nil {
		s.backoff = func(attempt int) time.Duration {
			return connectBackoffBase << attempt
		}
	}
	return s, nil
}

// Connect registers the device with the provider, retrying with backoff.
//
// Readiness becomes Ready only when the SDK reports the device id; a
// successful Connect call means registration was accepted, not that the
// device is live yet.
func (s *Session) Connect(ctx context.Context) error {
	s.pumpOnce.Do(func() { go s.pump() })

	s.mu.Lock()
	s.readiness = Connecting
	s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxConnectAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.backoff(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := s.sdk.Connect(ctx); err != nil {
			lastErr = err
			s.logger.Warn("device connect attempt failed", "attempt", attempt+1, "error", err)
			continue
		}
		return nil
	}

	s.mu.Lock()
	s.readiness = NotConnected
	s.lastErr = fmt.Errorf("%w: %v", shared.ErrConnectFailed, lastErr)
	s.mu.Unlock()
	return fmt.Errorf("%w: %v", shared.ErrConnectFailed, lastErr)
}

// pump translates SDK events into state transitions.
func (s *Session) pump() {
	events := s.sdk.Events()
	for {
		select {
		case <-s.stopPump:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.handleEvent(event)
		}
	}
}

func (s *Session) handleEvent(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Kind {
	case EventReady:
		s.deviceID = event.DeviceID
		s.readiness = Ready
		s.lastErr = nil
		s.logger.Info("playback device ready", "device_id", event.DeviceID)
	case EventNotReady:
		s.readiness = Disconnected
		s.logger.Warn("playback device went offline", "device_id", event.DeviceID)
		if !s.reconnecting {
			s.reconnecting = true
			go s.reconnect()
		}
	case EventStateChanged:
		s.isPlaying = !event.Paused
		s.currentTrack = event.TrackURI
	case EventAccountError:
		s.lastErr = fmt.Errorf("%w: %s", shared.ErrPremiumRequired, event.Message)
		s.logger.Error("account error from playback SDK", "message", event.Message)
	case EventInitError, EventAuthError, EventPlaybackError:
		s.lastErr = fmt.Errorf("playback SDK %s: %s", event.Kind, event.Message)
		s.logger.Error("playback SDK error", "kind", event.Kind.String(), "message", event.Message)
	}
}

// reconnect re-runs the connect protocol in the background after a drop.
func (s *Session) reconnect() {
	defer func() {
		s.mu.Lock()
		s.reconnecting = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		s.logger.Warn("background reconnect failed", "error", err)
	}
}

// ensureActiveDevice reconciles our device against the provider's device list.
//
// Absent from the list means the registration was lost: trigger a reconnect
// and tell the caller not to proceed. Present but inactive means playback is
// targeted elsewhere: transfer it here without autostarting, then wait out
// the provider's asynchronous activation.
func (s *Session) ensureActiveDevice(ctx context.Context) error {
	s.mu.Lock()
	deviceID := s.deviceID
	reconnecting := s.reconnecting
	s.mu.Unlock()

	if deviceID == "" {
		return fmt.Errorf("%w: no device registered", shared.ErrNotReady)
	}

	devices, err := s.api.Devices(ctx)
	if err != nil {
		return err
	}

	var found *catalog.Device
	for i := range devices {
		if devices[i].ID == deviceID {
			found = &devices[i]
			break
		}
	}

	if found == nil {
		s.logger.Warn("device missing from provider list, reconnecting", "device_id", deviceID)
		s.mu.Lock()
		s.readiness = Disconnected
		if !reconnecting && !s.reconnecting {
			s.reconnecting = true
			go s.reconnect()
		}
		s.mu.Unlock()
		return fmt.Errorf("%w: device not registered with provider", shared.ErrNotReady)
	}

	if !found.IsActive {
		if err := s.api.TransferPlayback(ctx, deviceID, false); err != nil {
			return err
		}
		s.settle(ctx)
	}

	return nil
}

// PlayTrack plays a single track URI on this device.
//
// A device-not-found response gets one transfer-then-retry; a restriction
// violation is logged and swallowed because it is provider policy, not a
// fault the user can act on.
func (s *Session) PlayTrack(ctx context.Context, uri string) error {
	s.mu.Lock()
	deviceID := s.deviceID
	s.mu.Unlock()

	if deviceID == "" {
		return fmt.Errorf("%w: player has no device", shared.ErrNotReady)
	}

	if err := s.ensureActiveDevice(ctx); err != nil {
		return err
	}

	opts := catalog.PlayOptions{DeviceID: deviceID, URIs: []string{uri}}
	err := s.api.Play(ctx, opts)
	if catalog.IsStatus(err, http.StatusNotFound) {
		s.logger.Warn("device not found on play, transferring and retrying once", "device_id", deviceID)
		if terr := s.api.TransferPlayback(ctx, deviceID, false); terr != nil {
			return terr
		}
		s.settle(ctx)
		err = s.api.Play(ctx, opts)
	}

	if err != nil {
		if isRestrictionViolation(err) {
			s.logger.Debug("restriction violation suppressed", "uri", uri, "error", err)
			return nil
		}
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	s.isPlaying = true
	s.currentTrack = uri
	s.lastErr = nil
	s.mu.Unlock()
	return nil
}

// Resume resumes playback on this device, retrying once after a transfer on 404.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	deviceID := s.deviceID
	s.mu.Unlock()

	if deviceID == "" {
		return fmt.Errorf("%w: player has no device", shared.ErrNotReady)
	}

	if err := s.ensureActiveDevice(ctx); err != nil {
		return err
	}

	opts := catalog.PlayOptions{DeviceID: deviceID}
	err := s.api.Play(ctx, opts)
	if catalog.IsStatus(err, http.StatusNotFound) {
		if terr := s.api.TransferPlayback(ctx, deviceID, false); terr != nil {
			return terr
		}
		s.settle(ctx)
		err = s.api.Play(ctx, opts)
	}

	if err != nil {
		if isRestrictionViolation(err) {
			s.logger.Debug("restriction violation suppressed on resume", "error", err)
			return nil
		}
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	s.isPlaying = true
	s.mu.Unlock()
	return nil
}

// Pause pauses playback on this device.
func (s *Session) Pause(ctx context.Context) error {
	s.mu.Lock()
	deviceID := s.deviceID
	s.mu.Unlock()

	if deviceID == "" {
		return fmt.Errorf("%w: player has no device", shared.ErrNotReady)
	}

	if err := s.api.Pause(ctx, deviceID); err != nil {
		s.logger.Warn("pause failed", "error", err)
		return err
	}

	s.mu.Lock()
	s.isPlaying = false
	s.mu.Unlock()
	return nil
}

// TogglePlayback dispatches to pause or resume based on current playing state.
func (s *Session) TogglePlayback(ctx context.Context) error {
	if s.IsPlaying() {
		return s.Pause(ctx)
	}
	return s.Resume(ctx)
}

// DeviceID returns the registered device id, or empty when not registered.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// Readiness returns the current device lifecycle state.
func (s *Session) Readiness() Readiness {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readiness
}

// IsPlaying reports whether playback is active on this device.
func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isPlaying
}

// CurrentTrackURI returns the URI reported by the last state change.
func (s *Session) CurrentTrackURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTrack
}

// Err returns the last playback error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close disconnects the SDK and stops the event pump.
func (s *Session) Close() {
	s.mu.Lock()
	select {
	case <-s.stopPump:
	default:
		close(s.stopPump)
	}
	s.readiness = NotConnected
	s.mu.Unlock()
	s.sdk.Disconnect()
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// isRestrictionViolation matches the provider's policy rejections by message
// text. Substring matching is fragile but is the only signal the provider
// exposes for this class of failure.
func isRestrictionViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "restriction")
}
