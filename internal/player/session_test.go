package player

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spinmaster/internal/catalog"
	"github.com/desertthunder/spinmaster/internal/shared"
)

type fakeSDK struct {
	mu           sync.Mutex
	connectErrs  []error
	connectCalls int
	events       chan Event
	disconnected bool
}

func newFakeSDK() *fakeSDK {
	return &fakeSDK{events: make(chan Event, 16)}
}

func (f *fakeSDK) Connect(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeSDK) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakeSDK) Events() <-chan Event { return f.events }

func (f *fakeSDK) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

type fakeAPI struct {
	mu            sync.Mutex
	devices       []catalog.Device
	devicesErr    error
	playErrs      []error
	playCalls     int
	transferCalls int
	pauseCalls    int
	pauseErr      error
}

func (f *fakeAPI) Devices(_ context.Context) ([]catalog.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices, f.devicesErr
}

func (f *fakeAPI) TransferPlayback(_ context.Context, deviceID string, play bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferCalls++
	for i := range f.devices {
		f.devices[i].IsActive = f.devices[i].ID == deviceID
	}
	return nil
}

func (f *fakeAPI) Play(_ context.Context, _ catalog.PlayOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playCalls++
	if len(f.playErrs) > 0 {
		err := f.playErrs[0]
		f.playErrs = f.playErrs[1:]
		return err
	}
	return nil
}

func (f *fakeAPI) Pause(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseCalls++
	return f.pauseErr
}

func (f *fakeAPI) counts() (play, transfer, pause int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playCalls, f.transferCalls, f.pauseCalls
}

type fakeProfile struct {
	product string
	err     error
}

func (f *fakeProfile) Me(_ context.Context) (*catalog.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &catalog.User{ID: "user1", Product: f.product}, nil
}

func newTestSession(t *testing.T, sdk *fakeSDK, api *fakeAPI) *Session {
	t.Helper()
	session, err := NewSession(context.Background(), Options{
		SDK:        sdk,
		API:        api,
		Profile:    &fakeProfile{product: "premium"},
		Logger:     shared.NewLogger(io.Discard),
		SettleWait: func(context.Context) {},
		Backoff:    func(int) time.Duration { return 0 },
	})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	t.Cleanup(session.Close)
	return session
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func notFound() error {
	return &catalog.APIError{Status: http.StatusNotFound, Message: "Device not found"}
}

func TestNewSession(t *testing.T) {
	t.Run("Premium Required", func(t *testing.T) {
		_, err := NewSession(context.Background(), Options{
			SDK:     newFakeSDK(),
			API:     &fakeAPI{},
			Profile: &fakeProfile{product: "free"},
			Logger:  shared.NewLogger(io.Discard),
		})
		if !errors.Is(err, shared.ErrPremiumRequired) {
			t.Errorf("expected ErrPremiumRequired for free account, got %v", err)
		}
	})

	t.Run("Profile Lookup Failure", func(t *testing.T) {
		_, err := NewSession(context.Background(), Options{
			SDK:     newFakeSDK(),
			API:     &fakeAPI{},
			Profile: &fakeProfile{err: errors.New("network down")},
			Logger:  shared.NewLogger(io.Discard),
		})
		if err == nil {
			t.Error("expected error when profile lookup fails")
		}
	})
}

func TestConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("Retries Then Succeeds", func(t *testing.T) {
		sdk := newFakeSDK()
		sdk.connectErrs = []error{errors.New("transient"), errors.New("transient")}
		session := newTestSession(t, sdk, &fakeAPI{})

		if err := session.Connect(ctx); err != nil {
			t.Fatalf("expected connect to recover, got %v", err)
		}
		if sdk.calls() != 3 {
			t.Errorf("expected 3 connect attempts, got %d", sdk.calls())
		}
	})

	t.Run("Exhausts Attempts", func(t *testing.T) {
		sdk := newFakeSDK()
		sdk.connectErrs = []error{errors.New("down"), errors.New("down"), errors.New("down")}
		session := newTestSession(t, sdk, &fakeAPI{})

		err := session.Connect(ctx)
		if !errors.Is(err, shared.ErrConnectFailed) {
			t.Errorf("expected ErrConnectFailed, got %v", err)
		}
		if sdk.calls() != 3 {
			t.Errorf("expected exactly 3 attempts, got %d", sdk.calls())
		}
	})

	t.Run("Ready Event Registers Device", func(t *testing.T) {
		sdk := newFakeSDK()
		session := newTestSession(t, sdk, &fakeAPI{})

		if err := session.Connect(ctx); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		sdk.events <- Event{Kind: EventReady, DeviceID: "device-1"}
		waitFor(t, func() bool { return session.Readiness() == Ready }, "device never became ready")

		if session.DeviceID() != "device-1" {
			t.Errorf("expected device-1, got %s", session.DeviceID())
		}
	})

	t.Run("Not Ready Triggers Background Reconnect", func(t *testing.T) {
		sdk := newFakeSDK()
		session := newTestSession(t, sdk, &fakeAPI{})

		if err := session.Connect(ctx); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		sdk.events <- Event{Kind: EventReady, DeviceID: "device-1"}
		waitFor(t, func() bool { return session.Readiness() == Ready }, "device never became ready")

		sdk.events <- Event{Kind: EventNotReady, DeviceID: "device-1"}
		waitFor(t, func() bool { return sdk.calls() >= 2 }, "reconnect was never attempted")
	})

	t.Run("State Changed Updates Playback", func(t *testing.T) {
		sdk := newFakeSDK()
		session := newTestSession(t, sdk, &fakeAPI{})
		if err := session.Connect(ctx); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		sdk.events <- Event{Kind: EventStateChanged, Paused: false, TrackURI: "spotify:track:abc"}
		waitFor(t, session.IsPlaying, "playing state never updated")

		if session.CurrentTrackURI() != "spotify:track:abc" {
			t.Errorf("expected track URI, got %s", session.CurrentTrackURI())
		}
	})

	t.Run("Account Error Flags Premium", func(t *testing.T) {
		sdk := newFakeSDK()
		session := newTestSession(t, sdk, &fakeAPI{})
		if err := session.Connect(ctx); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		sdk.events <- Event{Kind: EventAccountError, Message: "premium required"}
		waitFor(t, func() bool { return session.Err() != nil }, "account error never recorded")

		if !errors.Is(session.Err(), shared.ErrPremiumRequired) {
			t.Errorf("expected ErrPremiumRequired, got %v", session.Err())
		}
	})
}

func readySession(t *testing.T, sdk *fakeSDK, api *fakeAPI) *Session {
	t.Helper()
	session := newTestSession(t, sdk, api)
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	sdk.events <- Event{Kind: EventReady, DeviceID: "device-1"}
	waitFor(t, func() bool { return session.Readiness() == Ready }, "device never became ready")
	return session
}

func TestPlayTrack(t *testing.T) {
	ctx := context.Background()

	t.Run("No Device", func(t *testing.T) {
		session := newTestSession(t, newFakeSDK(), &fakeAPI{})
		if err := session.PlayTrack(ctx, "spotify:track:abc"); !errors.Is(err, shared.ErrNotReady) {
			t.Errorf("expected ErrNotReady, got %v", err)
		}
	})

	t.Run("Active Device Plays Directly", func(t *testing.T) {
		api := &fakeAPI{devices: []catalog.Device{{ID: "device-1", IsActive: true}}}
		session := readySession(t, newFakeSDK(), api)

		if err := session.PlayTrack(ctx, "spotify:track:abc"); err != nil {
			t.Fatalf("expected play to succeed, got %v", err)
		}

		play, transfer, _ := api.counts()
		if play != 1 || transfer != 0 {
			t.Errorf("expected 1 play and 0 transfers, got %d/%d", play, transfer)
		}
		if !session.IsPlaying() || session.CurrentTrackURI() != "spotify:track:abc" {
			t.Error("expected playing state to reflect the played track")
		}
	})

	t.Run("Inactive Device Transferred First", func(t *testing.T) {
		api := &fakeAPI{devices: []catalog.Device{
			{ID: "device-1", IsActive: false},
			{ID: "other", IsActive: true},
		}}
		session := readySession(t, newFakeSDK(), api)

		if err := session.PlayTrack(ctx, "spotify:track:abc"); err != nil {
			t.Fatalf("expected play to succeed, got %v", err)
		}

		play, transfer, _ := api.counts()
		if transfer != 1 {
			t.Errorf("expected 1 transfer for inactive device, got %d", transfer)
		}
		if play != 1 {
			t.Errorf("expected 1 play, got %d", play)
		}
	})

	t.Run("Absent Device Reports Not Ready", func(t *testing.T) {
		api := &fakeAPI{devices: []catalog.Device{{ID: "other", IsActive: true}}}
		sdk := newFakeSDK()
		session := readySession(t, sdk, api)

		err := session.PlayTrack(ctx, "spotify:track:abc")
		if !errors.Is(err, shared.ErrNotReady) {
			t.Errorf("expected ErrNotReady for absent device, got %v", err)
		}

		play, _, _ := api.counts()
		if play != 0 {
			t.Errorf("play must not be issued for an absent device, got %d calls", play)
		}
		waitFor(t, func() bool { return sdk.calls() >= 2 }, "reconnect was never attempted")
	})

	t.Run("Transfer And Retry Once On 404", func(t *testing.T) {
		api := &fakeAPI{
			devices:  []catalog.Device{{ID: "device-1", IsActive: true}},
			playErrs: []error{notFound()},
		}
		session := readySession(t, newFakeSDK(), api)

		if err := session.PlayTrack(ctx, "spotify:track:abc"); err != nil {
			t.Fatalf("expected retry to succeed, got %v", err)
		}

		play, transfer, _ := api.counts()
		if play != 2 {
			t.Errorf("expected exactly 2 play calls, got %d", play)
		}
		if transfer != 1 {
			t.Errorf("expected exactly 1 transfer, got %d", transfer)
		}
	})

	t.Run("Retry Is Bounded", func(t *testing.T) {
		api := &fakeAPI{
			devices:  []catalog.Device{{ID: "device-1", IsActive: true}},
			playErrs: []error{notFound(), notFound()},
		}
		session := readySession(t, newFakeSDK(), api)

		err := session.PlayTrack(ctx, "spotify:track:abc")
		if !catalog.IsStatus(err, http.StatusNotFound) {
			t.Errorf("expected 404 to surface after bounded retry, got %v", err)
		}

		play, transfer, _ := api.counts()
		if play != 2 {
			t.Errorf("retry must be bounded to one: got %d play calls", play)
		}
		if transfer != 1 {
			t.Errorf("expected exactly 1 transfer, got %d", transfer)
		}
	})

	t.Run("Restriction Violation Suppressed", func(t *testing.T) {
		api := &fakeAPI{
			devices:  []catalog.Device{{ID: "device-1", IsActive: true}},
			playErrs: []error{&catalog.APIError{Status: http.StatusForbidden, Message: "Restriction violated"}},
		}
		session := readySession(t, newFakeSDK(), api)

		if err := session.PlayTrack(ctx, "spotify:track:abc"); err != nil {
			t.Errorf("restriction violation must be swallowed, got %v", err)
		}
		if session.Err() != nil {
			t.Errorf("restriction violation must not land in the error field, got %v", session.Err())
		}
	})
}

func TestPauseResumeToggle(t *testing.T) {
	ctx := context.Background()

	t.Run("Pause", func(t *testing.T) {
		api := &fakeAPI{devices: []catalog.Device{{ID: "device-1", IsActive: true}}}
		session := readySession(t, newFakeSDK(), api)
		session.mu.Lock()
		session.isPlaying = true
		session.mu.Unlock()

		if err := session.Pause(ctx); err != nil {
			t.Fatalf("pause failed: %v", err)
		}
		if session.IsPlaying() {
			t.Error("expected playing state cleared after pause")
		}
	})

	t.Run("Resume Retries Once On 404", func(t *testing.T) {
		api := &fakeAPI{
			devices:  []catalog.Device{{ID: "device-1", IsActive: true}},
			playErrs: []error{notFound()},
		}
		session := readySession(t, newFakeSDK(), api)

		if err := session.Resume(ctx); err != nil {
			t.Fatalf("expected resume retry to succeed, got %v", err)
		}
		play, transfer, _ := api.counts()
		if play != 2 || transfer != 1 {
			t.Errorf("expected 2 plays and 1 transfer, got %d/%d", play, transfer)
		}
	})

	t.Run("Toggle Dispatches On Playing State", func(t *testing.T) {
		api := &fakeAPI{devices: []catalog.Device{{ID: "device-1", IsActive: true}}}
		session := readySession(t, newFakeSDK(), api)

		if err := session.TogglePlayback(ctx); err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
		play, _, pause := api.counts()
		if play != 1 || pause != 0 {
			t.Errorf("expected resume path when not playing, got play=%d pause=%d", play, pause)
		}

		if err := session.TogglePlayback(ctx); err != nil {
			t.Fatalf("toggle failed: %v", err)
		}
		_, _, pause = api.counts()
		if pause != 1 {
			t.Errorf("expected pause path when playing, got pause=%d", pause)
		}
	})
}

func TestClose(t *testing.T) {
	sdk := newFakeSDK()
	session := readySession(t, sdk, &fakeAPI{})

	session.Close()

	sdk.mu.Lock()
	disconnected := sdk.disconnected
	sdk.mu.Unlock()
	if !disconnected {
		t.Error("expected SDK to be disconnected")
	}
	if session.Readiness() != NotConnected {
		t.Errorf("expected NotConnected after close, got %v", session.Readiness())
	}

	// Idempotent.
	session.Close()
}
