package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spinmaster/internal/catalog"
	"github.com/desertthunder/spinmaster/internal/shared"
)

const defaultPollInterval = 5 * time.Second

// connectAPI is the catalog surface the adapter polls.
type connectAPI interface {
	Devices(ctx context.Context) ([]catalog.Device, error)
	PlayerState(ctx context.Context) (*catalog.PlayerState, error)
}

// ConnectSDK adapts the provider's Connect device surface to the SDK interface.
//
// There is no local audio renderer: the adapter adopts an existing Connect
// device by name (a desktop or mobile app) and derives lifecycle events by
// polling the device list and player state. Ready fires when the named device
// appears, not_ready when it drops out, and state_changed on playback deltas.
type ConnectSDK struct {
	api        connectAPI
	token      TokenSupplier
	deviceName string
	interval   time.Duration
	logger     *log.Logger

	events    chan Event
	stop      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewConnectSDK creates an adapter that adopts the Connect device named deviceName.
func NewConnectSDK(api connectAPI, token TokenSupplier, deviceName string, logger *log.Logger) *ConnectSDK {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &ConnectSDK{
		api:        api,
		token:      token,
		deviceName: deviceName,
		interval:   defaultPollInterval,
		logger:     logger,
		events:     make(chan Event, 16),
		stop:       make(chan struct{}),
	}
}

// Connect verifies credentials, finds the named device, and starts polling.
func (c *ConnectSDK) Connect(ctx context.Context) error {
	if _, err := c.token(); err != nil {
		c.emit(Event{Kind: EventAuthError, Message: err.Error()})
		return fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}

	device, err := c.findDevice(ctx)
	if err != nil {
		return err
	}
	if device == nil {
		return fmt.Errorf("%w: no Connect device named %q; open the Spotify app on another device", shared.ErrDeviceNotFound, c.deviceName)
	}

	c.emit(Event{Kind: EventReady, DeviceID: device.ID})
	c.startOnce.Do(func() { go c.poll(device.ID) })
	return nil
}

// Disconnect stops the polling loop. The event channel is left open so a
// racing poll iteration never sends on a closed channel; consumers stop
// draining instead.
func (c *ConnectSDK) Disconnect() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// Events returns the lifecycle event stream.
func (c *ConnectSDK) Events() <-chan Event {
	return c.events
}

func (c *ConnectSDK) findDevice(ctx context.Context) (*catalog.Device, error) {
	devices, err := c.api.Devices(ctx)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if devices[i].Name == c.deviceName {
			return &devices[i], nil
		}
	}
	// Fall back to the active device when nothing matches by name.
	for i := range devices {
		if devices[i].IsActive {
			return &devices[i], nil
		}
	}
	return nil, nil
}

// poll derives lifecycle and state-change events from the REST surface.
func (c *ConnectSDK) poll(deviceID string) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	online := true
	var lastPaused bool
	var lastTrack string

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), c.interval)
			devices, err := c.api.Devices(ctx)
			if err != nil {
				c.logger.Debug("device poll failed", "error", err)
				cancel()
				continue
			}

			present := false
			for _, d := range devices {
				if d.ID == deviceID {
					present = true
					break
				}
			}

			switch {
			case present && !online:
				online = true
				c.emit(Event{Kind: EventReady, DeviceID: deviceID})
			case !present && online:
				online = false
				c.emit(Event{Kind: EventNotReady, DeviceID: deviceID})
			}

			if present {
				state, err := c.api.PlayerState(ctx)
				if err == nil && state != nil && state.Device.ID == deviceID {
					trackURI := ""
					if state.Item != nil {
						trackURI = state.Item.URI
					}
					paused := !state.IsPlaying
					if paused != lastPaused || trackURI != lastTrack {
						lastPaused = paused
						lastTrack = trackURI
						c.emit(Event{Kind: EventStateChanged, Paused: paused, TrackURI: trackURI})
					}
				}
			}
			cancel()
		}
	}
}

// emit drops events when nobody is draining the channel rather than block the poller.
func (c *ConnectSDK) emit(event Event) {
	select {
	case <-c.stop:
	case c.events <- event:
	default:
		c.logger.Debug("dropping playback event", "kind", event.Kind.String())
	}
}
