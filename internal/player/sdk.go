// package player maintains the live playback device session.
//
// The vendor playback surface is hidden behind the SDK interface: an
// event stream plus connect/disconnect. The Session layered on top owns
// device readiness, reconciliation against the provider's active-device
// state, and retry/recovery for the SDK's eventual-consistency quirks.
package player

import "context"

// EventKind classifies SDK lifecycle events.
type EventKind int

const (
	EventReady EventKind = iota
	EventNotReady
	EventStateChanged
	EventInitError
	EventAuthError
	EventAccountError
	EventPlaybackError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventNotReady:
		return "not_ready"
	case EventStateChanged:
		return "state_changed"
	case EventInitError:
		return "initialization_error"
	case EventAuthError:
		return "authentication_error"
	case EventAccountError:
		return "account_error"
	case EventPlaybackError:
		return "playback_error"
	default:
		return "unknown"
	}
}

// Event is one message from the playback SDK.
type Event struct {
	Kind     EventKind
	DeviceID string // ready / not_ready
	Paused   bool   // state_changed
	TrackURI string // state_changed
	Message  string // error events
}

// SDK is the opaque vendor playback surface.
//
// Connect registers the device with the provider; lifecycle and error
// events arrive on Events until Disconnect. The SDK authenticates itself
// through a token supplier bound at construction, invoked lazily on every
// (re)authentication so it never holds a stale token.
type SDK interface {
	Connect(ctx context.Context) error
	Disconnect()
	Events() <-chan Event
}

// TokenSupplier returns the current access token for SDK authentication.
type TokenSupplier func() (string, error)
