package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrNoToken         = fmt.Errorf("no access token available")
	ErrStateMismatch   = fmt.Errorf("authentication state mismatch")
	ErrExchangeFailed  = fmt.Errorf("token exchange failed")
	ErrRefreshFailed   = fmt.Errorf("token refresh failed")
	ErrProviderDenied  = fmt.Errorf("authorization denied by provider")
	ErrAuthInProgress  = fmt.Errorf("authentication already in progress")
	ErrTimeout         = fmt.Errorf("operation timed out")

	// Catalog and API errors
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrAPIRequest   = fmt.Errorf("API request failed")

	// Playback errors
	ErrPremiumRequired      = fmt.Errorf("premium account required for playback")
	ErrDeviceNotFound       = fmt.Errorf("playback device not found")
	ErrNotReady             = fmt.Errorf("playback device not ready")
	ErrConnectFailed        = fmt.Errorf("failed to connect playback device")
	ErrRestrictionViolated  = fmt.Errorf("playback restriction violated")

	// Game errors
	ErrInvalidPlaylistURL = fmt.Errorf("invalid playlist URL")
	ErrEmptyTrackSet      = fmt.Errorf("no playable tracks found")
	ErrInitInProgress     = fmt.Errorf("game initialization already in progress")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
