// package catalog is the authenticated Spotify Web API client.
//
// All requests carry a bearer token supplied live by a TokenFunc so the
// client never caches a token across a refresh. Requests are paced with a
// shared rate limiter.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spinmaster/internal/shared"
	"golang.org/x/time/rate"
)

const spotifyBaseURL = "https://api.spotify.com/v1"

// TokenFunc supplies the current bearer token for each request.
type TokenFunc func() (string, error)

// Client calls the Spotify Web API on behalf of the authenticated user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenFunc
	limiter    *rate.Limiter
	logger     *log.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger sets the client logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates an API client that draws tokens from token.
func NewClient(token TokenFunc, opts ...Option) *Client {
	c := &Client{
		baseURL:    spotifyBaseURL,
		httpClient: http.DefaultClient,
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(10), 20),
		logger:     shared.NewLogger(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs an authenticated HTTP request against the API.
//
// A 204 with no body decodes into nothing; non-2xx responses decode the
// Spotify error envelope into an *APIError.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	token, err := c.token()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}

	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = &bytes.Buffer{}
		if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	apiURL := c.baseURL + endpoint
	var req *http.Request
	if reqBody != nil {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, apiURL, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error struct {
				Status  int    `json:"status"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
			apiErr.Message = envelope.Error.Message
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: %v", shared.ErrUnauthorized, apiErr)
		}
		return apiErr
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// IsStatus reports whether err is an API error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Me retrieves the current authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.doRequest(ctx, "GET", "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Track retrieves a single track by ID.
func (c *Client) Track(ctx context.Context, trackID string) (*Track, error) {
	var track Track
	endpoint := fmt.Sprintf("/tracks/%s", trackID)
	if err := c.doRequest(ctx, "GET", endpoint, nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// Tracks retrieves multiple tracks by their IDs (up to 50).
func (c *Client) Tracks(ctx context.Context, trackIDs []string) ([]Track, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("%w: no track IDs provided", shared.ErrInvalidInput)
	}
	if len(trackIDs) > 50 {
		return nil, fmt.Errorf("%w: maximum 50 track IDs allowed", shared.ErrInvalidInput)
	}

	ids := strings.Join(trackIDs, ",")
	endpoint := fmt.Sprintf("/tracks?ids=%s", url.QueryEscape(ids))

	var response struct {
		Tracks []Track `json:"tracks"`
	}
	if err := c.doRequest(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// Playlist retrieves a playlist by ID.
func (c *Client) Playlist(ctx context.Context, playlistID string) (*Playlist, error) {
	endpoint := fmt.Sprintf("/playlists/%s", playlistID)

	var playlist Playlist
	if err := c.doRequest(ctx, "GET", endpoint, nil, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// PlaylistTracksPage retrieves one page of a playlist's tracks.
func (c *Client) PlaylistTracksPage(ctx context.Context, playlistID string, limit, offset int) (*PaginatedPlaylistTracks, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, limit, offset)

	var response PaginatedPlaylistTracks
	if err := c.doRequest(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// PlaylistTracks retrieves every track in a playlist, following pagination.
//
// Entries with a null track (removed or regionally unavailable) are dropped.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error) {
	var tracks []Track
	limit := 50
	offset := 0

	for {
		page, err := c.PlaylistTracksPage(ctx, playlistID, limit, offset)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.ID == "" {
				continue
			}
			tracks = append(tracks, *item.Track)
		}

		if page.Next == nil {
			break
		}
		offset += limit
	}

	return tracks, nil
}

// SearchTracks searches the catalog for tracks matching query.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]Track, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(query), limit)

	var results SearchResults
	if err := c.doRequest(ctx, "GET", endpoint, nil, &results); err != nil {
		return nil, err
	}
	return results.Tracks.Items, nil
}

// Recommendations retrieves recommended tracks seeded by up to 5 track IDs.
func (c *Client) Recommendations(ctx context.Context, seedTrackIDs []string, limit int) ([]Track, error) {
	if len(seedTrackIDs) == 0 {
		return nil, fmt.Errorf("%w: no seed tracks provided", shared.ErrInvalidInput)
	}
	if len(seedTrackIDs) > 5 {
		seedTrackIDs = seedTrackIDs[:5]
	}
	if limit <= 0 {
		limit = 20
	}

	seeds := strings.Join(seedTrackIDs, ",")
	endpoint := fmt.Sprintf("/recommendations?seed_tracks=%s&limit=%d", url.QueryEscape(seeds), limit)

	var response struct {
		Tracks []Track `json:"tracks"`
	}
	if err := c.doRequest(ctx, "GET", endpoint, nil, &response); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// Devices retrieves the user's available Spotify Connect devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	var response struct {
		Devices []Device `json:"devices"`
	}
	if err := c.doRequest(ctx, "GET", "/me/player/devices", nil, &response); err != nil {
		return nil, err
	}
	return response.Devices, nil
}

// PlayerState retrieves the current playback state.
//
// Returns nil state without error when nothing is playing anywhere (204).
func (c *Client) PlayerState(ctx context.Context) (*PlayerState, error) {
	var state PlayerState
	if err := c.doRequest(ctx, "GET", "/me/player", nil, &state); err != nil {
		return nil, err
	}
	if state.Device.ID == "" && state.Item == nil {
		return nil, nil
	}
	return &state, nil
}

// TransferPlayback moves playback to the given device.
func (c *Client) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	body := map[string]any{
		"device_ids": []string{deviceID},
		"play":       play,
	}
	return c.doRequest(ctx, "PUT", "/me/player", body, nil)
}

// PlayOptions control a play request.
type PlayOptions struct {
	DeviceID   string
	URIs       []string
	ContextURI string
	PositionMS int
}

// Play starts or resumes playback, optionally targeting a device and track set.
func (c *Client) Play(ctx context.Context, opts PlayOptions) error {
	endpoint := "/me/player/play"
	if opts.DeviceID != "" {
		endpoint += "?device_id=" + url.QueryEscape(opts.DeviceID)
	}

	body := map[string]any{}
	if len(opts.URIs) > 0 {
		body["uris"] = opts.URIs
	}
	if opts.ContextURI != "" {
		body["context_uri"] = opts.ContextURI
	}
	if opts.PositionMS > 0 {
		body["position_ms"] = opts.PositionMS
	}

	return c.doRequest(ctx, "PUT", endpoint, body, nil)
}

// Pause pauses playback, optionally targeting a device.
func (c *Client) Pause(ctx context.Context, deviceID string) error {
	endpoint := "/me/player/pause"
	if deviceID != "" {
		endpoint += "?device_id=" + url.QueryEscape(deviceID)
	}
	return c.doRequest(ctx, "PUT", endpoint, nil, nil)
}
