// Spotify Web API response types based on https://developer.spotify.com/documentation/web-api/reference/
package catalog

import "fmt"

// Image represents an image resource.
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// User represents a Spotify user profile.
type User struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Email       string  `json:"email"`
	Country     string  `json:"country"`
	Product     string  `json:"product"` // premium, free, etc.
	Images      []Image `json:"images"`
}

// Artist represents a Spotify artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// Album represents a Spotify album.
type Album struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ReleaseDate string  `json:"release_date"`
	Images      []Image `json:"images"`
	URI         string  `json:"uri"`
}

// Track represents a Spotify track.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
	DurationMS int      `json:"duration_ms"`
	Explicit   bool     `json:"explicit"`
	URI        string   `json:"uri"`
}

// ArtistNames joins the track's artist names for display.
func (t Track) ArtistNames() string {
	names := ""
	for i, artist := range t.Artists {
		if i > 0 {
			names += ", "
		}
		names += artist.Name
	}
	return names
}

// Year returns the release year of the track's album, or an empty string.
func (t Track) Year() string {
	if len(t.Album.ReleaseDate) >= 4 {
		return t.Album.ReleaseDate[:4]
	}
	return ""
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracksRef struct {
	Total int `json:"total"`
}

// Playlist represents a Spotify playlist.
type Playlist struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Owner       Owner             `json:"owner"`
	Public      bool              `json:"public"`
	Tracks      playlistTracksRef `json:"tracks"`
	Images      []Image           `json:"images"`
	URI         string            `json:"uri"`
}

// PlaylistTrack represents a track within a playlist context.
//
// Track is a pointer: the API returns null entries for removed or
// unavailable tracks and those must be skipped, not decoded as zero values.
type PlaylistTrack struct {
	AddedAt string `json:"added_at"`
	Track   *Track `json:"track"`
}

// PaginatedPlaylistTracks represents one page of playlist tracks.
type PaginatedPlaylistTracks struct {
	Items    []PlaylistTrack `json:"items"`
	Total    int             `json:"total"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
}

// SearchResults represents the track portion of a search response.
type SearchResults struct {
	Tracks struct {
		Items []Track `json:"items"`
		Total int     `json:"total"`
	} `json:"tracks"`
}

// Device represents a Spotify Connect device.
type Device struct {
	ID            string `json:"id"`
	IsActive      bool   `json:"is_active"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	VolumePercent int    `json:"volume_percent"`
}

// PlayerState represents the current playback state.
type PlayerState struct {
	Device     Device `json:"device"`
	IsPlaying  bool   `json:"is_playing"`
	ProgressMS int    `json:"progress_ms"`
	Item       *Track `json:"item"`
}

// APIError is a non-2xx response from the Spotify API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("spotify API error: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("spotify API error: status %d", e.Status)
}
