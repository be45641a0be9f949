package game

import (
	"fmt"
	"regexp"

	"github.com/desertthunder/spinmaster/internal/shared"
)

// KeyPlaylistURL is the persisted key for the chosen playlist.
const KeyPlaylistURL = "game.playlist_url"

var playlistURLPattern = regexp.MustCompile(`(?:https?://)?(?:open\.)?spotify\.com/playlist/([a-zA-Z0-9]+)`)

// ExtractPlaylistID pulls the playlist id out of a Spotify playlist URL.
//
// Accepts the URL with or without scheme and with or without the open.
// subdomain; anything without a /playlist/<id> segment is invalid.
func ExtractPlaylistID(url string) (string, error) {
	match := playlistURLPattern.FindStringSubmatch(url)
	if match == nil {
		return "", fmt.Errorf("%w: %q", shared.ErrInvalidPlaylistURL, url)
	}
	return match[1], nil
}

// SampleTrackURIs is the fallback track set used when no playlist is configured.
var SampleTrackURIs = []string{
	"spotify:track:4iV5W9uYEdYUVa79Axb7Rh", // Never Gonna Give You Up - Rick Astley
	"spotify:track:7qiZfU4dY1lWllzX7mPBI3", // Shape of You - Ed Sheeran
	"spotify:track:4VqPOruhp5EdPBeR92t6lQ", // Uptown Funk - Mark Ronson ft. Bruno Mars
	"spotify:track:0VjIjW4GlULA8N0L9jZJ5u", // Blinding Lights - The Weeknd
	"spotify:track:4uLU6hMCjMI75M1A2tKUQC", // Don't Stop Believin' - Journey
	"spotify:track:1TfqLAPs4K3s2rJMoCokcS", // Billie Jean - Michael Jackson
	"spotify:track:2WfaOiMkCvy7F5fcp2zZ8L", // Sweet Child O' Mine - Guns N' Roses
	"spotify:track:0u2P5u6lvoDfwTYjAADbn4", // Someone Like You - Adele
	"spotify:track:4iJyoBOLtHqaGxP12qzhQI", // Gangnam Style - PSY
	"spotify:track:2plbrEY59IikOBgBGLjaoe", // Rolling in the Deep - Adele
}

// SampleTrackIDs returns the bare track ids of the fallback set.
func SampleTrackIDs() []string {
	ids := make([]string, 0, len(SampleTrackURIs))
	for _, uri := range SampleTrackURIs {
		// spotify:track:<id>
		if len(uri) > 14 {
			ids = append(ids, uri[14:])
		}
	}
	return ids
}
