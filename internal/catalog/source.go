package catalog

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	playerrors "github.com/jscyril/noor_player/pkg/errors"
)

var (
	videoIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	playlistIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10,64}$`)
)

// hosts that serve the streaming provider's watch pages and embeds
var providerHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtu.be":                 true,
	"www.youtube-nocookie.com": true,
	"youtube-nocookie.com":     true,
}

// path prefixes that are followed directly by a video id
var idPathPrefixes = []string{"/embed/", "/shorts/", "/live/", "/v/", "/e/"}

// ParseVideoID extracts the provider-native video id from a locator.
// It is the only place locators are interpreted, so queue and playlist
// duplicate checks agree with each other.
func ParseVideoID(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", fmt.Errorf("%w: empty locator", playerrors.ErrInvalidSource)
	}
	if videoIDPattern.MatchString(locator) {
		return locator, nil
	}

	u, err := parseProviderURL(locator)
	if err != nil {
		return "", err
	}

	var id string
	switch {
	case u.Host == "youtu.be":
		id = firstSegment(u.Path)
	case u.Path == "/watch":
		id = u.Query().Get("v")
	default:
		for _, prefix := range idPathPrefixes {
			if strings.HasPrefix(u.Path, prefix) {
				id = firstSegment(strings.TrimPrefix(u.Path, prefix))
				break
			}
		}
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: no video id in %q", playerrors.ErrInvalidSource, locator)
	}
	return id, nil
}

// ParsePlaylistID extracts a provider playlist id from a playlist URL, a
// watch URL carrying a list parameter, or a bare id.
func ParsePlaylistID(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", fmt.Errorf("%w: empty playlist locator", playerrors.ErrInvalidSource)
	}
	if !strings.Contains(locator, "/") && !strings.Contains(locator, "?") {
		if playlistIDPattern.MatchString(locator) {
			return locator, nil
		}
		return "", fmt.Errorf("%w: malformed playlist id %q", playerrors.ErrInvalidSource, locator)
	}

	u, err := parseProviderURL(locator)
	if err != nil {
		return "", err
	}
	id := u.Query().Get("list")
	if !playlistIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: no playlist id in %q", playerrors.ErrInvalidSource, locator)
	}
	return id, nil
}

// WatchURL is the canonical locator stored on streaming tracks
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// StreamingTrackID derives a stable track id from a provider id so the same
// video is recognised across queue, playlists and favorites.
func StreamingTrackID(videoID string) string {
	return "yt:" + videoID
}

func parseProviderURL(locator string) (*url.URL, error) {
	if !strings.Contains(locator, "://") {
		locator = "https://" + locator
	}
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", playerrors.ErrInvalidSource, err)
	}
	u.Host = strings.ToLower(u.Hostname())
	if !providerHosts[u.Host] {
		return nil, fmt.Errorf("%w: unsupported host %q", playerrors.ErrInvalidSource, u.Host)
	}
	return u, nil
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}
