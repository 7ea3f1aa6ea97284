package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/prawnloader/prawnloader/loader/platform"
)

var (
	videoIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	playlistIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// URLMatcher implements platform.Grammar for YouTube URLs.
//
// Supported shapes (after host normalization):
//   - https://www.youtube.com/watch?v=ORofRTMg-iY
//   - https://www.youtube.com/playlist?list=PLevurNKwl9HEcxa6K3dUoQ1jSBUUC2UxI
//   - https://www.youtube.com/shorts/ORofRTMg-iY
//   - https://youtu.be/ORofRTMg-iY
type URLMatcher struct{}

// NewURLMatcher creates a new YouTube URL matcher.
func NewURLMatcher() *URLMatcher {
	return &URLMatcher{}
}

// Name implements platform.Grammar.
func (m *URLMatcher) Name() platform.Provider {
	return platform.ProviderYouTube
}

// Match implements platform.Grammar. A watch URL carrying both a video and a
// playlist resolves to the video.
func (m *URLMatcher) Match(u *url.URL) (platform.CollectionRef, bool, error) {
	if u == nil {
		return platform.CollectionRef{}, false, nil
	}

	switch strings.ToLower(u.Hostname()) {
	case "youtu.be":
		return video(strings.Trim(u.Path, "/"))
	case "www.youtube.com":
	default:
		return platform.CollectionRef{}, false, nil
	}

	path := strings.TrimSuffix(u.Path, "/")
	query := u.Query()
	switch {
	case path == "/watch":
		if v := query.Get("v"); v != "" {
			return video(v)
		}
		if list := query.Get("list"); list != "" {
			return playlist(list)
		}
		return platform.CollectionRef{}, true, fmt.Errorf("%w: watch url without video id", platform.ErrInvalidID)
	case path == "/playlist":
		return playlist(query.Get("list"))
	case strings.HasPrefix(path, "/shorts/"), strings.HasPrefix(path, "/live/"), strings.HasPrefix(path, "/embed/"):
		return video(path[strings.LastIndex(path, "/")+1:])
	default:
		return platform.CollectionRef{}, false, nil
	}
}

func video(id string) (platform.CollectionRef, bool, error) {
	if !videoIDPattern.MatchString(id) {
		return platform.CollectionRef{}, true, fmt.Errorf("%w: youtube video id %q", platform.ErrInvalidID, id)
	}
	return platform.CollectionRef{Provider: platform.ProviderYouTube, Kind: platform.KindVideo, ID: id}, true, nil
}

func playlist(id string) (platform.CollectionRef, bool, error) {
	if !playlistIDPattern.MatchString(id) {
		return platform.CollectionRef{}, true, fmt.Errorf("%w: youtube playlist id %q", platform.ErrInvalidID, id)
	}
	return platform.CollectionRef{Provider: platform.ProviderYouTube, Kind: platform.KindPlaylist, ID: id}, true, nil
}
