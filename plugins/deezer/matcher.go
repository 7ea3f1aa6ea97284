package deezer

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/prawnloader/prawnloader/loader/platform"
)

const canonicalHost = "www.deezer.com"

var pathKinds = map[string]platform.Kind{
	"track":    platform.KindTrack,
	"album":    platform.KindAlbum,
	"playlist": platform.KindPlaylist,
}

// URLMatcher implements platform.Grammar for Deezer web URLs.
//
// Supported shapes (after host normalization):
//   - https://www.deezer.com/track/3135556
//   - https://www.deezer.com/en/album/302127
//   - https://www.deezer.com/fr/playlist/908622995
type URLMatcher struct{}

// NewURLMatcher creates a new Deezer URL matcher.
func NewURLMatcher() *URLMatcher {
	return &URLMatcher{}
}

// Name implements platform.Grammar.
func (m *URLMatcher) Name() platform.Provider {
	return platform.ProviderDeezer
}

// Match implements platform.Grammar. Only the last two path segments are
// significant, so locale prefixes are ignored.
func (m *URLMatcher) Match(u *url.URL) (platform.CollectionRef, bool, error) {
	if u == nil || !strings.EqualFold(u.Hostname(), canonicalHost) {
		return platform.CollectionRef{}, false, nil
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) < 2 {
		return platform.CollectionRef{}, false, nil
	}

	kind, ok := pathKinds[strings.ToLower(segments[len(segments)-2])]
	if !ok {
		return platform.CollectionRef{}, false, nil
	}

	id := segments[len(segments)-1]
	if !parseID(id) {
		return platform.CollectionRef{}, true, fmt.Errorf("%w: deezer %s id %q", platform.ErrInvalidID, kind, id)
	}

	return platform.CollectionRef{Provider: platform.ProviderDeezer, Kind: kind, ID: id}, true, nil
}
