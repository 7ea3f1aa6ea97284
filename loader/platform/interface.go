package platform

import (
	"context"
	"net/url"
)

// Client is the capability set a provider implements. Implementations must
// be safe for use by all workers of that provider.
type Client interface {
	// Name returns the provider tag.
	Name() Provider

	// GetTrack returns metadata for one track or video. Absent or unreadable
	// items are reported with ErrNotFound or ErrUnavailable.
	GetTrack(ctx context.Context, id string) (*Song, error)

	// GetCollection returns an album or playlist header and its member ids.
	GetCollection(ctx context.Context, kind Kind, id string) (*Listing, error)

	// Fetch writes the bytes of song to destPath. The returned Media reports
	// the container format that was written.
	Fetch(ctx context.Context, song Song, destPath string) (Media, error)
}

// Grammar recognizes a provider's URL shapes.
type Grammar interface {
	// Name returns the provider tag the grammar produces refs for.
	Name() Provider

	// Match inspects a normalized URL. matched is false when the URL does not
	// belong to the provider; err is non-nil when it does but the id is invalid.
	Match(u *url.URL) (ref CollectionRef, matched bool, err error)
}
