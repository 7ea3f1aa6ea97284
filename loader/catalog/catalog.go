package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/prawnloader/prawnloader/loader"
	"github.com/prawnloader/prawnloader/loader/platform"
)

// Options configures member lookups of collections.
type Options struct {
	MemberRetries int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration
	MemberTimeout time.Duration
	// Concurrency caps parallel member lookups; 0 means unbounded.
	Concurrency int
	Logger      loader.Logger
}

// Catalog turns collection refs into metadata through provider clients.
type Catalog struct {
	manager *platform.Manager
	opts    Options
	group   singleflight.Group
	backoff retryablehttp.Backoff
}

// New creates a catalog over the clients in manager.
func New(manager *platform.Manager, opts Options) *Catalog {
	if opts.MemberRetries <= 0 {
		opts.MemberRetries = 5
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 250 * time.Millisecond
	}
	if opts.RetryWaitMax < opts.RetryWaitMin {
		opts.RetryWaitMax = 5 * time.Second
	}
	if opts.MemberTimeout <= 0 {
		opts.MemberTimeout = 120 * time.Second
	}
	return &Catalog{manager: manager, opts: opts, backoff: retryablehttp.DefaultBackoff}
}

// FetchSong returns the metadata of a track or video. ok is false when the
// provider reports the item missing or unreadable.
func (c *Catalog) FetchSong(ctx context.Context, ref platform.CollectionRef) (platform.Song, bool, error) {
	client, err := c.client(ref.Provider)
	if err != nil {
		return platform.Song{}, false, err
	}
	if ref.Kind.IsCollection() {
		return platform.Song{}, false, fmt.Errorf("fetch song: %s is a collection", ref)
	}

	song, err := client.GetTrack(ctx, ref.ID)
	if err != nil {
		if platform.IsMissing(err) {
			return platform.Song{}, false, nil
		}
		return platform.Song{}, false, err
	}
	return *song, true, nil
}

// FetchAlbum returns an album or playlist with its members in listing
// order. Missing members are skipped.
func (c *Catalog) FetchAlbum(ctx context.Context, ref platform.CollectionRef) (platform.Album, bool, error) {
	client, err := c.client(ref.Provider)
	if err != nil {
		return platform.Album{}, false, err
	}
	if !ref.Kind.IsCollection() {
		return platform.Album{}, false, fmt.Errorf("fetch album: %s is not a collection", ref)
	}

	listing, err := client.GetCollection(ctx, ref.Kind, ref.ID)
	if err != nil {
		if platform.IsMissing(err) {
			return platform.Album{}, false, nil
		}
		return platform.Album{}, false, err
	}

	songs, err := c.fetchMembers(ctx, client, ref, listing.MemberIDs)
	if err != nil {
		return platform.Album{}, false, err
	}

	album := platform.Album{
		ID:       listing.ID,
		Title:    listing.Title,
		Artist:   listing.Artist,
		CoverURL: listing.CoverURL,
	}
	if album.ID == "" {
		album.ID = ref.ID
	}
	for _, s := range songs {
		if s != nil {
			album.Songs = append(album.Songs, *s)
		}
	}
	return album, true, nil
}

func (c *Catalog) fetchMembers(ctx context.Context, client platform.Client, ref platform.CollectionRef, ids []string) ([]*platform.Song, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.MemberTimeout)
	defer cancel()

	songs := make([]*platform.Song, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if c.opts.Concurrency > 0 {
		g.SetLimit(c.opts.Concurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			song, err := c.fetchMember(gctx, client, ref.Provider, id)
			if err != nil {
				if platform.IsMissing(err) {
					if c.opts.Logger != nil {
						c.opts.Logger.Warn("skipping missing collection member", "collection", ref.String(), "member", id, "error", err)
					}
					return nil
				}
				return fmt.Errorf("member %s of %s: %w", id, ref, err)
			}
			songs[i] = song
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return songs, nil
}

// fetchMember looks up one member with bounded retries. Concurrent lookups
// of the same id share one call; the shared call runs under its own
// deadline so a caller leaving early does not fail the others.
func (c *Catalog) fetchMember(ctx context.Context, client platform.Client, provider platform.Provider, id string) (*platform.Song, error) {
	ch := c.group.DoChan(string(provider)+":"+id, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.MemberTimeout)
		defer cancel()
		return c.lookup(lookupCtx, client, provider, id)
	})

	select {
	case <-ctx.Done():
		return nil, platform.NewTransportError(string(provider), "track", id, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		song := *res.Val.(*platform.Song)
		return &song, nil
	}
}

func (c *Catalog) lookup(ctx context.Context, client platform.Client, provider platform.Provider, id string) (*platform.Song, error) {
	var lastErr error
	for attempt := 0; attempt < c.opts.MemberRetries; attempt++ {
		song, err := client.GetTrack(ctx, id)
		if err == nil {
			return song, nil
		}
		if platform.IsMissing(err) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		lastErr = err

		if attempt == c.opts.MemberRetries-1 {
			break
		}
		wait := c.backoff(c.opts.RetryWaitMin, c.opts.RetryWaitMax, attempt, nil)
		select {
		case <-ctx.Done():
			return nil, platform.NewTransportError(string(provider), "track", id, ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, platform.NewTransportError(string(provider), "track", id, lastErr)
}

func (c *Catalog) client(provider platform.Provider) (platform.Client, error) {
	client, ok := c.manager.Get(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", platform.ErrNoMatchingProvider, provider)
	}
	return client, nil
}
