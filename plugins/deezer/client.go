package deezer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/prawnloader/prawnloader/loader"
	"github.com/prawnloader/prawnloader/loader/download"
	"github.com/prawnloader/prawnloader/loader/platform"
)

const (
	defaultAPIURL = "https://api.deezer.com"
	pageSize      = 100

	errCodeQuota    = 4
	errCodeNotFound = 800
)

// Downloader transfers a stream to a file.
type Downloader interface {
	Download(ctx context.Context, info *platform.StreamInfo, destPath string, progress download.ProgressFunc) (int64, error)
}

// Options configures a Client.
type Options struct {
	APIURL string
	// MediaURL is a template for track bytes; "{id}" is replaced by the track id.
	MediaURL   string
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
}

// Client talks to the public Deezer API with retries, a circuit breaker and a rate limit.
type Client struct {
	apiURL     string
	mediaURL   string
	retry      *retryablehttp.Client
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
	downloader Downloader
	maxRetries int
	minBackoff time.Duration
	maxBackoff time.Duration
	logger     loader.Logger
}

// New creates a Deezer client.
func New(opts Options, downloader Downloader, logger loader.Logger) *Client {
	if opts.APIURL == "" {
		opts.APIURL = defaultAPIURL
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 8
	}
	if opts.Burst <= 0 {
		opts.Burst = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = opts.Timeout
	client.Logger = nil

	settings := gobreaker.Settings{
		Name:        "deezer-api",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || platform.IsMissing(err)
		},
	}

	return &Client{
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		mediaURL:   opts.MediaURL,
		retry:      client,
		breaker:    gobreaker.NewCircuitBreaker(settings),
		limiter:    rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		downloader: downloader,
		maxRetries: client.RetryMax,
		minBackoff: client.RetryWaitMin,
		maxBackoff: client.RetryWaitMax,
		logger:     logger,
	}
}

// Name implements platform.Client.
func (c *Client) Name() platform.Provider {
	return platform.ProviderDeezer
}

type apiArtist struct {
	Name string `json:"name"`
}

type apiAlbumRef struct {
	Title    string `json:"title"`
	CoverBig string `json:"cover_big"`
}

type apiTrack struct {
	ID            json.Number `json:"id"`
	Readable      *bool       `json:"readable"`
	Title         string      `json:"title"`
	Duration      int         `json:"duration"`
	TrackPosition int         `json:"track_position"`
	ReleaseDate   string      `json:"release_date"`
	MD5Origin     string      `json:"md5_origin"`
	Artist        apiArtist   `json:"artist"`
	Album         apiAlbumRef `json:"album"`
}

type apiCollection struct {
	ID         json.Number `json:"id"`
	Title      string      `json:"title"`
	CoverBig   string      `json:"cover_big"`
	PictureBig string      `json:"picture_big"`
	Artist     apiArtist   `json:"artist"`
	Creator    apiArtist   `json:"creator"`
}

type apiPage struct {
	Data []struct {
		ID json.Number `json:"id"`
	} `json:"data"`
	Next string `json:"next"`
}

// GetTrack implements platform.Client.
func (c *Client) GetTrack(ctx context.Context, id string) (*platform.Song, error) {
	if !parseID(id) {
		return nil, platform.NewNotFoundError(string(platform.ProviderDeezer), "track", id)
	}
	var track apiTrack
	if err := c.getJSON(ctx, "track", id, "/track/"+url.PathEscape(id), &track); err != nil {
		return nil, err
	}
	if track.Readable != nil && !*track.Readable {
		return nil, platform.NewUnavailableError(string(platform.ProviderDeezer), "track", id)
	}

	song := &platform.Song{
		ID:          track.ID.String(),
		Title:       track.Title,
		Artist:      track.Artist.Name,
		AlbumTitle:  track.Album.Title,
		CoverURL:    track.Album.CoverBig,
		ReleaseDate: track.ReleaseDate,
		TrackNumber: track.TrackPosition,
		Duration:    time.Duration(track.Duration) * time.Second,
	}
	if song.ID == "" {
		song.ID = id
	}
	return song, nil
}

// GetCollection implements platform.Client for albums and playlists.
func (c *Client) GetCollection(ctx context.Context, kind platform.Kind, id string) (*platform.Listing, error) {
	var resource string
	switch kind {
	case platform.KindAlbum:
		resource = "album"
	case platform.KindPlaylist:
		resource = "playlist"
	default:
		return nil, platform.NewUnsupportedError(string(platform.ProviderDeezer), kind.String()+" collection")
	}

	if !parseID(id) {
		return nil, platform.NewNotFoundError(string(platform.ProviderDeezer), resource, id)
	}

	base := "/" + resource + "/" + url.PathEscape(id)
	var header apiCollection
	if err := c.getJSON(ctx, resource, id, base, &header); err != nil {
		return nil, err
	}

	listing := &platform.Listing{
		ID:       id,
		Title:    header.Title,
		Artist:   firstNonEmpty(header.Artist.Name, header.Creator.Name),
		CoverURL: firstNonEmpty(header.CoverBig, header.PictureBig),
	}

	for index := 0; ; index += pageSize {
		var page apiPage
		path := fmt.Sprintf("%s/tracks?index=%d&limit=%d", base, index, pageSize)
		if err := c.getJSON(ctx, resource, id, path, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Data {
			listing.MemberIDs = append(listing.MemberIDs, item.ID.String())
		}
		if page.Next == "" || len(page.Data) == 0 {
			break
		}
	}

	if c.logger != nil {
		c.logger.Debug("deezer collection listed", "kind", resource, "id", id, "members", len(listing.MemberIDs))
	}
	return listing, nil
}

// Fetch implements platform.Client. Bytes come from the configured media endpoint.
func (c *Client) Fetch(ctx context.Context, song platform.Song, destPath string) (platform.Media, error) {
	if c.mediaURL == "" || c.downloader == nil {
		return platform.Media{}, platform.NewUnsupportedError(string(platform.ProviderDeezer), "download (media_url not configured)")
	}

	info := &platform.StreamInfo{
		URL:    strings.ReplaceAll(c.mediaURL, "{id}", url.PathEscape(song.ID)),
		Format: "mp3",
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return platform.Media{}, err
	}
	size, err := c.downloader.Download(ctx, info, destPath, nil)
	if err != nil {
		if errors.Is(err, platform.ErrNotFound) {
			return platform.Media{}, platform.NewNotFoundError(string(platform.ProviderDeezer), "media", song.ID)
		}
		return platform.Media{}, err
	}
	return platform.Media{Path: destPath, Ext: info.Format, Size: size}, nil
}

func (c *Client) getJSON(ctx context.Context, resource, id, path string, out any) error {
	return c.execute(ctx, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.retry.Do(req)
		if err != nil {
			return platform.NewTransportError(string(platform.ProviderDeezer), resource, id, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return platform.NewNotFoundError(string(platform.ProviderDeezer), resource, id)
		}
		if resp.StatusCode != http.StatusOK {
			return platform.NewTransportError(string(platform.ProviderDeezer), resource, id, fmt.Errorf("status %d", resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		if err != nil {
			return platform.NewTransportError(string(platform.ProviderDeezer), resource, id, err)
		}

		if apiErr := gjson.GetBytes(body, "error"); apiErr.Exists() {
			code := apiErr.Get("code").Int()
			switch code {
			case errCodeNotFound:
				return platform.NewNotFoundError(string(platform.ProviderDeezer), resource, id)
			case errCodeQuota:
				return platform.NewRateLimitedError(string(platform.ProviderDeezer))
			default:
				return &platform.PlatformError{
					Platform: string(platform.ProviderDeezer),
					Resource: resource,
					ID:       id,
					Err:      fmt.Errorf("api error %d: %s", code, apiErr.Get("message").String()),
				}
			}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode deezer %s %s: %w", resource, id, err)
		}
		return nil
	})
}

func (c *Client) execute(ctx context.Context, fn func() error) error {
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.withRetry(ctx, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return platform.NewTransportError(string(platform.ProviderDeezer), "api", "", err)
	}
	return err
}

// withRetry retries quota errors only; HTTP-level failures are retried by the transport.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, platform.ErrRateLimited) {
			return err
		}
		wait := c.retry.Backoff(c.minBackoff, c.maxBackoff, attempt, nil)
		if c.logger != nil {
			c.logger.Debug("deezer quota hit, backing off", "attempt", attempt+1, "wait", wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// parseID reports whether id is a valid numeric Deezer id.
func parseID(id string) bool {
	_, err := strconv.ParseUint(id, 10, 64)
	return err == nil
}
