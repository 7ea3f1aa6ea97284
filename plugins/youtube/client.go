package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/kkdai/youtube/v2"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/prawnloader/prawnloader/loader"
	"github.com/prawnloader/prawnloader/loader/platform"
)

const playlistURLPrefix = "https://www.youtube.com/playlist?list="

// videoAPI is the subset of *youtube.Client used here.
type videoAPI interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetPlaylistContext(ctx context.Context, url string) (*youtube.Playlist, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// Options configures a Client.
type Options struct {
	RatePerSec float64
	Burst      int
	Timeout    time.Duration
	RetryMax   int
}

// Client fetches YouTube metadata and audio streams.
type Client struct {
	api     videoAPI
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  loader.Logger
}

// New creates a YouTube client backed by a retrying HTTP transport.
func New(opts Options, logger loader.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryMax <= 0 {
		opts.RetryMax = 3
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = opts.RetryMax
	retry.RetryWaitMin = 500 * time.Millisecond
	retry.RetryWaitMax = 5 * time.Second
	retry.Logger = nil

	retry.HTTPClient.Timeout = opts.Timeout

	return newWithAPI(&youtube.Client{HTTPClient: retry.StandardClient()}, opts, logger)
}

func newWithAPI(api videoAPI, opts Options, logger loader.Logger) *Client {
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 4
	}
	if opts.Burst <= 0 {
		opts.Burst = 2
	}

	settings := gobreaker.Settings{
		Name:        "youtube",
		MaxRequests: 2,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || platform.IsMissing(err)
		},
	}

	return &Client{
		api:     api,
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.Burst),
		logger:  logger,
	}
}

// Name implements platform.Client.
func (c *Client) Name() platform.Provider {
	return platform.ProviderYouTube
}

// GetTrack implements platform.Client. Chapters are read from the description.
func (c *Client) GetTrack(ctx context.Context, id string) (*platform.Song, error) {
	video, err := c.video(ctx, id)
	if err != nil {
		return nil, err
	}

	song := &platform.Song{
		ID:       video.ID,
		Title:    video.Title,
		Artist:   strings.TrimSuffix(video.Author, " - Topic"),
		CoverURL: bestThumbnail(video.Thumbnails),
		Duration: video.Duration,
		Chapters: ParseChapters(video.Description),
	}
	if song.ID == "" {
		song.ID = id
	}
	if !video.PublishDate.IsZero() {
		song.ReleaseDate = video.PublishDate.Format("2006-01-02")
	}
	return song, nil
}

// GetCollection implements platform.Client for playlists.
func (c *Client) GetCollection(ctx context.Context, kind platform.Kind, id string) (*platform.Listing, error) {
	if kind != platform.KindPlaylist {
		return nil, platform.NewUnsupportedError(string(platform.ProviderYouTube), kind.String()+" collection")
	}

	var playlist *youtube.Playlist
	err := c.execute(ctx, "playlist", id, func() error {
		var err error
		playlist, err = c.api.GetPlaylistContext(ctx, playlistURLPrefix+id)
		return err
	})
	if err != nil {
		return nil, err
	}

	listing := &platform.Listing{
		ID:     id,
		Title:  playlist.Title,
		Artist: playlist.Author,
	}
	for _, entry := range playlist.Videos {
		if entry == nil || entry.ID == "" {
			continue
		}
		if listing.CoverURL == "" {
			listing.CoverURL = bestThumbnail(entry.Thumbnails)
		}
		listing.MemberIDs = append(listing.MemberIDs, entry.ID)
	}

	if c.logger != nil {
		c.logger.Debug("youtube playlist listed", "id", id, "members", len(listing.MemberIDs))
	}
	return listing, nil
}

// Fetch implements platform.Client. The best audio-only stream is written
// as-is; its container decides the extension.
func (c *Client) Fetch(ctx context.Context, song platform.Song, destPath string) (platform.Media, error) {
	video, err := c.video(ctx, song.ID)
	if err != nil {
		return platform.Media{}, err
	}

	format := pickAudioFormat(video.Formats)
	if format == nil {
		return platform.Media{}, platform.NewUnavailableError(string(platform.ProviderYouTube), "audio stream", song.ID)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return platform.Media{}, err
	}
	stream, _, err := c.api.GetStreamContext(ctx, video, format)
	if err != nil {
		return platform.Media{}, mapError("stream", song.ID, err)
	}
	defer stream.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return platform.Media{}, platform.NewWriteError(destPath, err)
	}
	file, err := os.Create(destPath)
	if err != nil {
		return platform.Media{}, platform.NewWriteError(destPath, err)
	}

	written, err := io.Copy(file, stream)
	closeErr := file.Close()
	if err != nil {
		_ = os.Remove(destPath)
		return platform.Media{}, platform.NewTransportError(string(platform.ProviderYouTube), "stream", song.ID, err)
	}
	if closeErr != nil {
		_ = os.Remove(destPath)
		return platform.Media{}, platform.NewWriteError(destPath, closeErr)
	}

	return platform.Media{Path: destPath, Ext: mimeToExt(format.MimeType), Size: written}, nil
}

func (c *Client) video(ctx context.Context, id string) (*youtube.Video, error) {
	var video *youtube.Video
	err := c.execute(ctx, "video", id, func() error {
		var err error
		video, err = c.api.GetVideoContext(ctx, id)
		return err
	})
	return video, err
}

func (c *Client) execute(ctx context.Context, resource, id string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := c.breaker.Execute(func() (any, error) {
		if err := fn(); err != nil {
			return nil, mapError(resource, id, err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return platform.NewTransportError(string(platform.ProviderYouTube), resource, id, err)
	}
	return err
}

func mapError(resource, id string, err error) error {
	provider := string(platform.ProviderYouTube)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch {
	case errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return platform.NewUnavailableError(provider, resource, id)
	case errors.Is(err, youtube.ErrInvalidPlaylist),
		errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		return platform.NewNotFoundError(provider, resource, id)
	}

	var playability *youtube.ErrPlayabiltyStatus
	if errors.As(err, &playability) {
		if strings.EqualFold(playability.Status, "ERROR") {
			return platform.NewNotFoundError(provider, resource, id)
		}
		return &platform.PlatformError{Platform: provider, Resource: resource, ID: id, Err: fmt.Errorf("%w: %s", platform.ErrUnavailable, playability.Reason)}
	}
	var playlistStatus youtube.ErrPlaylistStatus
	if errors.As(err, &playlistStatus) {
		return platform.NewUnavailableError(provider, resource, id)
	}
	var status youtube.ErrUnexpectedStatusCode
	if errors.As(err, &status) && int(status) == http.StatusNotFound {
		return platform.NewNotFoundError(provider, resource, id)
	}

	return platform.NewTransportError(provider, resource, id, err)
}

// pickAudioFormat returns the audio-only format with the highest bitrate.
func pickAudioFormat(formats youtube.FormatList) *youtube.Format {
	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if f.AudioChannels == 0 || f.Width > 0 || !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || bitrate(f) > bitrate(best) {
			best = f
		}
	}
	return best
}

func bitrate(f *youtube.Format) int {
	if f.Bitrate > 0 {
		return f.Bitrate
	}
	return f.AverageBitrate
}

func mimeToExt(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	switch strings.TrimSpace(mime) {
	case "audio/webm":
		return "webm"
	case "audio/mp4":
		return "m4a"
	case "audio/mpeg":
		return "mp3"
	case "audio/ogg":
		return "ogg"
	}
	if _, sub, ok := strings.Cut(mime, "/"); ok && sub != "" {
		return sub
	}
	return "bin"
}

func bestThumbnail(thumbs youtube.Thumbnails) string {
	var best youtube.Thumbnail
	for _, t := range thumbs {
		if t.Width*t.Height >= best.Width*best.Height {
			best = t
		}
	}
	return best.URL
}
