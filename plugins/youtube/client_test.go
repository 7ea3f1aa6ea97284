package youtube

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prawnloader/prawnloader/loader/platform"
)

type fakeAPI struct {
	videos    map[string]*youtube.Video
	playlists map[string]*youtube.Playlist
	videoErr  error
	streamed  *youtube.Format
}

func (f *fakeAPI) GetVideoContext(_ context.Context, id string) (*youtube.Video, error) {
	if f.videoErr != nil {
		return nil, f.videoErr
	}
	if v, ok := f.videos[id]; ok {
		return v, nil
	}
	return nil, youtube.ErrVideoIDMinLength
}

func (f *fakeAPI) GetPlaylistContext(_ context.Context, url string) (*youtube.Playlist, error) {
	id := strings.TrimPrefix(url, playlistURLPrefix)
	if p, ok := f.playlists[id]; ok {
		return p, nil
	}
	return nil, youtube.ErrInvalidPlaylist
}

func (f *fakeAPI) GetStreamContext(_ context.Context, _ *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error) {
	f.streamed = format
	body := "stream:" + format.MimeType
	return io.NopCloser(strings.NewReader(body)), int64(len(body)), nil
}

func testVideo() *youtube.Video {
	return &youtube.Video{
		ID:          "ORofRTMg-iY",
		Title:       "Live at Wembley",
		Author:      "Daft Punk - Topic",
		Description: "0:00 Intro\n4:10 Robot Rock",
		Duration:    10 * time.Minute,
		PublishDate: time.Date(2007, 6, 16, 0, 0, 0, 0, time.UTC),
		Thumbnails: youtube.Thumbnails{
			{URL: "small.jpg", Width: 120, Height: 90},
			{URL: "large.jpg", Width: 1280, Height: 720},
		},
		Formats: youtube.FormatList{
			{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Bitrate: 500000, Width: 640, Height: 360, AudioChannels: 2},
			{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 130000, AudioChannels: 2},
			{ItagNo: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 160000, AudioChannels: 2},
		},
	}
}

func newFakeClient(api *fakeAPI) *Client {
	return newWithAPI(api, Options{RatePerSec: 1000, Burst: 100}, nil)
}

func TestGetTrackMapsVideo(t *testing.T) {
	c := newFakeClient(&fakeAPI{videos: map[string]*youtube.Video{"ORofRTMg-iY": testVideo()}})

	song, err := c.GetTrack(context.Background(), "ORofRTMg-iY")
	require.NoError(t, err)
	assert.Equal(t, "Live at Wembley", song.Title)
	assert.Equal(t, "Daft Punk", song.Artist)
	assert.Equal(t, "large.jpg", song.CoverURL)
	assert.Equal(t, "2007-06-16", song.ReleaseDate)
	assert.Equal(t, 10*time.Minute, song.Duration)
	require.Len(t, song.Chapters, 2)
	assert.Equal(t, "Robot Rock", song.Chapters[1].Title)
}

func TestGetTrackErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"private", youtube.ErrVideoPrivate, platform.ErrUnavailable},
		{"login", youtube.ErrLoginRequired, platform.ErrUnavailable},
		{"playability", &youtube.ErrPlayabiltyStatus{Status: "UNPLAYABLE", Reason: "region"}, platform.ErrUnavailable},
		{"removed", &youtube.ErrPlayabiltyStatus{Status: "ERROR", Reason: "removed"}, platform.ErrNotFound},
		{"bad id", youtube.ErrInvalidCharactersInVideoID, platform.ErrNotFound},
		{"status 404", youtube.ErrUnexpectedStatusCode(404), platform.ErrNotFound},
		{"network", errors.New("connection reset"), platform.ErrTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeClient(&fakeAPI{videoErr: tt.err})
			_, err := c.GetTrack(context.Background(), "ORofRTMg-iY")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGetCollectionPlaylist(t *testing.T) {
	c := newFakeClient(&fakeAPI{playlists: map[string]*youtube.Playlist{
		"PL1": {
			ID:     "PL1",
			Title:  "Favourites",
			Author: "someone",
			Videos: []*youtube.PlaylistEntry{
				{ID: "aaaaaaaaaaa", Thumbnails: youtube.Thumbnails{{URL: "a.jpg", Width: 10, Height: 10}}},
				nil,
				{ID: "bbbbbbbbbbb"},
			},
		},
	}})

	listing, err := c.GetCollection(context.Background(), platform.KindPlaylist, "PL1")
	require.NoError(t, err)
	assert.Equal(t, "Favourites", listing.Title)
	assert.Equal(t, "someone", listing.Artist)
	assert.Equal(t, "a.jpg", listing.CoverURL)
	assert.Equal(t, []string{"aaaaaaaaaaa", "bbbbbbbbbbb"}, listing.MemberIDs)

	_, err = c.GetCollection(context.Background(), platform.KindPlaylist, "missing")
	assert.ErrorIs(t, err, platform.ErrNotFound)

	_, err = c.GetCollection(context.Background(), platform.KindAlbum, "PL1")
	assert.ErrorIs(t, err, platform.ErrUnsupported)
}

func TestFetchPicksBestAudioStream(t *testing.T) {
	api := &fakeAPI{videos: map[string]*youtube.Video{"ORofRTMg-iY": testVideo()}}
	c := newFakeClient(api)

	dest := filepath.Join(t.TempDir(), "out", "video.part")
	media, err := c.Fetch(context.Background(), platform.Song{ID: "ORofRTMg-iY"}, dest)
	require.NoError(t, err)
	require.NotNil(t, api.streamed)
	assert.Equal(t, 251, api.streamed.ItagNo)
	assert.Equal(t, "webm", media.Ext)
	assert.Equal(t, dest, media.Path)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.EqualValues(t, len(data), media.Size)
}

func TestFetchWithoutAudioFormats(t *testing.T) {
	video := testVideo()
	video.Formats = video.Formats[:1]
	c := newFakeClient(&fakeAPI{videos: map[string]*youtube.Video{video.ID: video}})

	_, err := c.Fetch(context.Background(), platform.Song{ID: video.ID}, filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, platform.ErrUnavailable)
}

func TestMimeToExt(t *testing.T) {
	assert.Equal(t, "webm", mimeToExt(`audio/webm; codecs="opus"`))
	assert.Equal(t, "m4a", mimeToExt(`audio/mp4; codecs="mp4a.40.2"`))
	assert.Equal(t, "bin", mimeToExt("garbage"))
}
