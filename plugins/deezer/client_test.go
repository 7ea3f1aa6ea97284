package deezer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prawnloader/prawnloader/loader/download"
	"github.com/prawnloader/prawnloader/loader/platform"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mediaURL string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	if strings.HasPrefix(mediaURL, "/") {
		mediaURL = srv.URL + mediaURL
	}
	return New(Options{APIURL: srv.URL, MediaURL: mediaURL, RatePerSec: 1000, Burst: 100}, download.NewService(download.Options{MaxRetries: 1}), nil)
}

func TestGetTrack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/track/3135556", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":3135556,"readable":true,"title":"Harder, Better, Faster, Stronger","duration":224,
			"track_position":4,"release_date":"2001-03-07","artist":{"name":"Daft Punk"},
			"album":{"title":"Discovery","cover_big":"https://e-cdns-images.dzcdn.net/cover.jpg"}}`))
	}, "")

	song, err := c.GetTrack(context.Background(), "3135556")
	require.NoError(t, err)
	assert.Equal(t, "3135556", song.ID)
	assert.Equal(t, "Harder, Better, Faster, Stronger", song.Title)
	assert.Equal(t, "Daft Punk", song.Artist)
	assert.Equal(t, "Discovery", song.AlbumTitle)
	assert.Equal(t, 4, song.TrackNumber)
	assert.Equal(t, 224*time.Second, song.Duration)
}

func TestGetTrackNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"type":"DataException","message":"no data","code":800}}`))
	}, "")

	_, err := c.GetTrack(context.Background(), "1")
	assert.ErrorIs(t, err, platform.ErrNotFound)
}

func TestGetTrackRejectsNonNumericID(t *testing.T) {
	var hits int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}, "")

	_, err := c.GetTrack(context.Background(), "abc")
	assert.ErrorIs(t, err, platform.ErrNotFound)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestGetTrackUnreadable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":7,"readable":false,"title":"Gone"}`))
	}, "")

	_, err := c.GetTrack(context.Background(), "7")
	assert.ErrorIs(t, err, platform.ErrUnavailable)
}

func TestGetCollectionPages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/album/302127":
			_, _ = w.Write([]byte(`{"id":302127,"title":"Discovery","cover_big":"c.jpg","artist":{"name":"Daft Punk"}}`))
		case r.URL.Path == "/album/302127/tracks" && r.URL.Query().Get("index") == "0":
			_, _ = w.Write([]byte(`{"data":[{"id":1},{"id":2}],"next":"more"}`))
		case r.URL.Path == "/album/302127/tracks" && r.URL.Query().Get("index") == "100":
			_, _ = w.Write([]byte(`{"data":[{"id":3}]}`))
		default:
			http.NotFound(w, r)
		}
	}, "")

	listing, err := c.GetCollection(context.Background(), platform.KindAlbum, "302127")
	require.NoError(t, err)
	assert.Equal(t, "Discovery", listing.Title)
	assert.Equal(t, "Daft Punk", listing.Artist)
	assert.Equal(t, "c.jpg", listing.CoverURL)
	assert.Equal(t, []string{"1", "2", "3"}, listing.MemberIDs)
}

func TestGetCollectionPlaylistCreator(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/playlist/908622995" {
			_, _ = w.Write([]byte(`{"id":908622995,"title":"Mix","picture_big":"p.jpg","creator":{"name":"someone"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}, "")

	listing, err := c.GetCollection(context.Background(), platform.KindPlaylist, "908622995")
	require.NoError(t, err)
	assert.Equal(t, "someone", listing.Artist)
	assert.Equal(t, "p.jpg", listing.CoverURL)
	assert.Empty(t, listing.MemberIDs)
}

func TestGetCollectionUnsupportedKind(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, "")
	_, err := c.GetCollection(context.Background(), platform.KindVideo, "1")
	assert.ErrorIs(t, err, platform.ErrUnsupported)
}

func TestFetchWithoutMediaURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {}, "")
	_, err := c.Fetch(context.Background(), platform.Song{ID: "1"}, filepath.Join(t.TempDir(), "a.mp3"))
	assert.ErrorIs(t, err, platform.ErrUnsupported)
}

func TestFetchWritesMedia(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/media/42" {
			_, _ = w.Write([]byte("ID3 bytes"))
			return
		}
		http.NotFound(w, r)
	}, "/media/{id}")

	dest := filepath.Join(t.TempDir(), "song.mp3")
	media, err := c.Fetch(context.Background(), platform.Song{ID: "42"}, dest)
	require.NoError(t, err)
	assert.Equal(t, "mp3", media.Ext)
	assert.EqualValues(t, len("ID3 bytes"), media.Size)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "ID3 bytes", string(data))
}

func TestFetchMissingMedia(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}, "/media/{id}")

	_, err := c.Fetch(context.Background(), platform.Song{ID: "42"}, filepath.Join(t.TempDir(), "song.mp3"))
	assert.ErrorIs(t, err, platform.ErrNotFound)
}
