package id3

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prawnloader/prawnloader/loader/platform"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// mp3Frames returns n silent MPEG-1 Layer III frames (128 kbit/s, 44.1 kHz).
func mp3Frames(n int) []byte {
	const frameSize = 417
	frame := make([]byte, frameSize)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x64})
	return bytes.Repeat(frame, n)
}

func TestScaleCover(t *testing.T) {
	data, err := scaleCover(pngBytes(t, 1200, 600), 300)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, img.Bounds().Dx())
	assert.Equal(t, 150, img.Bounds().Dy())

	_, err = scaleCover([]byte("not an image"), 300)
	assert.Error(t, err)
}

func TestTagMp3(t *testing.T) {
	cover := pngBytes(t, 64, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(cover)
	}))
	defer srv.Close()

	audio := mp3Frames(4)
	path := filepath.Join(t.TempDir(), ".Daft Punk - One More Time.part.mp3")
	require.NoError(t, os.WriteFile(path, audio, 0o644))

	svc := NewService(Options{CoverMaxSize: 32})
	err := svc.Tag(context.Background(), path, platform.Song{
		Title:       "One More Time",
		Artist:      "Daft Punk",
		AlbumTitle:  "Discovery",
		TrackNumber: 1,
		ReleaseDate: "2001-03-07",
		CoverURL:    srv.URL,
	})
	require.NoError(t, err)

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()
	assert.Equal(t, "One More Time", tag.Title())
	assert.Equal(t, "Daft Punk", tag.Artist())
	assert.Equal(t, "Discovery", tag.Album())
	assert.Equal(t, "1", tag.GetTextFrame("TRCK").Text)
	assert.Len(t, tag.GetFrames(tag.CommonID("Attached picture")), 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID3", string(data[:3]))
	assert.True(t, bytes.HasSuffix(data, audio), "audio frames must follow the tag unchanged")
}

func TestTagMp3WithoutReachableCover(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mp3")
	require.NoError(t, os.WriteFile(path, mp3Frames(2), 0o644))

	svc := NewService(Options{})
	svc.client.RetryMax = 0
	require.NoError(t, svc.Tag(context.Background(), path, platform.Song{Title: "x", CoverURL: "http://127.0.0.1:1/cover.jpg"}))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()
	assert.Equal(t, "x", tag.Title())
	assert.Empty(t, tag.GetFrames(tag.CommonID("Attached picture")))
}

func TestTagSkipsUnsupportedContainers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.webm")
	require.NoError(t, os.WriteFile(path, []byte("webm"), 0o644))

	require.NoError(t, NewService(Options{}).Tag(context.Background(), path, platform.Song{Title: "x"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "webm", string(data))
}

func TestTagFlacRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.flac")
	require.NoError(t, os.WriteFile(path, []byte("not flac"), 0o644))
	assert.Error(t, NewService(Options{}).Tag(context.Background(), path, platform.Song{Title: "x"}))
}
