package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prawnloader/prawnloader/loader/platform"
)

func TestDownloadWritesFile(t *testing.T) {
	payload := []byte("ID3 fake mp3 payload")
	sum := md5.Sum(payload)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "prawnloader", r.Header.Get("User-Agent"))
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	svc := NewService(Options{CheckMD5: true})
	dest := filepath.Join(t.TempDir(), "nested", "song.mp3")

	var lastWritten int64
	n, err := svc.Download(context.Background(), &platform.StreamInfo{
		URL:     srv.URL,
		Headers: map[string]string{"User-Agent": "prawnloader"},
		Size:    int64(len(payload)),
		MD5:     hex.EncodeToString(sum[:]),
	}, dest, func(written, total int64) { lastWritten = written })
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)
	assert.EqualValues(t, len(payload), lastWritten)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDownloadRetriesThenFails(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc := NewService(Options{MaxRetries: 2})
	dest := filepath.Join(t.TempDir(), "song.mp3")

	_, err := svc.Download(context.Background(), &platform.StreamInfo{URL: srv.URL}, dest, nil)
	require.ErrorIs(t, err, platform.ErrTransport)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
	assert.NoFileExists(t, dest)
}

func TestDownloadNotFoundIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc := NewService(Options{MaxRetries: 3})
	_, err := svc.Download(context.Background(), &platform.StreamInfo{URL: srv.URL}, filepath.Join(t.TempDir(), "x.mp3"), nil)
	require.ErrorIs(t, err, platform.ErrNotFound)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestDownloadSizeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	svc := NewService(Options{MaxRetries: 1})
	dest := filepath.Join(t.TempDir(), "song.mp3")
	_, err := svc.Download(context.Background(), &platform.StreamInfo{URL: srv.URL, Size: 1024}, dest, nil)
	require.ErrorIs(t, err, platform.ErrTransport)
	assert.NoFileExists(t, dest)
}

func TestDownloadMD5Mismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	svc := NewService(Options{MaxRetries: 1, CheckMD5: true})
	_, err := svc.Download(context.Background(), &platform.StreamInfo{URL: srv.URL, MD5: "00000000000000000000000000000000"}, filepath.Join(t.TempDir(), "x"), nil)
	require.ErrorIs(t, err, platform.ErrTransport)
}

func TestDownloadMissingInfo(t *testing.T) {
	svc := NewService(Options{})
	_, err := svc.Download(context.Background(), nil, "x", nil)
	assert.Error(t, err)
	_, err = svc.Download(context.Background(), &platform.StreamInfo{URL: "http://example.invalid"}, "", nil)
	assert.Error(t, err)
}
