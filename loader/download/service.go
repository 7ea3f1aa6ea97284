package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prawnloader/prawnloader/loader"
	"github.com/prawnloader/prawnloader/loader/platform"
)

// ProgressFunc receives byte counts while a transfer runs.
type ProgressFunc func(written, total int64)

// Service transfers remote streams to local files.
type Service struct {
	client     *http.Client
	timeout    time.Duration
	checkMD5   bool
	maxRetries int
	logger     loader.Logger
}

// Options configures a Service.
type Options struct {
	Timeout    time.Duration
	CheckMD5   bool
	MaxRetries int
	// Client overrides the default transport.
	Client *http.Client
	Logger loader.Logger
}

// NewService creates a download service.
func NewService(opts Options) *Service {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	client := opts.Client
	if client == nil {
		dialTimeout := minDuration(opts.Timeout, 10*time.Second)
		client = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   dialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   dialTimeout,
				ResponseHeaderTimeout: dialTimeout,
				ExpectContinueTimeout: time.Second,
			},
		}
	}

	return &Service{
		client:     client,
		timeout:    opts.Timeout,
		checkMD5:   opts.CheckMD5,
		maxRetries: opts.MaxRetries,
		logger:     opts.Logger,
	}
}

// Download writes the stream described by info to destPath. A failed attempt
// removes the partial file before retrying.
func (s *Service) Download(ctx context.Context, info *platform.StreamInfo, destPath string, progress ProgressFunc) (int64, error) {
	if info == nil || info.URL == "" {
		return 0, errors.New("stream info missing")
	}
	if destPath == "" {
		return 0, errors.New("dest path missing")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, platform.NewWriteError(destPath, err)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		written, err := s.downloadOnce(ctx, info, destPath, progress)
		if err == nil {
			err = s.verify(info, destPath, written)
		}
		if err == nil {
			return written, nil
		}

		lastErr = err
		_ = os.Remove(destPath)
		if errors.Is(err, platform.ErrWrite) || errors.Is(err, platform.ErrNotFound) || ctx.Err() != nil {
			break
		}
		if s.logger != nil {
			s.logger.Warn("download attempt failed", "attempt", attempt+1, "url", info.URL, "error", err)
		}
		if attempt < s.maxRetries-1 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Duration(1<<attempt) * time.Second):
			}
		}
	}
	return 0, lastErr
}

func (s *Service) downloadOnce(ctx context.Context, info *platform.StreamInfo, destPath string, progress ProgressFunc) (int64, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return 0, err
	}
	for k, v := range info.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", platform.ErrTransport, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, fmt.Errorf("%w: %s", platform.ErrNotFound, info.URL)
	case resp.StatusCode != http.StatusOK:
		return 0, fmt.Errorf("%w: download failed with status %d", platform.ErrTransport, resp.StatusCode)
	}

	total := info.Size
	if total <= 0 {
		total = resp.ContentLength
	}

	file, err := os.Create(destPath)
	if err != nil {
		return 0, platform.NewWriteError(destPath, err)
	}
	defer file.Close()

	written, err := copyWithProgress(file, resp.Body, total, progress)
	if err != nil {
		return written, err
	}
	if err := file.Sync(); err != nil {
		return written, platform.NewWriteError(destPath, err)
	}
	return written, nil
}

func (s *Service) verify(info *platform.StreamInfo, destPath string, written int64) error {
	if info.Size > 0 && written != info.Size {
		return fmt.Errorf("%w: incomplete download: got %d bytes, expected %d", platform.ErrTransport, written, info.Size)
	}
	if s.checkMD5 && info.MD5 != "" {
		ok, err := verifyMD5(destPath, info.MD5)
		if err != nil {
			return platform.NewWriteError(destPath, err)
		}
		if !ok {
			return fmt.Errorf("%w: md5 verification failed", platform.ErrTransport)
		}
	}
	return nil
}

// copyWithProgress reports at most every 500ms. Read errors are transport
// failures, write errors are filesystem failures.
func copyWithProgress(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, 128*1024)
	var written int64
	lastUpdate := time.Now()

	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, platform.NewWriteError("output", werr)
			}
			written += int64(n)
			if progress != nil && time.Since(lastUpdate) >= 500*time.Millisecond {
				progress(written, total)
				lastUpdate = time.Now()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if progress != nil {
					progress(written, total)
				}
				return written, nil
			}
			return written, fmt.Errorf("%w: %w", platform.ErrTransport, err)
		}
	}
}

func verifyMD5(filePath, expected string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	h := md5.New()
	if _, err := io.Copy(h, file); err != nil {
		return false, err
	}
	return strings.EqualFold(hex.EncodeToString(h.Sum(nil)), expected), nil
}

func minDuration(a, b time.Duration) time.Duration {
	if a == 0 || a > b {
		return b
	}
	return a
}
