package encode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/prawnloader/prawnloader/loader"
	"github.com/prawnloader/prawnloader/loader/config"
	"github.com/prawnloader/prawnloader/loader/platform"
)

// FFmpeg runs the ffmpeg binary for transcoding, concatenation and cutting.
type FFmpeg struct {
	path   string
	logger loader.Logger
}

// New creates an encoder using the binary at path, or "ffmpeg" from PATH.
func New(path string, logger loader.Logger) *FFmpeg {
	if strings.TrimSpace(path) == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path, logger: logger}
}

// Available reports whether the binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.path)
	return err == nil
}

// Transcode converts src into dst encoded as format.
func (f *FFmpeg) Transcode(ctx context.Context, src, dst, format string) error {
	args, err := transcodeArgs(src, dst, format)
	if err != nil {
		return err
	}
	return f.run(ctx, args, nil, dst)
}

// Concat joins srcs in order into one dst encoded as format. The file list
// is fed to a single process through stdin.
func (f *FFmpeg) Concat(ctx context.Context, srcs []string, dst, format string) error {
	if len(srcs) == 0 {
		return errors.New("concat: no inputs")
	}
	args, err := concatArgs(dst, format)
	if err != nil {
		return err
	}
	return f.run(ctx, args, strings.NewReader(concatList(srcs)), dst)
}

// Segment cuts [start, end) of src into dst. A zero end reads to the end of input.
func (f *FFmpeg) Segment(ctx context.Context, src, dst, format string, start, end time.Duration) error {
	args, err := segmentArgs(src, dst, format, start, end)
	if err != nil {
		return err
	}
	return f.run(ctx, args, nil, dst)
}

func (f *FFmpeg) run(ctx context.Context, args []string, stdin io.Reader, dst string) error {
	cmd := exec.CommandContext(ctx, f.path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = stdin
	}

	if f.logger != nil {
		f.logger.Debug("running ffmpeg", "cmd", cmd.String())
	}
	if err := cmd.Run(); err != nil {
		_ = os.Remove(dst)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: ffmpeg: %w: %s", platform.ErrTransport, err, lastLine(stderr.String()))
	}
	return nil
}

func codecArgs(format string) ([]string, error) {
	switch format {
	case config.FormatMP3:
		return []string{"-c:a", "libmp3lame", "-q:a", "2", "-f", "mp3"}, nil
	case config.FormatWebM:
		return []string{"-c:a", "libopus", "-b:a", "160k", "-f", "webm"}, nil
	case config.FormatWAV:
		return []string{"-c:a", "pcm_s16le", "-f", "wav"}, nil
	case config.FormatOGG:
		return []string{"-c:a", "libvorbis", "-q:a", "5", "-f", "ogg"}, nil
	case config.FormatFLAC:
		return []string{"-c:a", "flac", "-f", "flac"}, nil
	default:
		return nil, fmt.Errorf("%w: audio format %q", platform.ErrUnsupported, format)
	}
}

func transcodeArgs(src, dst, format string) ([]string, error) {
	codec, err := codecArgs(format)
	if err != nil {
		return nil, err
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", src, "-vn"}
	args = append(args, codec...)
	return append(args, dst), nil
}

func concatArgs(dst, format string) ([]string, error) {
	codec, err := codecArgs(format)
	if err != nil {
		return nil, err
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "concat", "-safe", "0", "-protocol_whitelist", "file,pipe",
		"-i", "pipe:0", "-vn",
	}
	args = append(args, codec...)
	return append(args, dst), nil
}

func segmentArgs(src, dst, format string, start, end time.Duration) ([]string, error) {
	if start < 0 || (end > 0 && end <= start) {
		return nil, fmt.Errorf("segment: invalid range %s-%s", start, end)
	}
	codec, err := codecArgs(format)
	if err != nil {
		return nil, err
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-ss", seconds(start)}
	if end > 0 {
		args = append(args, "-to", seconds(end))
	}
	args = append(args, "-i", src, "-vn")
	args = append(args, codec...)
	return append(args, dst), nil
}

func concatList(srcs []string) string {
	var b strings.Builder
	for _, src := range srcs {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(src, "'", `'\''`))
		b.WriteString("'\n")
	}
	return b.String()
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
