package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prawnloader/prawnloader/loader/platform"
)

// downloadChapters fetches the whole video once and cuts one file per
// chapter into a folder named after the video. Every chapter is attempted.
func (e *Engine) downloadChapters(ctx context.Context, client platform.Client, song platform.Song, opts Options) error {
	if e.encoder == nil {
		return fmt.Errorf("%w: chapter splitting requires an encoder", platform.ErrUnsupported)
	}

	tmp, err := os.MkdirTemp("", "prawnloader-chapters-")
	if err != nil {
		return platform.NewWriteError(os.TempDir(), err)
	}
	defer os.RemoveAll(tmp)

	media, err := client.Fetch(ctx, song, filepath.Join(tmp, "source"))
	if err != nil {
		return err
	}

	dir := filepath.Join(opts.OutputDir, Sanitize(song.Title))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return platform.NewWriteError(dir, err)
	}

	var errs []error
	for i, ch := range song.Chapters {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		start, end := chapterRange(song, i)
		final := filepath.Join(dir, ChapterFileName(song.Artist, i+1, ch.Title, opts.Format))
		part := partPath(final)
		if err := e.encoder.Segment(ctx, media.Path, part, opts.Format, start, end); err != nil {
			_ = os.Remove(part)
			errs = append(errs, fmt.Errorf("chapter %d (%s): %w", i+1, ch.Title, err))
			continue
		}

		tags := song
		tags.Title = ch.Title
		tags.AlbumTitle = song.Title
		tags.TrackNumber = i + 1
		tags.Chapters = nil
		if err := e.publish(ctx, part, final, tags); err != nil {
			errs = append(errs, fmt.Errorf("chapter %d (%s): %w", i+1, ch.Title, err))
		}
	}
	return errors.Join(errs...)
}

// chapterRange returns [start, next start). The last chapter ends at the
// song duration, or at the end of input when the duration is unknown.
func chapterRange(song platform.Song, i int) (time.Duration, time.Duration) {
	start := song.Chapters[i].Start
	if i+1 < len(song.Chapters) {
		return start, song.Chapters[i+1].Start
	}
	if song.Duration > start {
		return start, song.Duration
	}
	return start, 0
}
