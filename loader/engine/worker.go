package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/prawnloader/prawnloader/loader"
	"github.com/prawnloader/prawnloader/loader/events"
	"github.com/prawnloader/prawnloader/loader/platform"
)

// handle runs one request on a worker: Start, the kind-specific download,
// then exactly one terminal event.
func (e *Engine) handle(q *providerQueue, log loader.Logger, j *job) {
	defer j.cancel(nil)
	id := j.req.ID

	if j.ctx.Err() != nil {
		e.bus.Publish(events.DownloadError(id, failureMessage(j.ctx, j.ctx.Err())))
		return
	}

	e.setState(id, StateDownloading)
	e.bus.Publish(events.Start(id))
	if log != nil {
		log.Info("download started", "request", id.String(), "kind", j.req.Item.Kind.String(), "title", j.req.Item.Title())
	}

	if err := e.run(q, log, j); err != nil {
		if log != nil {
			log.Warn("download failed", "request", id.String(), "error", err)
		}
		e.bus.Publish(events.DownloadError(id, failureMessage(j.ctx, err)))
		return
	}

	if log != nil {
		log.Info("download finished", "request", id.String())
	}
	e.bus.Publish(events.Finish(id))
}

func (e *Engine) run(q *providerQueue, log loader.Logger, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if log != nil {
				log.Error("download panicked", "request", j.req.ID.String(), "panic", r, "stack", string(debug.Stack()))
			}
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	item := j.req.Item
	switch item.Kind {
	case platform.KindTrack, platform.KindVideo:
		if item.Song == nil {
			return errors.New("item has no song")
		}
		if item.Kind == platform.KindVideo && item.SplitByChapters && len(item.Song.Chapters) > 0 {
			return e.downloadChapters(j.ctx, q.client, *item.Song, j.opts)
		}
		song := *item.Song
		final := filepath.Join(j.opts.OutputDir, TrackFileName(song.Artist, song.Title, j.opts.Format))
		return e.downloadSong(j.ctx, q.client, song, final, j.opts.Format)
	case platform.KindAlbum, platform.KindPlaylist:
		if item.Album == nil {
			return errors.New("item has no album")
		}
		merge := item.MergeTracks
		if item.Kind == platform.KindPlaylist {
			merge = j.opts.MergeTracks
		}
		return e.downloadCollection(j.ctx, q.client, j.req.ID, *item.Album, merge, j.opts)
	default:
		return fmt.Errorf("%w: item kind %s", platform.ErrUnsupported, item.Kind)
	}
}

// downloadSong fetches song into a scoped temp dir, converts it to format
// when the provider delivered another container, tags it and moves it to
// final.
func (e *Engine) downloadSong(ctx context.Context, client platform.Client, song platform.Song, final, format string) error {
	tmp, err := os.MkdirTemp("", "prawnloader-")
	if err != nil {
		return platform.NewWriteError(os.TempDir(), err)
	}
	defer os.RemoveAll(tmp)

	media, err := client.Fetch(ctx, song, filepath.Join(tmp, "source"))
	if err != nil {
		return err
	}
	return e.finalize(ctx, media, final, format, song)
}

// finalize turns fetched media into final, going through the part file.
func (e *Engine) finalize(ctx context.Context, media platform.Media, final, format string, song platform.Song) error {
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return platform.NewWriteError(filepath.Dir(final), err)
	}
	part := partPath(final)

	if media.Ext == format {
		if err := moveFile(media.Path, part); err != nil {
			return platform.NewWriteError(part, err)
		}
	} else {
		if e.encoder == nil {
			return fmt.Errorf("%w: no encoder to convert %s to %s", platform.ErrUnsupported, media.Ext, format)
		}
		if err := e.encoder.Transcode(ctx, media.Path, part, format); err != nil {
			_ = os.Remove(part)
			return err
		}
	}

	return e.publish(ctx, part, final, song)
}

// publish tags part and renames it to final.
func (e *Engine) publish(ctx context.Context, part, final string, song platform.Song) error {
	e.tag(ctx, part, song)
	if err := os.Rename(part, final); err != nil {
		_ = os.Remove(part)
		return platform.NewWriteError(final, err)
	}
	return nil
}

func (e *Engine) tag(ctx context.Context, path string, song platform.Song) {
	if e.tagger == nil {
		return
	}
	if err := e.tagger.Tag(ctx, path, song); err != nil && e.logger != nil {
		e.logger.Warn("failed to write tags", "file", filepath.Base(path), "error", err)
	}
}

func failureMessage(ctx context.Context, err error) string {
	cause := context.Cause(ctx)
	switch {
	case cause == nil:
		return err.Error()
	case errors.Is(cause, errStopped):
		return errStopped.Error()
	case errors.Is(cause, context.Canceled):
		return "download cancelled"
	default:
		return cause.Error()
	}
}
