package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/prawnloader/prawnloader/loader/events"
	"github.com/prawnloader/prawnloader/loader/platform"
)

// downloadCollection fans out one goroutine per member. Every member gets
// exactly one AlbumTrackComplete or AlbumTrackError event.
func (e *Engine) downloadCollection(ctx context.Context, client platform.Client, id uuid.UUID, album platform.Album, merge bool, opts Options) error {
	if len(album.Songs) == 0 {
		return nil
	}
	if merge {
		return e.mergeCollection(ctx, client, id, album, opts)
	}

	dir := opts.OutputDir
	if opts.CollectionFolder {
		dir = filepath.Join(dir, FolderName(album.Artist, album.Title))
	}

	files := uniqueTrackNames(album.Songs, opts.Format)
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for i, song := range album.Songs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if song.AlbumTitle == "" {
				song.AlbumTitle = album.Title
			}
			if err := e.downloadSong(ctx, client, song, filepath.Join(dir, files[i]), opts.Format); err != nil {
				failed.Add(1)
				e.bus.Publish(events.AlbumTrackError(id, i, err.Error()))
				return
			}
			e.bus.Publish(events.AlbumTrackComplete(id, i))
		}()
	}
	wg.Wait()

	if errors.Is(context.Cause(ctx), errStopped) {
		return errStopped
	}
	if n := int(failed.Load()); n == len(album.Songs) {
		return fmt.Errorf("all %d tracks failed", n)
	}
	return nil
}

// mergeCollection fetches every member, failing fast, then joins them in
// order into a single file.
func (e *Engine) mergeCollection(ctx context.Context, client platform.Client, id uuid.UUID, album platform.Album, opts Options) error {
	if e.encoder == nil {
		return fmt.Errorf("%w: merging requires an encoder", platform.ErrUnsupported)
	}

	tmp, err := os.MkdirTemp("", "prawnloader-merge-")
	if err != nil {
		return platform.NewWriteError(os.TempDir(), err)
	}
	defer os.RemoveAll(tmp)

	paths := make([]string, len(album.Songs))
	g, gctx := errgroup.WithContext(ctx)
	for i, song := range album.Songs {
		g.Go(func() error {
			media, err := client.Fetch(gctx, song, filepath.Join(tmp, fmt.Sprintf("%04d", i)))
			if err != nil {
				e.bus.Publish(events.AlbumTrackError(id, i, err.Error()))
				return fmt.Errorf("track %d (%s): %w", i+1, song.Title, err)
			}
			paths[i] = media.Path
			e.bus.Publish(events.AlbumTrackComplete(id, i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	final := filepath.Join(opts.OutputDir, TrackFileName(album.Artist, album.Title, opts.Format))
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return platform.NewWriteError(opts.OutputDir, err)
	}
	part := partPath(final)
	if err := e.encoder.Concat(ctx, paths, part, opts.Format); err != nil {
		_ = os.Remove(part)
		return err
	}

	return e.publish(ctx, part, final, platform.Song{
		ID:         album.ID,
		Title:      album.Title,
		Artist:     album.Artist,
		AlbumTitle: album.Title,
		CoverURL:   album.CoverURL,
	})
}
