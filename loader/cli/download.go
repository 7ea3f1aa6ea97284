package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prawnloader/prawnloader/loader/app"
	"github.com/prawnloader/prawnloader/loader/config"
	"github.com/prawnloader/prawnloader/loader/engine"
)

type downloadOptions struct {
	format   string
	merge    bool
	split    bool
	folder   bool
	output   string
	shutdown time.Duration
}

func newDownloadCommand(root *rootOptions) *cobra.Command {
	opts := &downloadOptions{}
	cmd := &cobra.Command{
		Use:   "download URL...",
		Short: "Download one or more tracks, albums, playlists or videos.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, root, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.format, "format", "f", config.FormatMP3, fmt.Sprintf("output audio format %v", config.SupportedFormats()))
	flags.BoolVar(&opts.merge, "merge", false, "merge album and playlist tracks into one file")
	flags.BoolVar(&opts.split, "split-chapters", false, "split videos with chapters into one file per chapter")
	flags.BoolVar(&opts.folder, "folder", true, "put per-track collection downloads in their own folder")
	flags.StringVarP(&opts.output, "output", "o", "", "output directory")
	flags.DurationVar(&opts.shutdown, "shutdown-timeout", 10*time.Second, "time to wait for running downloads after an interrupt")
	return cmd
}

// applyFlags overrides the settings fields whose flags were set explicitly.
func applyFlags(changed func(name string) bool, opts *downloadOptions, s config.Settings) config.Settings {
	if changed("format") {
		s.AudioFormat = opts.format
	}
	if changed("merge") {
		s.MergeTracks = opts.merge
	}
	if changed("split-chapters") {
		s.SplitByChapters = opts.split
	}
	if changed("folder") {
		s.CollectionFolder = opts.folder
	}
	if changed("output") {
		s.OutputDir = opts.output
	}
	return s
}

func runDownload(cmd *cobra.Command, root *rootOptions, opts *downloadOptions, urls []string) error {
	ctx := cmd.Context()
	a, err := root.open(ctx)
	if err != nil {
		return err
	}

	if err := a.UpdateSettings(applyFlags(cmd.Flags().Changed, opts, a.Settings())); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}

	out := cmd.OutOrStdout()
	r := newRenderer(out, isTTY())

	// Events are consumed while URLs are still being resolved so a large
	// collection never backs up behind the submit loop.
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for ev := range a.Events() {
			r.Handle(ev)
		}
	}()

	var failed int
	for _, rawURL := range urls {
		if ctx.Err() != nil {
			break
		}
		item, err := a.ResolveItem(ctx, rawURL)
		if err != nil {
			failed++
			r.Println(colorError.Sprintf("✗ %s: %v", rawURL, err))
			continue
		}
		req := engine.NewRequest(item)
		r.Track(req)
		if err := a.Submit(req); err != nil {
			r.Forget(req.ID.String())
			failed++
			r.Println(colorError.Sprintf("✗ %s: %v", item.Title(), err))
		}
	}
	r.Seal()

	wait(ctx, a, r)
	failed += r.Failed()
	r.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.shutdown)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		colorWarning.Fprintf(out, "shutdown: %v\n", err)
	}
	<-consumed

	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(urls))
	}
	return nil
}

// wait blocks until every tracked request reached a terminal event. An
// interrupt stops running requests and drops queued ones.
func wait(ctx context.Context, a *app.App, r *renderer) {
	done := ctx.Done()
	for {
		select {
		case <-r.Settled():
			return
		case <-done:
			done = nil
			r.Println(colorWarning.Sprint("interrupted, stopping downloads"))
			for _, provider := range a.Engine.Providers() {
				a.Clear(provider)
			}
			for _, status := range a.Requests() {
				if status.State == engine.StateDownloading {
					_ = a.Stop(status.ID)
				}
			}
		}
	}
}

func drain(a *app.App) {
	for range a.Events() {
	}
}
