package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/prawnloader/prawnloader/loader/app"
)

// Version is set at build time.
var Version = "dev"

type rootOptions struct {
	configPath string
}

// NewRootCommand builds the prawnloader command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "prawnloader",
		Short:         "Download tracks, albums, playlists and videos from music providers.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath(), "config file (.ini, .yaml, .toml or .json)")

	cmd.AddCommand(
		newDownloadCommand(opts),
		newResolveCommand(opts),
		newConfigCommand(opts),
		newHistoryCommand(opts),
	)
	return cmd
}

// Execute runs the root command with ctx and prints a failure, if any.
func Execute(ctx context.Context) error {
	cmd := NewRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		colorError.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
	}
	return err
}

func (o *rootOptions) open(ctx context.Context) (*app.App, error) {
	return app.New(ctx, o.configPath, app.Options{})
}

// defaultConfigPath returns config.ini when it exists, otherwise the
// built-in defaults are used.
func defaultConfigPath() string {
	if _, err := os.Stat("config.ini"); err == nil {
		return "config.ini"
	}
	return ""
}
