package cli

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
)

func newResolveCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve URL",
		Short: "Resolve a URL and print the item metadata as JSON.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := root.open(ctx)
			if err != nil {
				return err
			}
			defer func() {
				go drain(a)
				_ = a.Shutdown(context.Background())
			}()

			item, err := a.ResolveItem(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(item)
		},
	}
}
