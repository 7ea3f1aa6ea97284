package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/prawnloader/prawnloader/loader/config"
	"github.com/prawnloader/prawnloader/loader/db"
	"github.com/prawnloader/prawnloader/loader/engine"
)

func newHistoryCommand(root *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently finished downloads.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := config.Load(root.configPath)
			if err != nil {
				return err
			}
			repo, err := db.NewSQLiteRepository(conf.GetString("Database"), nil)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer repo.Close()

			outcomes, err := repo.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(outcomes) == 0 {
				colorMuted.Fprintln(cmd.OutOrStdout(), "no downloads recorded yet")
				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Finished", "Provider", "Kind", "Title", "Result"})
			table.SetAutoWrapText(false)
			table.SetBorder(false)
			table.SetRowLine(false)
			for _, o := range outcomes {
				row, result := historyRow(o)
				if color.NoColor {
					table.Append(row)
					continue
				}
				table.Rich(row, []tablewriter.Colors{{}, {tablewriter.FgCyanColor}, {}, {}, result})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

// historyRow formats one outcome and picks the colour of its result cell.
func historyRow(o engine.Outcome) ([]string, tablewriter.Colors) {
	result, colors := "ok", tablewriter.Colors{tablewriter.FgGreenColor}
	switch {
	case !o.Succeeded:
		result, colors = o.Message, tablewriter.Colors{tablewriter.FgRedColor}
	case o.TracksFailed > 0:
		result = fmt.Sprintf("%d of %d tracks failed", o.TracksFailed, o.TracksTotal)
		colors = tablewriter.Colors{tablewriter.FgYellowColor}
	}
	title := o.Title
	if o.Artist != "" {
		title = o.Artist + " - " + title
	}
	return []string{
		o.FinishedAt.Local().Format("2006-01-02 15:04"),
		string(o.Provider),
		o.Kind.String(),
		title,
		result,
	}, colors
}
