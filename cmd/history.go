package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/erptools/nsauto/internal/console"
	"github.com/erptools/nsauto/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs from the local history database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyListRun()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one past run with every record outcome",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return historyShowRun(args[0])
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum runs to list (0 for all)")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func openHistory(ctx context.Context) (*history.Store, error) {
	store, err := history.Open(viper.GetString("db_path"))
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return store, nil
}

func historyListRun() error {
	ctx := context.Background()
	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.Info("no runs recorded yet")
		return nil
	}

	table := ui.Table([]string{"Run ID", "Workflow", "Started", "Total", "OK", "Failed", "Skipped", "State"})
	for _, r := range runs {
		state := "completed"
		if r.Aborted {
			state = console.Red("aborted")
		}
		table.Append([]string{
			r.RunID,
			r.Workflow,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%d", r.Total),
			console.Green(fmt.Sprintf("%d", r.Succeeded)),
			console.Red(fmt.Sprintf("%d", r.Failed)),
			console.Yellow(fmt.Sprintf("%d", r.Skipped)),
			state,
		})
	}
	return table.Render()
}

func historyShowRun(runID string) error {
	ctx := context.Background()
	store, err := openHistory(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	sum, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	ui.PrintSummary(sum)
	return nil
}
