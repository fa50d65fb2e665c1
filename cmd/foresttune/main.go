// Command foresttune inspects persisted tuning checkpoints: the evaluation
// log a crashed or running tune has written so far, and the recommendation
// the summarizer would derive from it.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/foresttune/foresttune"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "foresttune",
		Short:         "Inspect foresttune checkpoint files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable diagnostic logging")

	root.AddCommand(newInspectCommand(), newRecommendCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <checkpoint>",
		Short: "Print the persisted evaluation log as a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, space, err := loadCheckpointSpace(args[0])
			if err != nil {
				return err
			}

			result := foresttune.Summarize(space, cp.Log, cp.MeasureID, cp.Minimize, 0)

			fmt.Printf("run %s: %d/%d evaluations, measure %s (minimize=%v)\n",
				cp.RunID, len(cp.Log), cp.Iterations, cp.MeasureID, cp.Minimize)

			renderRows(result.Columns, result.FullResults)

			return nil
		},
	}
}

func newRecommendCommand() *cobra.Command {
	var quantile float64

	cmd := &cobra.Command{
		Use:   "recommend <checkpoint>",
		Short: "Aggregate the best-scoring tail of the log into a recommendation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cp, space, err := loadCheckpointSpace(args[0])
			if err != nil {
				return err
			}

			result := foresttune.Summarize(space, cp.Log, cp.MeasureID, cp.Minimize, quantile)

			renderRows(result.Columns, []foresttune.ResultRow{result.Recommended})

			return nil
		},
	}

	cmd.Flags().Float64VarP(&quantile, "quantile", "q", 0.05, "share of the log to aggregate over")

	return cmd
}

// loadCheckpointSpace reads a checkpoint and rebuilds the parameter space it
// was tuned over, so transformed columns decode the same way they did during
// the run.
func loadCheckpointSpace(path string) (*foresttune.Checkpoint, *foresttune.ParameterSpace, error) {
	logger := zap.NewNop()
	if verbose {
		var err error

		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, nil, err
		}
	}

	cp, err := foresttune.LoadCheckpoint(path)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("loaded checkpoint",
		zap.String("runId", cp.RunID),
		zap.Int("observations", len(cp.Log)),
		zap.Strings("parameters", cp.TunedParameters))

	space, err := foresttune.BuildSpace(cp.Task.Size, cp.Task.FeatureCount, cp.TunedParameters, nil)
	if err != nil {
		return nil, nil, err
	}

	return cp, space, nil
}

func renderRows(columns []string, rows []foresttune.ResultRow) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)

	// Parameter columns come first; the last two are score and time.
	paramColumns := columns[:len(columns)-2]

	for _, row := range rows {
		cells := make([]string, 0, len(columns))

		for _, name := range paramColumns {
			cells = append(cells, formatValue(row.Values[name]))
		}

		cells = append(cells,
			strconv.FormatFloat(row.Score, 'g', 6, 64),
			strconv.FormatFloat(row.ElapsedSeconds, 'g', 4, 64))

		table.Append(cells)
	}

	table.Render()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'g', 6, 64)
	default:
		return fmt.Sprint(v)
	}
}
