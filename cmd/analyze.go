package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/edaloom/internal/analysis"
	"github.com/KaramelBytes/edaloom/internal/artifacts"
	"github.com/KaramelBytes/edaloom/internal/eda"
	"github.com/KaramelBytes/edaloom/internal/plot"
	"github.com/KaramelBytes/edaloom/internal/utils"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

var (
	anaOutDir    string
	anaJSON      bool
	anaNoPlots   bool
	anaDelimiter string
	anaDecimal   string
	anaThousands string
	anaMaxRows   int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Run the automated EDA on a CSV/TSV file and write the charts locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		opt := analysis.DefaultOptions()
		opt.MaxRows = c.MaxRows
		if cmd.Flags().Changed("max-rows") {
			opt.MaxRows = anaMaxRows
		}
		if err := applySeparators(&opt); err != nil {
			return err
		}

		ds, err := analysis.LoadCSVFile(args[0], opt)
		if err != nil {
			return err
		}

		var sink eda.Sink
		if !anaNoPlots {
			rep, err := artifacts.OpenDir(anaOutDir)
			if err != nil {
				return err
			}
			sink = rep
		}
		agent := eda.NewAgent(plot.New(), eda.Options{
			BinaryMaxDistinct:      c.BinaryMaxDistinct,
			CategoricalMaxDistinct: c.CategoricalMaxDistinct,
		}, logger)
		res, err := agent.Analyze(cmd.Context(), ds, sink)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if anaJSON {
			b, err := utils.PrettyJSON(res)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, string(b))
			return err
		}
		if err := writeReport(out, res); err != nil {
			return err
		}
		if sink != nil && len(res.Visuals) > 0 {
			fmt.Fprintf(out, "✓ Wrote %d plots to %s\n", len(res.Visuals), anaOutDir)
		}
		return nil
	},
}

func applySeparators(opt *analysis.Options) error {
	switch strings.ToLower(anaDelimiter) {
	case "":
	case ",", "comma":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";", "semicolon":
		opt.Delimiter = ';'
	case "|", "pipe":
		opt.Delimiter = '|'
	default:
		return fmt.Errorf("unsupported --delimiter: %s", anaDelimiter)
	}
	switch strings.ToLower(strings.TrimSpace(anaDecimal)) {
	case ",", "comma":
		opt.DecimalSeparator = ','
	case ".", "dot", "":
		opt.DecimalSeparator = '.'
	default:
		return fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", anaDecimal)
	}
	switch strings.ToLower(anaThousands) {
	case "":
	case ",":
		opt.ThousandsSeparator = ','
	case ".":
		opt.ThousandsSeparator = '.'
	case "space", " ":
		opt.ThousandsSeparator = ' '
	default:
		return fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", anaThousands)
	}
	if opt.ThousandsSeparator != 0 && opt.ThousandsSeparator == opt.DecimalSeparator {
		return fmt.Errorf("--thousands and --decimal must differ")
	}
	return nil
}

var (
	goodScore = color.New(color.FgGreen, color.Bold)
	fairScore = color.New(color.FgYellow, color.Bold)
	poorScore = color.New(color.FgRed, color.Bold)
)

func scoreLabel(score int) string {
	text := fmt.Sprintf("%d / 100", score)
	switch {
	case score >= 80:
		return goodScore.Sprint(text)
	case score >= 50:
		return fairScore.Sprint(text)
	default:
		return poorScore.Sprint(text)
	}
}

// writeReport prints the score, the insights, the agent log and a column table.
func writeReport(w io.Writer, res *eda.Result) error {
	fmt.Fprintf(w, "Dataset: %s (%d rows, %d columns)\n", res.Dataset, res.Rows, res.Cols)
	fmt.Fprintf(w, "Quality score: %s\n", scoreLabel(res.Score))
	for _, warn := range res.Warnings {
		fmt.Fprintln(w, "⚠ Warning:", warn)
	}

	fmt.Fprintln(w, "\nInsights:")
	for _, in := range res.Insights {
		fmt.Fprintln(w, "  •", in)
	}
	fmt.Fprintln(w, "\nAgent log:")
	for i, step := range res.ActivityLog {
		fmt.Fprintf(w, "  %2d. %s\n", i+1, step)
	}
	fmt.Fprintln(w)

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Column", "Type", "Missing", "Distinct", "Visual"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.PerColumn = []tw.Align{tw.AlignLeft, tw.AlignLeft, tw.AlignRight, tw.AlignRight, tw.AlignLeft}
	})
	var data [][]string
	for _, c := range res.Columns {
		data = append(data, []string{
			c.Name,
			string(c.Kind),
			strconv.Itoa(c.Missing),
			strconv.Itoa(c.Distinct),
			string(c.Visual),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Analysis completed in %v: %d missing cells, %d duplicate rows.\n", res.Duration.Round(time.Millisecond), res.Missing, res.Duplicates)
	return err
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutDir, "out", "o", "eda_plots", "directory for the generated plots")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "print the report as JSON")
	analyzeCmd.Flags().BoolVar(&anaNoPlots, "no-plots", false, "skip chart rendering")
	analyzeCmd.Flags().StringVar(&anaDelimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' | '|' (sniffed if omitted)")
	analyzeCmd.Flags().StringVar(&anaDecimal, "decimal", "", "decimal separator for numbers: '.'|'comma'")
	analyzeCmd.Flags().StringVar(&anaThousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space'")
	analyzeCmd.Flags().IntVar(&anaMaxRows, "max-rows", 0, "maximum rows to process (0 = unlimited, overrides config)")
}
