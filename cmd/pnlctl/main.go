// Command pnlctl builds the script-wise P&L report offline from broker trade
// files, without a server or database.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/optpnl/pnl-engine/internal/export"
	"github.com/optpnl/pnl-engine/internal/ingest"
	"github.com/optpnl/pnl-engine/internal/model"
	"github.com/optpnl/pnl-engine/internal/report"
)

var errRejected = errors.New("one or more rows were rejected")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pnlctl",
		Short:         "Options position matching and realized P&L",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newReportCmd())
	return root
}

func newReportCmd() *cobra.Command {
	var (
		out          string
		format       string
		failOnReject bool
	)

	cmd := &cobra.Command{
		Use:   "report <file>...",
		Short: "Build the script-wise summary from trade files",
		Long: `Build the script-wise summary from one or more broker trade files.

Files are applied in the order given. Each must be .xlsx, .xlsm or .csv and
carry the columns Symbol/ScripId, Ser/Exp/Group, Strike Price, Option Type,
B/S, Quantity and Price. Without a Trade Date column the date is taken from
an 8-digit DDMMYYYY run in the file name.`,
		Example: `  pnlctl report TRADES01072024.xlsx TRADES02072024.xlsx --format xlsx --out summary.xlsx
  pnlctl report trades.csv --fail-on-reject`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format == "" {
				format = formatFromOut(out)
			}
			if format != "json" && format != "xlsx" {
				return fmt.Errorf("unknown format %q (want json or xlsx)", format)
			}

			history, rejected, err := load(args, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			rep := report.Build(history)

			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := writeClose(f, rep, format); err != nil {
					return fmt.Errorf("%s: %w", out, err)
				}
			} else if err := write(cmd.OutOrStdout(), rep, format); err != nil {
				return err
			}

			if failOnReject && rejected > 0 {
				return fmt.Errorf("%w: %d", errRejected, rejected)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: json or xlsx (default from --out extension, else json)")
	cmd.Flags().BoolVar(&failOnReject, "fail-on-reject", false, "Exit non-zero if any row was rejected")
	return cmd
}

// load parses files in order and returns the combined history. Rejected rows
// are reported on errw.
func load(paths []string, errw io.Writer) ([]model.TradeExecution, int, error) {
	var (
		history  []model.TradeExecution
		rejected int
	)
	for _, p := range paths {
		res, err := parseFile(p)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", p, err)
		}
		for _, rj := range res.Rejected {
			fmt.Fprintf(errw, "%s: row %d: %s\n", p, rj.Row, rj.Reason)
		}
		rejected += len(res.Rejected)
		history = append(history, res.Executions...)
	}
	return history, rejected, nil
}

func parseFile(path string) (*ingest.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.Parse(f, filepath.Base(path))
}

func write(w io.Writer, rep *report.Report, format string) error {
	if format == "xlsx" {
		return export.WriteXLSX(w, rep)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// writeClose writes the report and closes w. A failed Close means the file
// may be truncated, so it is returned like a write error.
func writeClose(w io.WriteCloser, rep *report.Report, format string) (err error) {
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	return write(w, rep, format)
}

func formatFromOut(out string) string {
	if filepath.Ext(out) == ".xlsx" {
		return "xlsx"
	}
	return "json"
}
