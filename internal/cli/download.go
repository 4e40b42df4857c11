package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/thruflo/gamecheck/internal/stream"
)

var downloadOutput string

var downloadCmd = &cobra.Command{
	Use:   "download pdf|csv",
	Short: "Save the test history report",
	Long: `Downloads the backend's test history as a PDF or CSV report.

By default the PDF is saved as test-history.pdf and the CSV as
test-history-<timestamp>.csv in the current directory.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(stream.DownloadPDF), string(stream.DownloadCSV)},
	RunE:      runDownload,
}

func init() {
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output file")
	rootCmd.AddCommand(downloadCmd)
}

// defaultReportName returns the file name used when --output is not set.
func defaultReportName(kind stream.DownloadKind, now time.Time) string {
	if kind == stream.DownloadCSV {
		return fmt.Sprintf("test-history-%s.csv", now.Format("20060102-150405"))
	}
	return "test-history.pdf"
}

func runDownload(cmd *cobra.Command, args []string) error {
	kind := stream.DownloadKind(args[0])
	path := downloadOutput
	if path == "" {
		path = defaultReportName(kind, time.Now())
	}

	ctx := commandContext(cmd)
	e, err := setup(ctx)
	if err != nil {
		return err
	}

	// Write to a temp file first so a failed download leaves nothing behind.
	tmp := path + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	n, err := e.client.Download(ctx, kind, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to download %s report: %w", kind, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", path, n)
	return nil
}
