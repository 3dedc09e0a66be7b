package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

func init() {
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <report-file>...",
	Short: "Ingest test report files (framework JSON or JUnit XML)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		var failed bool
		for _, path := range args {
			run, err := app.ingestor.IngestFile(cmd.Context(), path)
			if err != nil {
				failed = true
				fmt.Println(errorStyle.Render(fmt.Sprintf("%s: %v", path, err)))
				continue
			}
			verdict := okStyle.Render("PASSED")
			if run.Status != journal.TestPassed {
				verdict = errorStyle.Render(string(run.Status))
			}
			fmt.Printf("%s: %s, %d/%d passed, %d skipped (%s)\n",
				path, verdict, run.Passed, run.Total, run.Skipped, humanDuration(run.Duration))
		}
		if failed {
			return fmt.Errorf("some reports could not be ingested")
		}
		return nil
	},
}
