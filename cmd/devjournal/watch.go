package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devjournal/internal/detector"
	"github.com/fyrsmithlabs/devjournal/internal/ingest"
	"github.com/fyrsmithlabs/devjournal/internal/journal"
	"github.com/fyrsmithlabs/devjournal/internal/reflector"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch registered projects for changes and test reports",
	Long: `Watch runs the background side of the journal: a file watcher over
every registered project root, a report watcher over the configured
report directories, and (if enabled) the periodic maintenance sweep.
Runs until interrupted; pending batched changes are flushed on shutdown.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		watcher, err := detector.NewWatcher(app.catalog, changeSink(app),
			app.logger.Named("detector"),
			detector.WithDebounce(app.cfg.Watch.Debounce),
			detector.WithFlushInterval(app.cfg.Watch.FlushInterval))
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()

		if len(app.cfg.Watch.ReportDirs) > 0 {
			reports, err := ingest.NewWatcher(app.ingestor, app.cfg.Watch.ReportDirs,
				app.logger.Named("reports"))
			if err != nil {
				return err
			}
			if err := reports.Start(ctx); err != nil {
				return err
			}
			defer reports.Stop()
		}

		if app.cfg.Maintenance.Enabled {
			sched, err := reflector.NewScheduler(app.reflect,
				app.logger.Named("maintenance"),
				reflector.WithInterval(app.cfg.Maintenance.SweepInterval))
			if err != nil {
				return err
			}
			if err := sched.Start(); err != nil {
				return err
			}
			defer sched.Stop()
		}

		fmt.Println(okStyle.Render("watching; ctrl-c to stop"))
		<-ctx.Done()
		fmt.Println(dimStyle.Render("shutting down"))
		return nil
	},
}

// changeDetail is the structured payload stored on FILE_CHANGE entries.
type changeDetail struct {
	Path        string `json:"path"`
	Change      string `json:"change"`
	Category    string `json:"category"`
	Significant bool   `json:"significant"`
}

// changeSink turns batched change events into FILE_CHANGE journal entries,
// attached to the project's active session when one exists.
func changeSink(app *app) detector.Sink {
	return func(ctx context.Context, events []detector.ChangeEvent) {
		for _, ev := range events {
			sessionID := ""
			if sess, err := app.store.ActiveSession(ctx, ev.ProjectID); err == nil && sess != nil {
				sessionID = sess.ID
			}
			detail, err := json.Marshal(changeDetail{
				Path:        ev.Path,
				Change:      string(ev.Type),
				Category:    string(ev.Category),
				Significant: ev.Significant,
			})
			if err != nil {
				continue
			}
			if _, err := app.store.AppendEntry(ctx, &journal.Entry{
				ProjectID: ev.ProjectID,
				SessionID: sessionID,
				Type:      journal.EntryFileChange,
				Summary:   fmt.Sprintf("%s %s (%s)", ev.Type, ev.Path, ev.Category),
				Detail:    string(detail),
				CreatedAt: ev.DetectedAt,
			}); err != nil {
				app.logger.Warn("recording file change",
					zap.String("path", ev.Path), zap.Error(err))
			}
		}
	}
}
