package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

var (
	pbTrusted bool
	pbStatus  string
	pbMinConf float64

	flakyWindow time.Duration

	reflectAll bool
)

func init() {
	rootCmd.AddCommand(playbooksCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(reflectCmd)
	rootCmd.AddCommand(flakyCmd)
	rootCmd.AddCommand(statsCmd)

	playbooksCmd.Flags().BoolVar(&pbTrusted, "trusted", false, "Only playbooks with confidence >= 0.7")
	playbooksCmd.Flags().StringVar(&pbStatus, "status", "", "Filter by status (DRAFT, ACTIVE, ARCHIVED)")
	playbooksCmd.Flags().Float64Var(&pbMinConf, "min-confidence", 0, "Minimum confidence")

	flakyCmd.Flags().DurationVar(&flakyWindow, "window", 30*24*time.Hour, "How far back to look")

	reflectCmd.Flags().BoolVar(&reflectAll, "all", false, "Run the full maintenance sweep")
}

var playbooksCmd = &cobra.Command{
	Use:   "playbooks",
	Short: "List troubleshooting playbooks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		minConf := pbMinConf
		if pbTrusted {
			minConf = 0.7
		}
		playbooks, err := app.store.ListPlaybooks(cmd.Context(),
			journal.PlaybookStatus(strings.ToUpper(pbStatus)), minConf)
		if err != nil {
			return err
		}
		if len(playbooks) == 0 {
			fmt.Println(dimStyle.Render("no playbooks yet; they grow from repeated successes"))
			return nil
		}

		rows := make([][]string, 0, len(playbooks))
		for _, pb := range playbooks {
			rows = append(rows, []string{
				confidence(pb.Confidence),
				string(pb.Status),
				fmt.Sprintf("%d/%d", pb.SuccessCount, pb.SuccessCount+pb.FailureCount),
				truncate(pb.Title, 48),
				truncate(pb.Signature, 56),
				humanTime(pb.LastUsedAt),
			})
		}
		table([]string{"CONF", "STATUS", "WINS", "TITLE", "SIGNATURE", "LAST USED"}, rows)
		return nil
	},
}

var patternsCmd = &cobra.Command{
	Use:   "patterns [query]",
	Short: "List universal error patterns",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		patterns, err := app.store.ListPatterns(cmd.Context(), query)
		if err != nil {
			return err
		}
		if len(patterns) == 0 {
			fmt.Println(dimStyle.Render("no patterns recorded"))
			return nil
		}

		rows := make([][]string, 0, len(patterns))
		for _, p := range patterns {
			rows = append(rows, []string{
				truncate(p.Signature, 56),
				p.BestStrategy,
				fmt.Sprintf("%d/%d", p.SuccessCount, p.Occurrences),
				fmt.Sprintf("%d", len(p.Projects)),
				humanDuration(p.AvgTimeToFix),
			})
		}
		table([]string{"SIGNATURE", "BEST STRATEGY", "WINS", "PROJECTS", "AVG FIX"}, rows)
		return nil
	},
}

var reflectCmd = &cobra.Command{
	Use:   "reflect [session-id]",
	Short: "Reflect on a session, or sweep everything pending with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		if reflectAll {
			rep, err := app.reflect.Maintain(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("sweep done: %d sessions reflected, %d playbooks decayed, %d archived\n",
				rep.SessionsReflected, rep.PlaybooksDecayed, rep.PlaybooksArchived)
			return nil
		}

		if len(args) != 1 {
			return fmt.Errorf("pass a session id or --all")
		}
		if err := app.reflect.ReflectSession(ctx, args[0]); err != nil {
			return err
		}
		sess, err := app.store.GetSession(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("session %s: %s", sess.ID, sess.ReflectionStatus)
		if sess.WinningStrategy != "" {
			fmt.Printf(", winning strategy %s", okStyle.Render(sess.WinningStrategy))
		}
		fmt.Println()
		return nil
	},
}

var flakyCmd = &cobra.Command{
	Use:   "flaky",
	Short: "List tests that both passed and failed recently",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		flaky, err := app.store.FlakyTests(cmd.Context(), flakyWindow)
		if err != nil {
			return err
		}
		if len(flaky) == 0 {
			fmt.Println(okStyle.Render("no flaky tests in the window"))
			return nil
		}

		rows := make([][]string, 0, len(flaky))
		for _, f := range flaky {
			rows = append(rows, []string{
				warnStyle.Render(fmt.Sprintf("%.1f%%", f.FlakinessPct)),
				fmt.Sprintf("%d/%d", f.Failures, f.Passes+f.Failures),
				truncate(f.Name, 56),
				f.File,
				humanTime(f.LastSeen),
			})
		}
		table([]string{"FLAKINESS", "FAILS", "TEST", "FILE", "LAST SEEN"}, rows)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summary statistics over the whole journal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		st, err := app.store.Stats(cmd.Context())
		if err != nil {
			return err
		}

		title("journal stats")
		fmt.Printf("sessions:        %d total, %d completed, %d abandoned, %d analyzed\n",
			st.TotalSessions, st.CompletedSessions, st.AbandonedSessions, st.AnalyzedSessions)
		fmt.Printf("entries:         %d\n", st.TotalEntries)
		fmt.Printf("test runs:       %d (%.1f%% passing)\n", st.TotalTestRuns, st.PassRate*100)
		if st.AnalyzedSessions > 0 {
			fmt.Printf("hypotheses:      %.1f per analyzed session, %.1f%% fixed on the first try\n",
				st.AvgHypotheses, st.FirstTrySuccessPct)
		}
		if len(st.TopStrategies) > 0 {
			fmt.Println()
			rows := make([][]string, 0, len(st.TopStrategies))
			for _, s := range st.TopStrategies {
				rows = append(rows, []string{
					s.Strategy,
					fmt.Sprintf("%d", s.Successes),
					fmt.Sprintf("%.1f%%", s.SuccessRate*100),
				})
			}
			table([]string{"STRATEGY", "WINS", "SUCCESS RATE"}, rows)
		}
		return nil
	},
}
