package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

var (
	sessProject  string
	sessAbandon  bool
	sessSummary  string
	sessFixEntry string
	sessLimit    int
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionEndCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)

	sessionCmd.PersistentFlags().StringVar(&sessProject, "project", "", "Project id (defaults to the project of the working directory)")
	sessionEndCmd.Flags().BoolVar(&sessAbandon, "abandon", false, "Close the session without learning from it")
	sessionEndCmd.Flags().StringVar(&sessSummary, "summary", "", "What happened, in one line")
	sessionEndCmd.Flags().StringVar(&sessFixEntry, "fix-entry", "", "Entry id of the hypothesis that turned out to be the fix")
	sessionListCmd.Flags().IntVar(&sessLimit, "limit", 20, "Maximum sessions to show")
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Start, end and inspect work sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start <goal>",
	Short: "Start a debugging session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		projectID, err := app.resolveProject(sessProject)
		if err != nil {
			return err
		}
		sess, err := app.store.StartSession(cmd.Context(), projectID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("session %s started: %s\n", okStyle.Render(sess.ID), sess.Goal)
		return nil
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end [session-id]",
	Short: "End a session and reflect on what was learned",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		var sessionID string
		if len(args) == 1 {
			sessionID = args[0]
		} else if sessionID, err = app.resolveSession(cmd.Context(), "", sessProject); err != nil {
			return err
		}

		status := journal.SessionCompleted
		if sessAbandon {
			status = journal.SessionAbandoned
		}
		sess, err := app.reflect.CompleteSession(cmd.Context(), sessionID, status, sessSummary, sessFixEntry)
		if err != nil {
			return err
		}

		fmt.Printf("session %s %s\n", sess.ID, strings.ToLower(string(sess.Status)))
		if sess.ReflectionStatus == journal.ReflectionAnalyzed {
			if sess.WinningStrategy != "" {
				fmt.Printf("winning strategy: %s (hypothesis %s, fixed in %s)\n",
					okStyle.Render(sess.WinningStrategy), sess.FixEntryID, humanDuration(sess.TimeToFix))
			} else {
				fmt.Println(dimStyle.Render("no passing test run; nothing reinforced"))
			}
		}
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		sessions, err := app.store.RecentSessions(cmd.Context(), sessLimit)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println(dimStyle.Render("no sessions yet"))
			return nil
		}

		rows := make([][]string, 0, len(sessions))
		for _, s := range sessions {
			rows = append(rows, []string{
				s.ID,
				truncate(s.Goal, 40),
				string(s.Status),
				string(s.ReflectionStatus),
				s.WinningStrategy,
				humanTime(s.StartedAt),
			})
		}
		table([]string{"ID", "GOAL", "STATUS", "REFLECTION", "STRATEGY", "STARTED"}, rows)
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session and its journal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		sess, err := app.store.GetSession(ctx, args[0])
		if err != nil {
			return err
		}

		title(fmt.Sprintf("session %s: %s", sess.ID, sess.Goal))
		fmt.Printf("status %s, reflection %s, started %s\n",
			sess.Status, sess.ReflectionStatus, humanTime(sess.StartedAt))
		if sess.WinningStrategy != "" {
			fmt.Printf("winning strategy %s, time to fix %s\n",
				okStyle.Render(sess.WinningStrategy), humanDuration(sess.TimeToFix))
		}

		entries, err := app.store.EntriesForSession(ctx, sess.ID)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				humanTime(e.CreatedAt),
				string(e.Type),
				truncate(e.Summary, 60),
				string(e.Outcome),
				joinTags(e.StrategyTags),
			})
		}
		table([]string{"TIME", "TYPE", "SUMMARY", "OUTCOME", "TAGS"}, rows)
		return nil
	},
}
