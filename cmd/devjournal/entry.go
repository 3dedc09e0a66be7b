package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
	"github.com/fyrsmithlabs/devjournal/internal/store"
)

var (
	logProject string
	logSession string
	logParent  string
	logDetail  string

	entriesProject string
	entriesSession string
	entriesType    string
	entriesSince   time.Duration
	entriesLimit   int
)

func init() {
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(entriesCmd)

	logCmd.Flags().StringVar(&logProject, "project", "", "Project id (defaults to the project of the working directory)")
	logCmd.Flags().StringVar(&logSession, "session", "", "Session id (defaults to the project's active session)")
	logCmd.Flags().StringVar(&logParent, "parent", "", "Parent entry id, to link reasoning steps")
	logCmd.Flags().StringVar(&logDetail, "detail", "", "Structured JSON payload")

	entriesCmd.Flags().StringVar(&entriesProject, "project", "", "Filter by project id")
	entriesCmd.Flags().StringVar(&entriesSession, "session", "", "Filter by session id")
	entriesCmd.Flags().StringVar(&entriesType, "type", "", "Filter by entry type (ERROR_LOG, AI_HYPOTHESIS, ...)")
	entriesCmd.Flags().DurationVar(&entriesSince, "since", 0, "Only entries newer than this (e.g. 24h)")
	entriesCmd.Flags().IntVar(&entriesLimit, "limit", 50, "Maximum entries to show")
}

var logCmd = &cobra.Command{
	Use:   "log <type> <summary>",
	Short: "Append a journal entry to the active session",
	Long: `Append one journal entry. The type is one of the journal's entry
kinds, for example:

  devjournal log ERROR_LOG "TypeError: Cannot read property 'email' of undefined"
  devjournal log AI_HYPOTHESIS "the auth mock leaks state between tests"
  devjournal log NOTE "rolled back the cache change"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		ctx := cmd.Context()
		projectID, err := app.resolveProject(logProject)
		if err != nil {
			return err
		}
		sessionID := logSession
		if sessionID == "" {
			// Entries may be logged outside a session; attach only when
			// one is active.
			if sess, err := app.store.ActiveSession(ctx, projectID); err != nil {
				return err
			} else if sess != nil {
				sessionID = sess.ID
			}
		}

		id, err := app.store.AppendEntry(ctx, &journal.Entry{
			ProjectID: projectID,
			SessionID: sessionID,
			ParentID:  logParent,
			Type:      journal.EntryType(strings.ToUpper(args[0])),
			Summary:   strings.Join(args[1:], " "),
			Detail:    logDetail,
		})
		if err != nil {
			return err
		}
		fmt.Printf("logged %s %s\n", args[0], dimStyle.Render(id))
		return nil
	},
}

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List journal entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		filter := store.EntryFilter{
			ProjectID: entriesProject,
			SessionID: entriesSession,
			Type:      journal.EntryType(strings.ToUpper(entriesType)),
			Limit:     entriesLimit,
		}
		if entriesSince > 0 {
			filter.Since = time.Now().Add(-entriesSince)
		}

		entries, err := app.store.ListEntries(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println(dimStyle.Render("no matching entries"))
			return nil
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				e.ID,
				humanTime(e.CreatedAt),
				string(e.Type),
				truncate(e.Summary, 60),
			})
		}
		table([]string{"ID", "TIME", "TYPE", "SUMMARY"}, rows)
		return nil
	},
}
