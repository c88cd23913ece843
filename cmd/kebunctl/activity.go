package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nutricomm/kebun-gizi/internal/backend"
)

// --------------------------------------------------------------------------
// activity command
// --------------------------------------------------------------------------

func activityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Log and list today's garden activities",
	}
	cmd.AddCommand(activityAddCmd())
	cmd.AddCommand(activityListCmd())
	return cmd
}

func activityAddCmd() *cobra.Command {
	var (
		userID      string
		userName    string
		kinds       []string
		other       string
		description string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log an activity (only for the member checked in today)",
		Long: "Log an activity for today. Known kinds:\n  " +
			strings.Join(backend.ActivityKinds, "\n  "),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := backend.JoinKinds(kinds, other)
			if kind == "" {
				return errors.New("pick at least one --kind or give --other")
			}
			return run(func(ctx context.Context, e *env) error {
				user := firstNonEmpty(userID, e.cfg.UserID)
				if user == "" {
					return errors.New("--user or USER_ID is required")
				}
				name := userName
				if name == "" {
					if entry, ok := e.roster.Roster().Lookup(user); ok {
						name = entry.DisplayName
					}
				}
				a, err := e.client.CreateActivity(ctx, user, e.cfg.GardenID, name, kind, description)
				if err != nil {
					return err
				}
				fmt.Printf("Logged %q for %s\n", a.Kind, firstNonEmpty(a.Date, "today"))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (default USER_ID)")
	cmd.Flags().StringVar(&userName, "name", "", "Display name (default from roster)")
	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil, "Activity kind, repeatable")
	cmd.Flags().StringVar(&other, "other", "", "Free-text activity kind")
	cmd.Flags().StringVarP(&description, "desc", "d", "", "Description")
	return cmd
}

func activityListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List today's activities for the garden",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, e *env) error {
				list, err := e.client.TodayActivities(ctx, e.cfg.GardenID)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Println("No activities logged today")
					return nil
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tMEMBER\tACTIVITY\tDESCRIPTION")
				for _, a := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						a.Time, firstNonEmpty(a.UserName, a.UserID), a.Kind, a.Description)
				}
				return w.Flush()
			})
		},
	}
}
