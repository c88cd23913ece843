package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nutricomm/kebun-gizi/internal/backend"
	"github.com/nutricomm/kebun-gizi/internal/rotation"
)

// --------------------------------------------------------------------------
// schedule command
// --------------------------------------------------------------------------

func scheduleCmd() *cobra.Command {
	var (
		days   int
		date   string
		userID string
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the duty rotation calendar",
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseDate(date)
			if err != nil {
				return err
			}
			return run(func(ctx context.Context, e *env) error {
				if days < 0 {
					days = e.cfg.ScheduleDays
				}
				var window []rotation.Assignment
				if userID != "" {
					window, err = rotation.ScheduleFor(userID, ref, e.roster.Roster(), days)
				} else {
					window, err = rotation.ScheduleWindow(ref, e.roster.Roster(), days)
				}
				if err != nil {
					return err
				}
				printAssignments(window)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", -1, "Number of days (default SCHEDULE_DAYS)")
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&userID, "user", "", "Only show days of this participant")
	return cmd
}

func printAssignments(as []rotation.Assignment) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tDAY\tSLOT\tPARTICIPANT\tNAME\tSTATUS")
	for _, a := range as {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			a.DateString(), a.Date.Weekday(), a.Slot, a.ParticipantID, a.DisplayName, a.Status)
	}
	w.Flush()
}

// --------------------------------------------------------------------------
// duty command
// --------------------------------------------------------------------------

func dutyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duty",
		Short: "Today's duty and attendance",
	}
	cmd.AddCommand(dutyTodayCmd())
	cmd.AddCommand(dutyCheckCmd())
	cmd.AddCommand(dutyStatusCmd())
	cmd.AddCommand(dutyCheckInCmd())
	cmd.AddCommand(dutyCheckOutCmd())
	return cmd
}

func dutyTodayCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Show who is on duty",
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseDate(date)
			if err != nil {
				return err
			}
			return run(func(ctx context.Context, e *env) error {
				a, err := rotation.DutyEntryForToday(ref, e.roster.Roster())
				if err != nil {
					return err
				}
				fmt.Printf("%s: %s (%s, slot %d)\n", a.DateString(), a.DisplayName, a.ParticipantID, a.Slot)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default today)")
	return cmd
}

func dutyCheckCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "check USER_ID",
		Short: "Report whether a participant is on duty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseDate(date)
			if err != nil {
				return err
			}
			return run(func(ctx context.Context, e *env) error {
				onDuty, err := rotation.IsOnDutyToday(args[0], ref, e.roster.Roster())
				if err != nil {
					return err
				}
				if onDuty {
					fmt.Printf("%s is on duty\n", args[0])
				} else {
					fmt.Printf("%s is not on duty\n", args[0])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default today)")
	return cmd
}

func dutyStatusCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's attendance from the backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, e *env) error {
				user := firstNonEmpty(userID, e.cfg.UserID)
				st, err := e.client.AttendanceStatus(ctx, user, e.cfg.GardenID)
				if err != nil {
					return err
				}
				switch {
				case st.HasCheckedOut:
					fmt.Printf("Checked in and out by %s\n", st.CheckedInBy())
				case st.HasCheckedIn:
					fmt.Printf("Checked in by %s\n", st.CheckedInBy())
				default:
					fmt.Println("Nobody has checked in today")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (default USER_ID)")
	return cmd
}

func dutyCheckInCmd() *cobra.Command {
	var (
		userID   string
		userName string
		note     string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Check in for today's duty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, e *env) error {
				user := firstNonEmpty(userID, e.cfg.UserID)
				if user == "" {
					return errors.New("--user or USER_ID is required")
				}
				roster := e.roster.Roster()
				today, err := rotation.DutyEntryForToday(time.Now(), roster)
				if err != nil {
					return err
				}
				if today.ParticipantID != user && !force {
					return fmt.Errorf("%s is not on duty today (%s is); use --force to check in anyway",
						user, today.DisplayName)
				}
				name := userName
				if name == "" {
					if entry, ok := roster.Lookup(user); ok {
						name = entry.DisplayName
					}
				}

				err = e.client.CheckIn(ctx, user, e.cfg.GardenID, name, note)
				if errors.Is(err, backend.ErrAlreadyCheckedIn) {
					fmt.Println(err)
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Printf("Checked in %s for %s\n", user, today.DateString())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (default USER_ID)")
	cmd.Flags().StringVar(&userName, "name", "", "Display name (default from roster)")
	cmd.Flags().StringVar(&note, "note", "", "Optional note")
	cmd.Flags().BoolVar(&force, "force", false, "Check in even when not on duty today")
	return cmd
}

func dutyCheckOutCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Check out of today's duty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, e *env) error {
				user := firstNonEmpty(userID, e.cfg.UserID)
				if user == "" {
					return errors.New("--user or USER_ID is required")
				}
				if err := e.client.CheckOut(ctx, user, e.cfg.GardenID); err != nil {
					return err
				}
				fmt.Printf("Checked out %s\n", user)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (default USER_ID)")
	return cmd
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
