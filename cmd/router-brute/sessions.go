package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/internal/session"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		records, err := store.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, "No sessions found")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tTARGET\tSERVICES\tSTATUS\tPROGRESS\tSUCCESSES\tLAST UPDATE\tRESUMABLE")
		for _, rec := range records {
			st := rec.Stats()
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d (%.1f%%)\t%d\t%s\t%t\n",
				st.SessionID, st.Target, strings.Join(st.Services, ","), st.Status,
				st.Tested, st.Total, st.Progress, st.Successes,
				rec.LastUpdate.Local().Format(time.DateTime), store.ShouldResume(rec))
		}
		return tw.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show details of one session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		rec, err := store.Load(args[0])
		if err != nil {
			return err
		}
		st := rec.Stats()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session:        %s\n", st.SessionID)
		fmt.Fprintf(out, "Target:         %s (%s)\n", st.Target, strings.Join(st.Services, ","))
		fmt.Fprintf(out, "Status:         %s\n", st.Status)
		fmt.Fprintf(out, "Progress:       %d/%d (%.1f%%), %d remaining\n", st.Tested, st.Total, st.Progress, st.Remaining)
		fmt.Fprintf(out, "Rejected:       %d\n", st.Failed)
		fmt.Fprintf(out, "Avg/attempt:    %s\n", st.AveragePerAttempt.Round(time.Millisecond))
		if st.EstimatedCompletion != nil {
			fmt.Fprintf(out, "ETA:            %s\n", st.EstimatedCompletion.Local().Format(time.DateTime))
		}
		for _, s := range rec.SuccessfulCredentials {
			line := fmt.Sprintf("Found:          %s:%s [%s]", s.Username, s.Password, strings.Join(s.Services, ","))
			if s.Validation != "" {
				line += " " + s.Validation
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

var sessionsCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete sessions older than --days",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		if days < 0 {
			return &interfaces.ValidationError{Field: "days", Message: "must not be negative"}
		}
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		removed, err := store.CleanupOlderThan(days)
		if err != nil {
			return err
		}
		zlog.Info().Int("removed", removed).Int("days", days).Msg("Cleaned up old sessions")
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d session(s)\n", removed)
		return nil
	},
}

func init() {
	sessionsCmd.PersistentFlags().String("sessions-dir", session.DefaultDir, "Directory for session files")
	sessionsCleanCmd.Flags().Int("days", 30, "Delete sessions not updated for this many days")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsCleanCmd)
}

func openStore(cmd *cobra.Command) (*session.Store, error) {
	dir, _ := cmd.Flags().GetString("sessions-dir")
	return session.NewStore(dir)
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List supported login services",
	Run: func(cmd *cobra.Command, args []string) {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SERVICE\tPORT\tDESCRIPTION")
		for _, name := range interfaces.DefaultRegistry.List() {
			info, _ := interfaces.DefaultRegistry.Get(name)
			fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Name, info.DefaultPort, info.Description)
		}
		tw.Flush()
	},
}
