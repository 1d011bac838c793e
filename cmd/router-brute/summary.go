package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nimda/routeros-brute/internal/core"
)

// printSummary writes the final report with one row per found credential
func printSummary(w io.Writer, target string, s *core.Summary) {
	fmt.Fprintf(w, "\n=== Attack Summary (%s) ===\n", target)

	if len(s.Successes) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ORD\tUSERNAME\tPASSWORD\tSERVICES")
		for i, success := range s.Successes {
			password := success.Credential.Password
			if password == "" {
				password = "<empty>"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, success.Credential.Username, password, strings.Join(success.Services, ","))
		}
		tw.Flush()
	} else {
		fmt.Fprintln(w, "No valid credentials found")
	}

	// successes include those an earlier run found in the skipped prefix
	var rate float64
	if covered := s.StartIndex + s.Tested; covered > 0 {
		rate = float64(len(s.Successes)) / float64(covered) * 100
	}
	fmt.Fprintf(w, "Tested:       %d (of %d, %d skipped from earlier run)\n", s.Tested, s.Total, s.StartIndex)
	fmt.Fprintf(w, "Successes:    %d (%.2f%%)\n", len(s.Successes), rate)
	fmt.Fprintf(w, "Rejected:     %d\n", s.Failures)
	fmt.Fprintf(w, "Errors:       %d (%d transport)\n", s.Errors, s.TransportErrors)
	fmt.Fprintf(w, "Duration:     %s\n", core.FormatDuration(s.Duration))
	if s.Interrupted {
		fmt.Fprintln(w, "Status:       interrupted")
	}
	if s.LikelyUnreachable() {
		fmt.Fprintln(w, "Hint:         most attempts failed at the transport level; the target is likely unreachable or filtering the API port")
	}
	fmt.Fprintln(w, strings.Repeat("=", 30))
}
