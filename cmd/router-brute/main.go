package main

import (
	"os"

	"github.com/nimda/routeros-brute/pkg/duallog"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	// login services register themselves with the service registry
	_ "github.com/nimda/routeros-brute/internal/modules/mikrotik/api"
	_ "github.com/nimda/routeros-brute/internal/modules/mikrotik/ftp"
	_ "github.com/nimda/routeros-brute/internal/modules/mikrotik/rest"
	_ "github.com/nimda/routeros-brute/internal/modules/mikrotik/webfig"
)

var (
	debugMode bool
	traceMode bool
)

var rootCmd = &cobra.Command{
	Use:           "router-brute",
	Short:         "MikroTik RouterOS credential tester",
	Long:          "router-brute tests RouterOS logins over the binary API (plain or TLS), REST, WebFig and FTP, with resumable sessions.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := verbosity()
		duallog.Setup(level)
		switch level {
		case zerolog.TraceLevel:
			zlog.Trace().Msg("Trace logging on, passwords will appear in the log")
		case zerolog.DebugLevel:
			zlog.Debug().Msg("Debug logging on")
		}
	},
}

// verbosity maps --debug/--trace to a log level; trace wins
func verbosity() zerolog.Level {
	switch {
	case traceMode:
		return zerolog.TraceLevel
	case debugMode:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&debugMode, "debug", false, "Debug logging")
	pf.BoolVar(&traceMode, "trace", false, "Trace logging, includes every word on the wire")

	rootCmd.AddCommand(attackCmd, sessionsCmd, servicesCmd, probeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zlog.Error().Err(err).Str("command", os.Args[0]).Msg("router-brute failed")
		os.Exit(1)
	}
}
