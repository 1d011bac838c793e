package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nimda/routeros-brute/internal/core"
	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/internal/modules/mikrotik/api"
	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Send one /login to the API port and print the raw reply",
	Long: `probe sends a single plaintext /login and prints every reply sentence.
It tells apart routers that accept plaintext logins (RouterOS 6.43+) from
ones that answer with a legacy MD5 challenge. The challenge is never answered.`,
	RunE: runProbe,
}

func init() {
	f := probeCmd.Flags()
	f.StringP("target", "t", "", "Target router IP address or hostname[:port]")
	f.IntP("api-port", "T", api.DefaultPort, "RouterOS API port")
	f.Bool("ssl", false, "Probe api-ssl instead of the plain API")
	f.StringP("user", "U", "admin", "Username to send")
	f.StringP("passw", "P", "", "Password to send")
	f.Duration("timeout", 5*time.Second, "Connection timeout")
	f.String("charset", "", "Word charset: utf-8 (default), cp1252, latin1")
	_ = probeCmd.MarkFlagRequired("target")
}

func runProbe(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	spec, _ := f.GetString("target")
	target, err := core.ParseTarget(spec)
	if err != nil {
		return err
	}

	cfg := interfaces.NewClientConfig(target.Host)
	cfg.TLS, _ = f.GetBool("ssl")
	cfg.Timeout, _ = f.GetDuration("timeout")
	cfg.Charset, _ = f.GetString("charset")
	cfg.Port, _ = f.GetInt("api-port")
	if cfg.TLS && !f.Changed("api-port") {
		cfg.Port = api.DefaultTLSPort
	}
	if target.Port != 0 {
		cfg.Port = target.Port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := api.NewClientFromConfig(*cfg)
	if err != nil {
		return err
	}
	user, _ := f.GetString("user")
	pass, _ := f.GetString("passw")

	res, err := client.Probe(cmd.Context(), user, pass)
	if err != nil {
		return fmt.Errorf("probe %s: %w", client.Address(), err)
	}
	printProbe(cmd.OutOrStdout(), res)
	return nil
}

func printProbe(w io.Writer, res *api.ProbeResult) {
	fmt.Fprintf(w, "Probed %s in %s\n", res.Address, res.Elapsed.Round(time.Millisecond))
	for i, words := range res.Sentences {
		fmt.Fprintf(w, "  <<< %d: %s\n", i+1, strings.Join(words, " "))
	}

	switch {
	case res.Legacy:
		fmt.Fprintln(w, "Login style: legacy MD5 challenge (RouterOS < 6.43)")
	case res.First == api.ReplyPlainSuccess:
		fmt.Fprintln(w, "Login style: plaintext, credential accepted")
	case res.First == api.ReplyTrap || res.First == api.ReplyRejected:
		fmt.Fprintln(w, "Login style: plaintext, credential rejected")
	default:
		fmt.Fprintln(w, "Login style: unknown, reply is not a RouterOS login answer")
	}
}
