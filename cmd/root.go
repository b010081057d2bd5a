package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bytebuggy/bytebuggy/internal/attack"
	"github.com/bytebuggy/bytebuggy/internal/clock"
	"github.com/bytebuggy/bytebuggy/internal/config"
	"github.com/bytebuggy/bytebuggy/internal/handshake"
	"github.com/bytebuggy/bytebuggy/internal/iface"
	"github.com/bytebuggy/bytebuggy/internal/result"
	"github.com/bytebuggy/bytebuggy/internal/scan"
	"github.com/bytebuggy/bytebuggy/internal/session"
	"github.com/bytebuggy/bytebuggy/internal/telemetry"
	"github.com/bytebuggy/bytebuggy/internal/tools"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
	"github.com/bytebuggy/bytebuggy/ui"
)

// runOptions are flags that do not live in config.Config.
type runOptions struct {
	wepAttacks   []string
	band         string
	lockDir      string
	keepCaptures bool
}

func Execute(version string) error {
	cfg := config.DefaultConfig()
	opts := &runOptions{}

	rootCmd := &cobra.Command{
		Use:   "bytebuggy",
		Short: "Automated wireless network auditor",
		Long:  "bytebuggy v" + version + " - scans for access points and runs WEP and WPA attacks against the ones you pick.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cfg.Output.Verbose)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("wep-attacks") {
				techs, err := wifi.ParseWEPTechniques(opts.wepAttacks)
				if err != nil {
					return err
				}
				cfg.Attack.WEP.Techniques = techs
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runMain(cmd.Context(), cfg, opts, version)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Shared by the subcommands
	pf := rootCmd.PersistentFlags()
	pf.CountVarP(&cfg.Output.Verbose, "verbose", "v", "Verbose logging (-v info, -vv debug)")
	pf.StringVarP(&cfg.Output.ResultsFile, "output", "o", cfg.Output.ResultsFile, "Results file")
	pf.StringVar(&cfg.Output.HandshakeDir, "hs-dir", cfg.Output.HandshakeDir, "Handshake directory")
	pf.StringVarP(&cfg.Wordlist, "wordlist", "w", cfg.Wordlist, "Wordlist for offline cracking")

	f := rootCmd.Flags()
	f.StringVarP(&cfg.Interface, "interface", "i", "", "Wireless interface to use")
	f.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9110)")
	f.StringVar(&cfg.Output.SessionFile, "session-file", cfg.Output.SessionFile, "Where the running session is recorded")
	f.StringVar(&opts.lockDir, "lock-dir", os.TempDir(), "Directory for interface lock files")
	f.BoolVar(&opts.keepCaptures, "keep-captures", false, "Leave airodump-ng capture directories behind")

	// Scan flags
	f.StringVar(&cfg.Scan.BSSID, "bssid", "", "Attack only this BSSID")
	f.StringVar(&cfg.Scan.ESSID, "essid", "", "Attack only this ESSID")
	f.IntVarP(&cfg.Scan.Channel, "channel", "c", 0, "Scan a single channel")
	f.StringVar(&opts.band, "band", "", "airodump-ng band when no channel is set (a, bg, abg)")
	f.BoolVar(&cfg.Scan.WPSOnly, "wps", false, "Only show targets advertising WPS")
	f.DurationVar(&cfg.Scan.Pillage, "pillage", 0, "Scan for this long, then attack everything found")
	f.BoolVar(&cfg.Scan.ClientsOnly, "clients-only", false, "Only show targets with associated clients")

	// Attack selection
	f.BoolVar(&cfg.Attack.WEPOnly, "wep-only", false, "Only attack WEP networks")
	f.BoolVar(&cfg.Attack.WPAOnly, "wpa-only", false, "Only attack WPA networks")

	// WEP flags
	f.IntVar(&cfg.Attack.WEP.PPS, "wep-pps", cfg.Attack.WEP.PPS, "Packets per second to inject")
	f.IntVar(&cfg.Attack.WEP.CrackAtIVs, "wep-crack-at-ivs", cfg.Attack.WEP.CrackAtIVs, "Start cracking after this many IVs")
	f.DurationVar(&cfg.Attack.WEP.RestartStaleIVs, "wep-restart-stale-ivs", cfg.Attack.WEP.RestartStaleIVs, "Restart injection when IVs stall this long")
	f.DurationVar(&cfg.Attack.WEP.RestartRecovery, "wep-restart-aircrack", cfg.Attack.WEP.RestartRecovery, "Restart aircrack-ng after this long")
	f.BoolVar(&cfg.Attack.WEP.KeepIVs, "wep-keep-ivs", false, "Crack with IVs from every capture session, not just the latest")
	f.BoolVar(&cfg.Attack.WEP.RequireFakeAuth, "require-fakeauth", false, "Abandon WEP attacks when fake authentication fails")
	f.DurationVar(&cfg.Attack.WEP.Timeout, "wep-timeout", cfg.Attack.WEP.Timeout, "Time limit per WEP technique (0 for none)")
	f.StringSliceVar(&opts.wepAttacks, "wep-attacks", techniqueNames(cfg.Attack.WEP.Techniques), "WEP techniques in the order to try them")

	// WPA flags
	f.DurationVar(&cfg.Attack.WPA.DeauthInterval, "wpadt", cfg.Attack.WPA.DeauthInterval, "Time between deauth rounds")
	f.DurationVar(&cfg.Attack.WPA.HandshakeTimeout, "wpat", cfg.Attack.WPA.HandshakeTimeout, "Handshake capture timeout")
	f.IntVar(&cfg.Attack.WPA.DeauthCount, "num-deauths", cfg.Attack.WPA.DeauthCount, "Deauth packets per round")
	f.BoolVar(&cfg.Attack.WPA.NoDeauth, "no-deauths", false, "Capture passively, never deauth")
	f.BoolVar(&cfg.Attack.WPA.IgnoreOldHandshakes, "new-hs", false, "Capture a new handshake even if one is stored")

	rootCmd.AddCommand(crackedCmd(cfg))
	rootCmd.AddCommand(checkCmd(cfg))
	rootCmd.AddCommand(crackCmd(cfg))
	rootCmd.AddCommand(depsCmd())

	return rootCmd.Execute()
}

func techniqueNames(techs []wifi.WEPTechnique) []string {
	names := make([]string, len(techs))
	for i, t := range techs {
		names[i] = t.String()
	}
	return names
}

// setupLogging installs the default slog logger: warn, -v info, -vv debug.
func setupLogging(verbose int) {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func runMain(parent context.Context, cfg *config.Config, opts *runOptions, version string) error {
	console := ui.NewConsole(os.Stdin, os.Stdout)
	console.Banner(version)

	deps := tools.NewDependencyChecker()
	fmt.Println("  Dependency Check:")
	fmt.Print(tools.FormatStatus(deps.CheckAll()))
	fmt.Println()

	// Platform gate: must be Linux for WiFi attacks
	if !iface.IsLinux() {
		return errors.New("WiFi attacks require Linux with a monitor-mode capable adapter.\n" +
			"  You can still use these commands on macOS:\n" +
			"    bytebuggy cracked    - view cracked networks\n" +
			"    bytebuggy check      - validate handshake captures\n" +
			"    bytebuggy crack      - crack stored handshakes offline\n" +
			"    bytebuggy deps       - check tool availability")
	}
	if os.Geteuid() != 0 {
		return errors.New("bytebuggy must be run as root (try: sudo bytebuggy)")
	}
	if missing := deps.MissingRequired(); len(missing) > 0 {
		return fmt.Errorf("missing required tools: %v\n  Install with: %s", missing, tools.InstallHint())
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// SIGINT interrupts the current scan or attack; SIGTERM ends the run.
	var current atomic.Pointer[session.Session]
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				sess := current.Load()
				if sig == syscall.SIGINT && sess != nil {
					sess.Interrupt()
					continue
				}
				cancel()
			}
		}
	}()

	mgr := iface.NewManager(opts.lockDir)
	lease, err := mgr.Acquire(ctx, cfg.Interface)
	if err != nil {
		return fmt.Errorf("interface: %w", err)
	}
	defer func() {
		console.Info("Restoring %s", lease.Name())
		if err := lease.Release(context.Background()); err != nil {
			slog.Warn("could not restore interface", "iface", lease.Name(), "err", err)
		}
	}()
	console.Info("Using %s (%s)", lease.Name(), lease.MAC())

	if prev, err := session.Load(cfg.Output.SessionFile); err == nil {
		slog.Info("previous session was not finished", "id", prev.ID, "started", prev.StartTime, "target", prev.CurrentTarget)
	}
	sess := session.New(lease.Name(), lease.MAC(), cfg.Output.SessionFile)
	if err := sess.Save(); err != nil {
		slog.Warn("could not write session file", "path", cfg.Output.SessionFile, "err", err)
	}
	defer sess.Clean()
	current.Store(sess)

	if cfg.MetricsAddr != "" {
		go func() {
			if err := telemetry.Serve(ctx, cfg.MetricsAddr); err != nil {
				slog.Warn("metrics listener failed", "addr", cfg.MetricsAddr, "err", err)
			}
		}()
	}

	workDir, err := os.MkdirTemp("", "bytebuggy-work-*")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	tshark := tools.NewTshark()
	airodump := tools.NewAirodump(lease.Name())
	airodump.Band = opts.band
	airodump.KeepFiles = opts.keepCaptures
	if tshark.Available() {
		airodump.WPS = tshark
	}

	scanner := scan.NewScanner(airodump, clock.Real{}, cfg.Scan)
	scanner.OnProgress = console.ScanProgress
	console.Info("Scanning. Press Ctrl+C when the target you want is listed.")
	res, err := scanner.Scan(ctx, sess)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	targets, err := scanner.Select(ctx, res, console, console.ShowTargets)
	switch {
	case errors.Is(err, ui.ErrPromptInterrupted), ctx.Err() != nil:
		return nil
	case err != nil:
		return err
	}

	store := result.NewStore(cfg.Output.ResultsFile)

	injector := tools.NewFrameInjector(lease.Name())
	defer injector.Close()
	aireplay := tools.NewAireplay(lease.Name(), lease.MAC(), workDir)
	aireplay.PPS = cfg.Attack.WEP.PPS
	aireplay.DeauthCount = cfg.Attack.WPA.DeauthCount
	aireplay.Fallback = injector

	aircrack := tools.NewAircrack(workDir)
	validator := handshake.Default(tshark, aircrack)
	slog.Debug("handshake validators", "chain", strings.Join(validator.Names(), ","))

	statusCh := make(chan attack.StatusUpdate, 64)
	statusDone := make(chan struct{})
	go func() {
		defer close(statusDone)
		for u := range statusCh {
			console.Status(u)
		}
	}()

	orch := attack.NewOrchestrator(cfg, store, attack.Deps{
		Capture:   airodump,
		Injection: aireplay,
		Recovery:  aircrack,
		Validator: validator,
		Prompter:  console,
		Clock:     clock.Real{},
		Session:   sess,
		Status:    statusCh,
	})
	n, err := orch.AttackAll(ctx, targets)
	close(statusCh)
	<-statusDone

	switch {
	case errors.Is(err, attack.ErrAborted):
		console.Fail("Aborted after %d target(s)", n)
		return nil
	case ctx.Err() != nil:
		console.Fail("Terminated after %d target(s)", n)
		return nil
	case err != nil:
		return err
	}
	console.Info("Finished attacking %d target(s). Results are in %s", n, store.Path())
	return nil
}
