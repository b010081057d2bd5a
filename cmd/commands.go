package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bytebuggy/bytebuggy/internal/config"
	"github.com/bytebuggy/bytebuggy/internal/crack"
	"github.com/bytebuggy/bytebuggy/internal/handshake"
	"github.com/bytebuggy/bytebuggy/internal/result"
	"github.com/bytebuggy/bytebuggy/internal/tools"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
	"github.com/bytebuggy/bytebuggy/ui"
)

func crackedCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "cracked",
		Short: "Show previously cracked networks",
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := result.NewStore(cfg.Output.ResultsFile).LoadAll()
			if err != nil {
				return err
			}
			ui.NewConsole(os.Stdin, os.Stdout).ShowResults(results)
			return nil
		},
	}
}

// checkTarget is one capture file to validate.
type checkTarget struct {
	path  string
	bssid string
	essid string
}

func checkCmd(cfg *config.Config) *cobra.Command {
	var bssid, essid string

	cmd := &cobra.Command{
		Use:   "check [capfile]",
		Short: "Check capture files for complete handshakes",
		Long: "Check one capture file, or every .cap file in the handshake directory, " +
			"for a complete WPA handshake.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var targets []checkTarget
			if len(args) == 1 {
				t := checkTarget{path: args[0], bssid: bssid, essid: essid}
				if t.bssid == "" {
					hf, ok := wifi.ParseHandshakeFilename(args[0])
					if !ok {
						return fmt.Errorf("cannot tell the BSSID from %s, pass --bssid", filepath.Base(args[0]))
					}
					t.bssid, t.essid = hf.BSSID, hf.ESSID
				}
				targets = append(targets, t)
			} else {
				var err error
				targets, err = storedCaptures(cfg.Output.HandshakeDir)
				if err != nil {
					return err
				}
				if len(targets) == 0 {
					return fmt.Errorf("no handshake captures in %s", cfg.Output.HandshakeDir)
				}
			}

			console := ui.NewConsole(os.Stdin, os.Stdout)
			validator := handshake.Default(tools.NewTshark(), tools.NewAircrack(""))
			console.Info("Validating with %v", validator.Names())

			valid := 0
			for _, t := range targets {
				ok, err := validator.Validate(cmd.Context(), t.path, t.bssid, t.essid)
				switch {
				case err != nil:
					console.Fail("%s: %v", t.path, err)
				case ok:
					valid++
					console.Success("%s: handshake for %s", t.path, t.bssid)
				default:
					console.Fail("%s: no complete handshake for %s", t.path, t.bssid)
				}
			}
			if valid == 0 {
				return errors.New("no valid handshakes found")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bssid, "bssid", "", "Access point BSSID (default: taken from the file name)")
	cmd.Flags().StringVar(&essid, "essid", "", "Access point ESSID")
	return cmd
}

// storedCaptures lists the handshake files in dir whose names carry a BSSID.
func storedCaptures(dir string) ([]checkTarget, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.cap"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var targets []checkTarget
	for _, path := range matches {
		hf, ok := wifi.ParseHandshakeFilename(path)
		if !ok {
			continue
		}
		targets = append(targets, checkTarget{path: path, bssid: hf.BSSID, essid: hf.ESSID})
	}
	return targets, nil
}

func crackCmd(cfg *config.Config) *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "crack",
		Short: "Crack stored handshakes and PMKID hashes with a wordlist",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store := result.NewStore(cfg.Output.ResultsFile)
			all, err := store.LoadAll()
			if err != nil {
				return err
			}
			pending := crack.Pending(all)
			console := ui.NewConsole(os.Stdin, os.Stdout)
			if len(pending) == 0 {
				console.Info("Nothing to crack in %s", store.Path())
				return nil
			}
			console.Info("Cracking %d capture(s) with %s", len(pending), cfg.Wordlist)

			wl := crack.NewWordlist()
			if workers > 0 {
				wl.Workers = workers
			}
			wl.OnProgress = func(tried int64) {
				console.ShowProgress(fmt.Sprintf("%d candidates tried", tried))
			}

			runner := &crack.Runner{Handshakes: wl, Store: store}
			if hc := tools.NewHashcat(); hc.Available() {
				runner.PMKID = hc
			}

			found, err := runner.Run(ctx, pending, cfg.Wordlist)
			for _, r := range found {
				console.Success("%s (%s): %s", r.ESSID, r.BSSID, r.Key)
			}
			if errors.Is(err, context.Canceled) {
				console.Fail("Interrupted, %d key(s) recovered", len(found))
				return nil
			}
			if err != nil {
				return err
			}
			if len(found) == 0 {
				console.Fail("No keys recovered")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel PBKDF2 workers (default: number of CPUs)")
	return cmd
}

func depsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check tool dependencies",
		Run: func(cmd *cobra.Command, args []string) {
			dc := tools.NewDependencyChecker()
			fmt.Println()
			fmt.Println("  bytebuggy dependency check")
			fmt.Println()
			fmt.Print(tools.FormatStatus(dc.CheckAll()))
			fmt.Println()
			if missing := dc.MissingRequired(); len(missing) > 0 {
				fmt.Printf("  Missing required: %v\n", missing)
				fmt.Printf("  Install with: %s\n", tools.InstallHint())
			} else {
				fmt.Println("  All required tools available.")
			}
		},
	}
}
