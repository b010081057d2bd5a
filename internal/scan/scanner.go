package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bytebuggy/bytebuggy/internal/clock"
	"github.com/bytebuggy/bytebuggy/internal/config"
	"github.com/bytebuggy/bytebuggy/internal/session"
	"github.com/bytebuggy/bytebuggy/internal/telemetry"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

// Result is what a scan produced. Matched is set when an explicit BSSID or
// ESSID filter found its target.
type Result struct {
	Targets []*wifi.Target
	Matched *wifi.Target
}

// Scanner polls a capture process once per tick and merges what it sees.
type Scanner struct {
	capture CaptureController
	clock   clock.Clock
	cfg     config.ScanConfig

	// OnProgress, if set, is called every tick with the current view and elapsed time.
	OnProgress func(targets []*wifi.Target, elapsed time.Duration)
}

func NewScanner(capture CaptureController, clk clock.Clock, cfg config.ScanConfig) *Scanner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Scanner{capture: capture, clock: clk, cfg: cfg}
}

// Scan runs until the operator interrupts, the filter matches, the pillage
// budget runs out or the capture process dies. Partial results are always
// returned; the error is only set when the capture could not start or ctx ended.
func (s *Scanner) Scan(ctx context.Context, sess *session.Session) (*Result, error) {
	handle, err := s.capture.Start(ctx, CaptureRequest{Channel: s.cfg.Channel, Prefix: "scan"})
	if err != nil {
		return nil, fmt.Errorf("start scan capture: %w", err)
	}
	defer handle.Stop()

	db := NewTargetDB()
	db.OnNewTarget(func(t *wifi.Target) {
		slog.Debug("new target", "bssid", t.Key(), "essid", t.ESSID, "enc", t.Encryption.String())
	})

	start := s.clock.Now()
	for {
		if !handle.Alive() {
			slog.Warn("capture process exited, stopping scan", "targets", db.Count())
			return &Result{Targets: db.Targets()}, nil
		}

		snap, err := handle.Snapshot()
		if err != nil {
			slog.Debug("snapshot not ready", "err", err)
		} else {
			db.Merge(snap)
		}
		telemetry.TargetsDiscovered.Set(float64(db.Count()))

		targets := db.Targets()
		if m := s.match(targets); m != nil {
			slog.Info("found target", "bssid", m.Key(), "essid", m.ESSID)
			return &Result{Targets: targets, Matched: m}, nil
		}

		elapsed := s.clock.Now().Sub(start)
		if s.OnProgress != nil {
			s.OnProgress(targets, elapsed)
		}
		if s.cfg.Pillage > 0 && elapsed >= s.cfg.Pillage {
			return &Result{Targets: targets}, nil
		}

		if err := s.clock.Sleep(ctx, s.cfg.PollInterval); err != nil {
			return &Result{Targets: db.Targets()}, err
		}
		if sess.Interrupted() {
			return &Result{Targets: db.Targets()}, nil
		}
	}
}

// HasFilter reports whether an explicit BSSID or ESSID was requested.
func (s *Scanner) HasFilter() bool {
	return s.cfg.BSSID != "" || s.cfg.ESSID != ""
}

func (s *Scanner) match(targets []*wifi.Target) *wifi.Target {
	if !s.HasFilter() {
		return nil
	}
	bssid := normalizeMAC(s.cfg.BSSID)
	for _, t := range targets {
		if s.cfg.WPSOnly && !t.WPS.Enabled() {
			continue
		}
		if s.cfg.BSSID != "" && t.Key() == bssid {
			return t
		}
		if s.cfg.ESSID != "" && t.ESSIDKnown && t.ESSID == s.cfg.ESSID {
			return t
		}
	}
	return nil
}
