package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytebuggy/bytebuggy/internal/clock"
	"github.com/bytebuggy/bytebuggy/internal/config"
	"github.com/bytebuggy/bytebuggy/internal/session"
	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

type fakeCapture struct {
	snaps    []Snapshot
	calls    int
	aliveFor int // ticks before the process "exits"; 0 means forever
	stopped  bool
	req      CaptureRequest
}

func (f *fakeCapture) Start(_ context.Context, req CaptureRequest) (CaptureHandle, error) {
	f.req = req
	return f, nil
}

func (f *fakeCapture) Snapshot() (Snapshot, error) {
	f.calls++
	if len(f.snaps) == 0 {
		return Snapshot{}, errors.New("csv not written yet")
	}
	return f.snaps[min(f.calls-1, len(f.snaps)-1)], nil
}

func (f *fakeCapture) Artifacts(string) ([]string, error) { return nil, nil }

func (f *fakeCapture) Alive() bool {
	return f.aliveFor == 0 || f.calls < f.aliveFor
}

func (f *fakeCapture) Stop() error {
	f.stopped = true
	return nil
}

type failingCapture struct{}

func (failingCapture) Start(context.Context, CaptureRequest) (CaptureHandle, error) {
	return nil, errors.New("airodump-ng not found")
}

func newScanner(capture CaptureController, clk clock.Clock, mutate func(*config.ScanConfig)) *Scanner {
	cfg := config.DefaultConfig().Scan
	if mutate != nil {
		mutate(&cfg)
	}
	return NewScanner(capture, clk, cfg)
}

func TestScanStopsOnBSSIDMatch(t *testing.T) {
	capture := &fakeCapture{snaps: []Snapshot{
		{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:01", "one", wifi.EncWPA2)}},
		{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:02", "two", wifi.EncWEP)}},
	}}
	clk := clock.NewFake(time.Now())
	s := newScanner(capture, clk, func(c *config.ScanConfig) { c.BSSID = "aa-aa-aa-aa-aa-02" })

	res, err := s.Scan(context.Background(), session.New("mon0", "", ""))
	require.NoError(t, err)
	require.NotNil(t, res.Matched)
	assert.Equal(t, "two", res.Matched.ESSID)
	assert.Len(t, res.Targets, 2, "the first AP is retained though absent from the matching snapshot")
	assert.True(t, capture.stopped)
	assert.Equal(t, 1, clk.Sleeps())
}

func TestScanESSIDMatchRespectsWPSOnly(t *testing.T) {
	noWPS := ap(t, "aa:aa:aa:aa:aa:01", "cafe", wifi.EncWPA2)
	withWPS := ap(t, "aa:aa:aa:aa:aa:02", "cafe", wifi.EncWPA2)
	withWPS.WPS = wifi.WPSLocked
	withWPS.Power = -90

	capture := &fakeCapture{snaps: []Snapshot{{Targets: []*wifi.Target{noWPS, withWPS}}}}
	s := newScanner(capture, clock.NewFake(time.Now()), func(c *config.ScanConfig) {
		c.ESSID = "cafe"
		c.WPSOnly = true
	})

	res, err := s.Scan(context.Background(), session.New("mon0", "", ""))
	require.NoError(t, err)
	require.NotNil(t, res.Matched)
	assert.Equal(t, "AA:AA:AA:AA:AA:02", res.Matched.Key())
}

func TestScanPillageBudget(t *testing.T) {
	capture := &fakeCapture{snaps: []Snapshot{{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:01", "one", wifi.EncWPA2)}}}}
	clk := clock.NewFake(time.Now())
	s := newScanner(capture, clk, func(c *config.ScanConfig) { c.Pillage = 10 * time.Second })

	var ticks int
	s.OnProgress = func([]*wifi.Target, time.Duration) { ticks++ }

	res, err := s.Scan(context.Background(), session.New("mon0", "", ""))
	require.NoError(t, err)
	assert.Nil(t, res.Matched)
	assert.Len(t, res.Targets, 1)
	assert.Equal(t, 10, clk.Sleeps())
	assert.Equal(t, 11, ticks)
}

func TestScanInterruptKeepsPartialResults(t *testing.T) {
	capture := &fakeCapture{snaps: []Snapshot{{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:01", "one", wifi.EncWPA2)}}}}
	sess := session.New("mon0", "", "")
	clk := clock.NewFake(time.Now())
	clk.OnSleep = func(n int) {
		if n == 3 {
			sess.Interrupt()
		}
	}

	res, err := newScanner(capture, clk, nil).Scan(context.Background(), sess)
	require.NoError(t, err)
	assert.Len(t, res.Targets, 1)
	assert.Equal(t, 3, clk.Sleeps())
}

func TestScanCaptureExitIsNotAnError(t *testing.T) {
	capture := &fakeCapture{aliveFor: 2, snaps: []Snapshot{{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:01", "one", wifi.EncWPA2)}}}}

	res, err := newScanner(capture, clock.NewFake(time.Now()), nil).Scan(context.Background(), session.New("mon0", "", ""))
	require.NoError(t, err)
	assert.Len(t, res.Targets, 1)
}

func TestScanContextCancelReturnsPartial(t *testing.T) {
	capture := &fakeCapture{snaps: []Snapshot{{Targets: []*wifi.Target{ap(t, "aa:aa:aa:aa:aa:01", "one", wifi.EncWPA2)}}}}
	ctx, cancel := context.WithCancel(context.Background())
	clk := clock.NewFake(time.Now())
	clk.OnSleep = func(int) { cancel() }

	res, err := newScanner(capture, clk, nil).Scan(ctx, session.New("mon0", "", ""))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Len(t, res.Targets, 1)
}

func TestScanStartFailure(t *testing.T) {
	_, err := newScanner(failingCapture{}, clock.NewFake(time.Now()), nil).Scan(context.Background(), session.New("mon0", "", ""))
	assert.ErrorContains(t, err, "airodump-ng not found")
}

func TestScanPassesChannel(t *testing.T) {
	capture := &fakeCapture{aliveFor: 1}
	_, err := newScanner(capture, clock.NewFake(time.Now()), func(c *config.ScanConfig) { c.Channel = 11 }).
		Scan(context.Background(), session.New("mon0", "", ""))
	require.NoError(t, err)
	assert.Equal(t, 11, capture.req.Channel)
	assert.False(t, capture.req.IVsOnly)
}
