package handshake

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytebuggy/bytebuggy/internal/handshake/handshaketest"
)

func mac(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	hw, err := net.ParseMAC(s)
	require.NoError(t, err)
	return hw
}

type stubValidator struct {
	name  string
	ok    bool
	err   error
	calls int
}

func (s *stubValidator) Name() string { return s.name }

func (s *stubValidator) Validate(context.Context, string, string, string) (bool, error) {
	s.calls++
	return s.ok, s.err
}

func TestGopacketValidator(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.cap")
	partial := filepath.Join(dir, "partial.cap")
	handshaketest.WritePcap(t, good, sampleHandshake(1, 2))
	handshaketest.WritePcap(t, partial, sampleHandshake(1))

	v := NewGopacketValidator()
	ok, err := v.Validate(context.Background(), good, apMAC, "Test Router")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Validate(context.Background(), partial, apMAC, "Test Router")
	require.NoError(t, err)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = v.Validate(ctx, good, apMAC, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChainFirstYesWins(t *testing.T) {
	first := &stubValidator{name: "first"}
	second := &stubValidator{name: "second", ok: true}
	third := &stubValidator{name: "third", ok: true}

	c := AnyOf(first, second, third)
	assert.Equal(t, []string{"first", "second", "third"}, c.Names())

	ok, err := c.Validate(context.Background(), "hs.cap", apMAC, "Test Router")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
	assert.Zero(t, third.calls)
}

func TestChainErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name       string
		validators []Validator
		want       bool
		wantErr    bool
	}{
		{
			name:       "error then yes",
			validators: []Validator{&stubValidator{name: "a", err: boom}, &stubValidator{name: "b", ok: true}},
			want:       true,
		},
		{
			name:       "error then no",
			validators: []Validator{&stubValidator{name: "a", err: boom}, &stubValidator{name: "b"}},
		},
		{
			name:       "all error",
			validators: []Validator{&stubValidator{name: "a", err: boom}, &stubValidator{name: "b", err: boom}},
			wantErr:    true,
		},
		{
			name:    "none configured",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := AnyOf(tt.validators...).Validate(context.Background(), "hs.cap", apMAC, "")
			assert.Equal(t, tt.want, ok)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChainAllErrorsJoined(t *testing.T) {
	boom := errors.New("boom")
	_, err := AnyOf(&stubValidator{name: "a", err: boom}).Validate(context.Background(), "hs.cap", apMAC, "")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "a: boom")
}

func TestDefaultAlwaysDecodesNatively(t *testing.T) {
	c := Default(nil, nil)
	assert.Equal(t, []string{"gopacket"}, c.Names())
}
