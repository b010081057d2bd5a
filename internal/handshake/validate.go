package handshake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bytebuggy/bytebuggy/internal/tools"
)

// Validator checks if a capture file contains a valid handshake.
type Validator interface {
	Name() string
	Validate(ctx context.Context, capFile, bssid, essid string) (bool, error)
}

// GopacketValidator decodes the capture itself and looks for a crackable
// exchange. It needs no external tools.
type GopacketValidator struct{}

func NewGopacketValidator() *GopacketValidator {
	return &GopacketValidator{}
}

func (v *GopacketValidator) Name() string {
	return "gopacket"
}

func (v *GopacketValidator) Validate(ctx context.Context, capFile, bssid, _ string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	c, err := ScanCapFile(capFile, bssid)
	if err != nil {
		return false, err
	}
	return c.HasCompleteHandshake(), nil
}

// TsharkValidator uses tshark to validate handshakes.
type TsharkValidator struct {
	tshark *tools.Tshark
}

func NewTsharkValidator(tshark *tools.Tshark) *TsharkValidator {
	return &TsharkValidator{tshark: tshark}
}

func (v *TsharkValidator) Name() string {
	return "tshark"
}

func (v *TsharkValidator) Validate(ctx context.Context, capFile, bssid, _ string) (bool, error) {
	return v.tshark.HasHandshake(ctx, capFile, bssid)
}

// AircrackValidator asks aircrack-ng whether it counts a handshake for the AP.
type AircrackValidator struct {
	aircrack *tools.Aircrack
}

func NewAircrackValidator(aircrack *tools.Aircrack) *AircrackValidator {
	return &AircrackValidator{aircrack: aircrack}
}

func (v *AircrackValidator) Name() string {
	return "aircrack"
}

func (v *AircrackValidator) Validate(ctx context.Context, capFile, bssid, _ string) (bool, error) {
	return v.aircrack.HasHandshake(ctx, capFile, bssid)
}

// Chain accepts a capture as soon as one of its validators does.
type Chain struct {
	validators []Validator
}

// AnyOf builds a Chain. An error is returned only when every validator failed
// to run; a validator that errors is otherwise treated as a "no".
func AnyOf(validators ...Validator) *Chain {
	return &Chain{validators: validators}
}

// Default chains the native decoder with tshark and aircrack-ng when they are
// installed.
func Default(tshark *tools.Tshark, aircrack *tools.Aircrack) *Chain {
	vs := []Validator{NewGopacketValidator()}
	if tshark != nil && tshark.Available() {
		vs = append(vs, NewTsharkValidator(tshark))
	}
	if aircrack != nil && aircrack.Available() {
		vs = append(vs, NewAircrackValidator(aircrack))
	}
	return AnyOf(vs...)
}

// Names lists the validators in the order they run.
func (c *Chain) Names() []string {
	names := make([]string, len(c.validators))
	for i, v := range c.validators {
		names[i] = v.Name()
	}
	return names
}

func (c *Chain) Validate(ctx context.Context, capFile, bssid, essid string) (bool, error) {
	if len(c.validators) == 0 {
		return false, errors.New("no handshake validators")
	}

	var errs []error
	for _, v := range c.validators {
		ok, err := v.Validate(ctx, capFile, bssid, essid)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			slog.Debug("handshake validator failed", "validator", v.Name(), "file", capFile, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", v.Name(), err))
			continue
		}
		if ok {
			slog.Debug("handshake validated", "validator", v.Name(), "bssid", bssid)
			return true, nil
		}
	}
	if len(errs) == len(c.validators) {
		return false, errors.Join(errs...)
	}
	return false, nil
}
