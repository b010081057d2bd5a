package scan

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

var (
	ErrNoTargets        = errors.New("no targets found")
	ErrTargetNotFound   = errors.New("target not found")
	ErrInvalidSelection = errors.New("invalid selection")
)

// ParseSelection turns operator input such as "1-3,5" into 0-based indexes over
// count targets. "all" anywhere selects everything. Ranges are clipped to count;
// any out-of-range or malformed token rejects the whole input.
func ParseSelection(input string, count int) ([]int, error) {
	tokens := strings.Split(input, ",")
	for i := range tokens {
		tokens[i] = strings.TrimSpace(tokens[i])
		if strings.EqualFold(tokens[i], "all") {
			all := make([]int, count)
			for j := range all {
				all[j] = j
			}
			return all, nil
		}
	}

	var out []int
	seen := make(map[int]bool)
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n-1)
		}
	}

	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(tok, "-"); ok {
			a, errA := strconv.Atoi(strings.TrimSpace(lo))
			b, errB := strconv.Atoi(strings.TrimSpace(hi))
			if errA != nil || errB != nil {
				return nil, fmt.Errorf("%w: %q is not a range", ErrInvalidSelection, tok)
			}
			if a < 1 || a > count {
				return nil, fmt.Errorf("%w: %d is out of range 1-%d", ErrInvalidSelection, a, count)
			}
			if b < a {
				return nil, fmt.Errorf("%w: range %q is reversed", ErrInvalidSelection, tok)
			}
			for n := a; n <= min(b, count); n++ {
				add(n)
			}
			continue
		}

		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidSelection, tok)
		}
		if n < 1 || n > count {
			return nil, fmt.Errorf("%w: %d is out of range 1-%d", ErrInvalidSelection, n, count)
		}
		add(n)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: nothing selected", ErrInvalidSelection)
	}
	return out, nil
}

// FilterTargets drops targets the menu should not offer.
func FilterTargets(targets []*wifi.Target, wpsOnly, clientsOnly bool) []*wifi.Target {
	var filtered []*wifi.Target
	for _, t := range targets {
		if wpsOnly && !t.WPS.Enabled() {
			continue
		}
		if clientsOnly && !t.HasClients() {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered
}

// Select decides which scanned targets to attack. With a matched filter target
// that target alone is returned; in pillage mode every target is. Otherwise
// show is called with the menu list and the operator is asked until the
// answer parses.
func (s *Scanner) Select(ctx context.Context, res *Result, p Prompter, show func([]*wifi.Target)) ([]*wifi.Target, error) {
	if res.Matched != nil {
		return []*wifi.Target{res.Matched}, nil
	}
	if s.HasFilter() {
		name := s.cfg.BSSID
		if name == "" {
			name = s.cfg.ESSID
		}
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, name)
	}

	targets := FilterTargets(res.Targets, s.cfg.WPSOnly, s.cfg.ClientsOnly)
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if s.cfg.Pillage > 0 {
		return targets, nil
	}

	if show != nil {
		show(targets)
	}
	msg := fmt.Sprintf("Select target(s) (1-%d) separated by commas, dashes or all: ", len(targets))
	prefix := ""
	for {
		answer, err := p.Ask(ctx, prefix+msg)
		if err != nil {
			return nil, err
		}
		idx, err := ParseSelection(answer, len(targets))
		if err != nil {
			prefix = err.Error() + "\n"
			continue
		}
		chosen := make([]*wifi.Target, 0, len(idx))
		for _, i := range idx {
			chosen = append(chosen, targets[i])
		}
		return chosen, nil
	}
}
