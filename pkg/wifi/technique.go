package wifi

import (
	"fmt"
	"strings"
)

// WEPTechnique identifies one aireplay-ng based WEP attack.
type WEPTechnique int

const (
	TechARPReplay WEPTechnique = iota + 1
	TechFragment
	TechChopChop
	TechCaffeLatte
	TechP0841
	TechHirte

	// TechForgedReplay replays a packet forged from a chopchop/fragment keystream.
	// It is never queued directly.
	TechForgedReplay
	// TechFakeAuth is the keep-alive fake authentication that runs beside a technique.
	TechFakeAuth
)

var techniqueNames = map[WEPTechnique]string{
	TechARPReplay:    "arpreplay",
	TechFragment:     "fragment",
	TechChopChop:     "chopchop",
	TechCaffeLatte:   "caffelatte",
	TechP0841:        "p0841",
	TechHirte:        "hirte",
	TechForgedReplay: "forgedreplay",
	TechFakeAuth:     "fakeauth",
}

func (t WEPTechnique) String() string {
	if name, ok := techniqueNames[t]; ok {
		return name
	}
	return fmt.Sprintf("technique(%d)", int(t))
}

// ProducesKeystream reports whether the technique exits once it has written a .xor
// keystream file. These techniques are quiet on IVs while they work.
func (t WEPTechnique) ProducesKeystream() bool {
	return t == TechChopChop || t == TechFragment
}

// DefaultWEPTechniques is the order techniques are tried in unless configured.
func DefaultWEPTechniques() []WEPTechnique {
	return []WEPTechnique{TechARPReplay, TechFragment, TechChopChop, TechCaffeLatte, TechP0841, TechHirte}
}

// ParseWEPTechnique accepts the names of the queueable techniques. "replay" is an
// alias for arpreplay.
func ParseWEPTechnique(s string) (WEPTechnique, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "arpreplay", "replay":
		return TechARPReplay, nil
	case "fragment":
		return TechFragment, nil
	case "chopchop":
		return TechChopChop, nil
	case "caffelatte":
		return TechCaffeLatte, nil
	case "p0841":
		return TechP0841, nil
	case "hirte":
		return TechHirte, nil
	}
	return 0, fmt.Errorf("unknown WEP technique %q", s)
}

func ParseWEPTechniques(names []string) ([]WEPTechnique, error) {
	out := make([]WEPTechnique, 0, len(names))
	seen := make(map[WEPTechnique]bool)
	for _, n := range names {
		t, err := ParseWEPTechnique(n)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no WEP techniques given")
	}
	return out, nil
}
