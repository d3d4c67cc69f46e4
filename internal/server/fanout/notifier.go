// Package fanout pushes change notifications to the other sessions of a
// vault. Delivery is best-effort: nothing is queued for absent sessions.
package fanout

import (
	"context"

	"github.com/dmitrijs2005/vaultrelay/internal/logging"
	"github.com/dmitrijs2005/vaultrelay/internal/server/metrics"
	"github.com/dmitrijs2005/vaultrelay/internal/server/protocol"
	"github.com/dmitrijs2005/vaultrelay/internal/server/sessions"
)

type Notifier struct {
	sessions *sessions.Registry
	metrics  *metrics.Metrics
	logger   logging.Logger
}

func NewNotifier(r *sessions.Registry, m *metrics.Metrics, logger logging.Logger) *Notifier {
	return &Notifier{sessions: r, metrics: m, logger: logger.With("module", "fanout")}
}

// Notify sends notify{event, path} to every session of vaultID except
// originID and returns the number of successful deliveries.
func (n *Notifier) Notify(ctx context.Context, vaultID, originID, event, path string) int {
	msg := protocol.NewNotify(event, path)

	delivered := 0
	for _, peer := range n.sessions.Peers(vaultID, originID) {
		if err := peer.Send(msg); err != nil {
			n.metrics.Notifications.WithLabelValues("dropped").Inc()
			n.logger.Warn(ctx, "notification dropped", "conn_id", peer.ID(), "vault_id", vaultID, "error", err)
			continue
		}
		n.metrics.Notifications.WithLabelValues("delivered").Inc()
		delivered++
	}
	return delivered
}
