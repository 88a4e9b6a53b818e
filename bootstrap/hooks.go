package bootstrap

import (
	"github.com/artpar/intake/adapters/metrics"
	"github.com/artpar/intake/app"
	"github.com/artpar/intake/ports"
)

// WireMetrics hangs the snapshot metrics off the dispatch service's reload
// callbacks. The app package stays free of adapter imports; this is the
// only place the two meet.
func WireMetrics(svc *app.DispatchService, m *metrics.Collector, clk ports.Clock) {
	svc.OnSwap(func(snap *app.Snapshot) {
		m.SnapshotReloads.Inc()
		m.SnapshotLastReload.Set(float64(clk.Now().Unix()))
		m.SnapshotRoutes.Set(float64(snap.Table.Len()))
	})

	svc.OnReloadError(func(error) {
		m.SnapshotReloadErrors.Inc()
	})
}
