package bootstrap_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/artpar/intake/adapters/clock"
	"github.com/artpar/intake/adapters/idgen"
	"github.com/artpar/intake/adapters/metrics"
	"github.com/artpar/intake/app"
	"github.com/artpar/intake/bootstrap"
	"github.com/artpar/intake/domain/route"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// gatherValue returns the summed value of a metric family, or 0 when the
// family has not been written yet.
func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	var sum float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if c := m.GetCounter(); c != nil {
				sum += c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				sum += g.GetValue()
			}
		}
	}
	return sum
}

func TestWireMetrics_Swap(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	clk := clock.NewFake(time.Unix(1700000000, 0))

	svc := app.NewDispatchService(app.Deps{
		Clock:  clk,
		IDGen:  idgen.NewSequential("req"),
		Logger: zerolog.Nop(),
	}, app.Config{})
	defer svc.Stop()

	bootstrap.WireMetrics(svc, m, clk)

	routes := []route.Route{
		route.New("GET", "/things/{id}"),
		route.New("POST", "/things"),
	}
	if err := svc.Load(routes, nil); err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if got := gatherValue(t, reg, "intake_snapshot_reloads_total"); got != 1 {
		t.Errorf("snapshot_reloads_total = %v, want 1", got)
	}
	if got := gatherValue(t, reg, "intake_snapshot_routes"); got != 2 {
		t.Errorf("snapshot_routes = %v, want 2", got)
	}
	if got := gatherValue(t, reg, "intake_snapshot_last_reload_timestamp"); got != 1700000000 {
		t.Errorf("snapshot_last_reload_timestamp = %v, want 1700000000", got)
	}

	// A second swap keeps counting.
	if err := svc.Load(routes[:1], nil); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got := gatherValue(t, reg, "intake_snapshot_reloads_total"); got != 2 {
		t.Errorf("snapshot_reloads_total after second load = %v, want 2", got)
	}
	if got := gatherValue(t, reg, "intake_snapshot_routes"); got != 1 {
		t.Errorf("snapshot_routes after second load = %v, want 1", got)
	}
}

func TestWireMetrics_ReloadError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	clk := clock.NewFake(time.Unix(1700000000, 0))

	svc := app.NewDispatchService(app.Deps{
		Clock:  clk,
		IDGen:  idgen.NewSequential("req"),
		Logger: zerolog.Nop(),
	}, app.Config{
		RoutesFile: filepath.Join(t.TempDir(), "absent.yaml"),
	})
	defer svc.Stop()

	bootstrap.WireMetrics(svc, m, clk)

	if err := svc.Reload(); err == nil {
		t.Fatal("Reload succeeded with missing manifest, want error")
	}

	if got := gatherValue(t, reg, "intake_snapshot_reload_errors_total"); got != 1 {
		t.Errorf("snapshot_reload_errors_total = %v, want 1", got)
	}
	if got := gatherValue(t, reg, "intake_snapshot_reloads_total"); got != 0 {
		t.Errorf("snapshot_reloads_total = %v, want 0", got)
	}
}
