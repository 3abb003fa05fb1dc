// Command zbxcore-demo wires the forecast and maintenance packages
// together for manual inspection. It is glue, not core: the core
// packages never import it (spec.md §1).
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/terrydash/zbxcore/forecast"
	"github.com/terrydash/zbxcore/maintenance"
	"github.com/terrydash/zbxcore/maintenance/cache"
	"github.com/terrydash/zbxcore/maintenance/match"
	"github.com/terrydash/zbxcore/telemetry"
)

func main() {
	var fit, mode string
	var now, horizon float64
	var verbose bool

	flag.StringVar(&fit, "fit", "linear", "fit kind: linear, polynomial<1-6>, exponential, logarithmic, power")
	flag.StringVar(&mode, "mode", "value", "forecast mode: value, max, min, delta, avg")
	flag.Float64Var(&now, "now", 4, "current time coordinate")
	flag.Float64Var(&horizon, "horizon", 1, "forecast horizon")
	flag.BoolVar(&verbose, "verbose", false, "emit debug telemetry")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs a sample forecast and a sample maintenance evaluation side by side.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	var log *telemetry.Logger
	if verbose {
		log = telemetry.New(telemetry.NewWriterHandler(os.Stderr), telemetry.Debug)
	}

	runForecastDemo(fit, mode, now, horizon, log)
	fmt.Println()
	runMaintenanceDemo(log)
}

func runForecastDemo(fit, mode string, now, horizon float64, log *telemetry.Logger) {
	t := []float64{0, 1, 2, 3, 4}
	x := []float64{1, 3, 5, 7, 9}

	if log != nil {
		log.Debug("demo.forecast.start", map[string]any{"fit": fit, "mode": mode})
	}

	value, err := forecast.Forecast(t, x, now, horizon, fit, mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "forecast error: %v\n", err)
		return
	}

	tts, err := forecast.TimeToThreshold(t, x, now, value+1, fit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "time-to-threshold error: %v\n", err)
		tts = forecast.ErrorSentinel
	}

	fmt.Println(renderForecastTable(fit, mode, now, horizon, value, tts))
}

func renderForecastTable(fit, mode string, now, horizon, value, tts float64) string {
	out := &strings.Builder{}
	table := tablewriter.NewTable(out,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"fit", "mode", "now", "horizon", "value", "time_to_threshold"})
	table.Append([]string{
		fit, mode,
		fmt.Sprintf("%.2f", now),
		fmt.Sprintf("%.2f", horizon),
		fmt.Sprintf("%.4f", value),
		fmt.Sprintf("%.4f", tts),
	})
	table.Render()
	return out.String()
}

// demoGroups is a trivial GroupResolver with no nesting, enough to
// exercise match.MatchesHost's group-membership path.
type demoGroups struct {
	members map[uint64]map[uint64]bool
}

func (g *demoGroups) NestedGroupIDs(groupID uint64) []uint64 { return []uint64{groupID} }
func (g *demoGroups) GroupHasHost(groupID, hostID uint64) bool {
	return g.members[groupID] != nil && g.members[groupID][hostID]
}

func runMaintenanceDemo(log *telemetry.Logger) {
	c := cache.New(cache.Config{TimerCount: 4}, nil, log)

	c.SyncMaintenances(cache.ChangeStream{
		{RowID: 1, Tag: cache.ChangeUpsert, Columns: map[string]any{
			"kind": int(maintenance.Normal), "active_since": int64(0), "active_until": int64(1_000_000),
		}},
	})
	c.SyncMaintenancePeriods(cache.ChangeStream{
		{RowID: 1, Tag: cache.ChangeUpsert, Columns: map[string]any{
			"maintenanceid": uint64(1), "type": int(maintenance.OneTime),
			"start_date": int64(100), "period": int64(3600),
		}},
	})
	c.SyncMaintenanceHosts(cache.ChangeStream{
		{RowID: 1, Tag: cache.ChangeUpsert, Columns: map[string]any{"maintenanceid": uint64(1), "hostid": uint64(42)}},
	})

	c.UpdateMaintenances(200)

	running := c.RunningMaintenances()
	groups := &demoGroups{}

	out := &strings.Builder{}
	table := tablewriter.NewTable(out,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header([]string{"maintenance_id", "state", "host_42_suppressed"})
	for _, m := range running {
		table.Append([]string{
			fmt.Sprintf("%d", m.ID),
			stateName(m.State),
			fmt.Sprintf("%t", match.MatchesHost(m, 42, groups)),
		})
	}
	table.Render()
	fmt.Print(out.String())
}

func stateName(s maintenance.RunState) string {
	if s == maintenance.Running {
		return "running"
	}
	return "idle"
}
