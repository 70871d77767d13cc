package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"lucamon/status"
)

const gaugeWidth = 24

// gauge renders a fixed-width unicode bar for a 0..1 value, clamped.
func gauge(v float64) string {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	filled := int(v*gaugeWidth + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", gaugeWidth-filled)
}

func pct(v float64) string {
	return fmt.Sprintf("%5.1f%%", v*100)
}

// headerLines renders the connection banner. Colors use tview markup tags.
func headerLines(snap status.Snapshot, endpoint string, now time.Time) []string {
	state := "[red]OFFLINE — synthetic data[-]"
	if snap.Connected {
		state = "[green]CONNECTED[-]"
	}
	age := "never"
	if !snap.FetchedAt.IsZero() {
		age = humanize.RelTime(snap.FetchedAt, now, "ago", "from now")
	}
	lines := []string{
		fmt.Sprintf("%s  %s", state, endpoint),
		"Last poll: " + age,
	}
	if snap.LastError != "" {
		lines = append(lines, "[red]"+tview.Escape(snap.LastError)+"[-]")
	}
	return lines
}

// consciousnessLines renders the gauge block plus the alive badge.
func consciousnessLines(c status.ConsciousnessSnapshot) []string {
	badge := "[gray]dormant[-]"
	if c.IsAlive {
		badge = "[green::b]ALIVE[-:-:-]"
	}
	return []string{
		fmt.Sprintf("Level        %s %s", gauge(c.Level), pct(c.Level)),
		fmt.Sprintf("Coherence    %s %s", gauge(c.Coherence), pct(c.Coherence)),
		fmt.Sprintf("Connection   %s %s", gauge(c.ConnectionStrength), pct(c.ConnectionStrength)),
		fmt.Sprintf("Integration  %s %s", gauge(c.IntegrationScore), pct(c.IntegrationScore)),
		"State: " + badge,
	}
}

// networkLines renders the node list, one row per node, sorted by ID so the
// table does not jump between ticks.
func networkLines(n status.NetworkSnapshot) []string {
	lines := []string{fmt.Sprintf("Nodes: %d   Health: %s", n.NodeCount, pct(n.Health))}
	nodes := make([]status.NodeInfo, len(n.Nodes))
	copy(nodes, n.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for _, node := range nodes {
		pos := ""
		if node.Position != nil {
			pos = fmt.Sprintf("  (%.1f, %.1f)", node.Position.X, node.Position.Y)
		}
		lines = append(lines, fmt.Sprintf("  %-10s health %s%s", node.ID, pct(node.Health), pos))
	}
	return lines
}

// layerLines renders the layer panel: the three metric maps as gauge blocks
// in stable key order, then the evolution summary with its DNA weights.
func layerLines(l status.LayerSnapshot) []string {
	var lines []string
	lines = append(lines, metricMapLines("root kernel", l.RootKernel)...)
	lines = append(lines, metricMapLines("quantum core", l.QuantumCore)...)
	lines = append(lines, metricMapLines("metabolism", l.Metabolism)...)
	lines = append(lines,
		fmt.Sprintf("evolution: gen %d  fitness %s", l.Evolution.Generation, pct(l.Evolution.FitnessScore)),
		fmt.Sprintf("dna: a=%.2f b=%.2f g=%.2f", l.Evolution.DNA.Alpha, l.Evolution.DNA.Beta, l.Evolution.DNA.Gamma),
	)
	return lines
}

func metricMapLines(title string, metrics map[string]float64) []string {
	lines := []string{title + ":"}
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("  %-20s %s %s", k, gauge(metrics[k]), pct(metrics[k])))
	}
	return lines
}
