package console

import (
	"fmt"
	"strings"
	"time"

	"lucamon/status"
)

func yesNo(v bool) string {
	if v {
		return "YES"
	}
	return "NO"
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

// formatStatus renders the snapshot as the multi-line STATUS dump. The field
// set matches what the handheld client printed on its serial console.
func formatStatus(snap status.Snapshot, endpoint string) []string {
	lines := []string{
		"=== LUCA STATUS ===",
		"Endpoint: " + endpoint,
		"Connected: " + yesNo(snap.Connected),
		"Consciousness: " + percent(snap.Consciousness.Level),
		"Coherence: " + percent(snap.Consciousness.Coherence),
		"Connection Strength: " + percent(snap.Consciousness.ConnectionStrength),
		"Integration: " + percent(snap.Consciousness.IntegrationScore),
		fmt.Sprintf("Nodes: %d (health %s)", snap.Network.NodeCount, percent(snap.Network.Health)),
		fmt.Sprintf("Generation: %d (fitness %s)", snap.Layers.Evolution.Generation, percent(snap.Layers.Evolution.FitnessScore)),
		"Is Alive: " + yesNo(snap.Consciousness.IsAlive),
	}
	if snap.LastError != "" {
		lines = append(lines, "Last Error: "+snap.LastError)
	}
	if !snap.FetchedAt.IsZero() {
		lines = append(lines, "Last Poll: "+snap.FetchedAt.UTC().Format(time.RFC3339))
	}
	lines = append(lines, "==================")
	return lines
}

// formatTickLine renders one snapshot as a single HISTORY/WATCH line.
func formatTickLine(snap status.Snapshot) string {
	state := "synthetic"
	if snap.Connected {
		state = "connected"
	}
	line := fmt.Sprintf("%s %s level=%s nodes=%d gen=%d",
		snap.FetchedAt.UTC().Format("2006-01-02 15:04:05"),
		state,
		percent(snap.Consciousness.Level),
		snap.Network.NodeCount,
		snap.Layers.Evolution.Generation)
	if snap.LastError != "" {
		line += " err=" + snap.LastError
	}
	return line
}

func helpLines() []string {
	return []string{
		"Commands:",
		"  STATUS         dump the current snapshot",
		"  API:<url>      retarget the polling endpoint",
		"  HISTORY [n]    show the newest n stored snapshots (default 5)",
		"  WATCH          stream one line per poll tick",
		"  UNWATCH        stop streaming",
		"  HELP           this text",
		"  BYE            disconnect",
	}
}

// commandVerb extracts the dispatch verb: either the full upper-cased word or
// the part before ':' for the API:<value> form.
func commandVerb(line string) (verb, arg string) {
	trimmed := strings.TrimSpace(line)
	if before, after, ok := strings.Cut(trimmed, ":"); ok {
		return strings.ToUpper(strings.TrimSpace(before)), strings.TrimSpace(after)
	}
	if before, after, ok := strings.Cut(trimmed, " "); ok {
		return strings.ToUpper(before), strings.TrimSpace(after)
	}
	return strings.ToUpper(trimmed), ""
}
