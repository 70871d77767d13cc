// Package status maintains a live view of the organism backend's state.
//
// A Poller periodically fetches GET {endpoint}/api/status, decodes the three
// top-level documents (network_status, consciousness_state, layers), and
// replaces its current snapshot wholesale on every tick. When the backend is
// unreachable or returns garbage, the poller degrades to locally generated
// synthetic values so consumers always have something to render; the
// Connected flag on the snapshot is the only truth about whether the values
// are real.
package status

import (
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/zeebo/xxh3"
)

// AliveLevelThreshold is the consciousness level above which the organism is
// considered alive regardless of what the backend asserts. Fixed design
// constant, not configurable.
const AliveLevelThreshold = 0.9

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Position is an optional 2D placement for a node, used only for rendering.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeInfo describes one node in the organism network. ID is unique within a
// snapshot.
type NodeInfo struct {
	ID       string    `json:"id"`
	Health   float64   `json:"health"`
	Position *Position `json:"position,omitempty"`
}

// NetworkSnapshot is the network_status document. NodeCount matches
// len(Nodes) when the data came from a real backend; synthetic snapshots
// keep them consistent too, but nothing downstream may rely on it.
type NetworkSnapshot struct {
	NodeCount int        `json:"node_count"`
	Health    float64    `json:"health"`
	Nodes     []NodeInfo `json:"nodes"`
}

// ConsciousnessSnapshot is the consciousness_state document. All four metric
// fields are in [0,1]. IsAlive is true when the backend asserts it or when
// Level exceeds AliveLevelThreshold; the same rule is applied to synthetic
// snapshots.
type ConsciousnessSnapshot struct {
	Level              float64 `json:"level"`
	Coherence          float64 `json:"coherence"`
	ConnectionStrength float64 `json:"connection_strength"`
	IntegrationScore   float64 `json:"integration_score"`
	IsAlive            bool    `json:"is_alive"`
}

// DNA holds the three evolutionary weights carried by the consensus layer.
type DNA struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// EvolutionLayer is the only layer with a fixed shape (layer_12).
type EvolutionLayer struct {
	Generation   int     `json:"generation"`
	FitnessScore float64 `json:"fitness_score"`
	DNA          DNA     `json:"dna"`
}

// LayerSnapshot is the layers document. The root kernel, quantum core and
// metabolism layers are open metric maps; only the evolution layer has a
// fixed shape.
type LayerSnapshot struct {
	RootKernel  map[string]float64 `json:"layer_0"`
	QuantumCore map[string]float64 `json:"layer_10"`
	Metabolism  map[string]float64 `json:"layer_11"`
	Evolution   EvolutionLayer     `json:"layer_12"`
}

// Snapshot is the immutable result of one poll tick. A new Snapshot fully
// replaces the previous one; consumers hold read-only copies valid until the
// next tick. Connected=false means every value in the triple is synthetic.
type Snapshot struct {
	Network       NetworkSnapshot       `json:"network_status"`
	Consciousness ConsciousnessSnapshot `json:"consciousness_state"`
	Layers        LayerSnapshot         `json:"layers"`
	Connected     bool                  `json:"connected"`
	LastError     string                `json:"last_error,omitempty"`
	FetchedAt     time.Time             `json:"fetched_at"`
}

// digestDoc pins which fields participate in the digest: the data triple
// only, so two ticks with identical data but different fetch times or error
// text compare equal.
type digestDoc struct {
	Network       NetworkSnapshot       `json:"network_status"`
	Consciousness ConsciousnessSnapshot `json:"consciousness_state"`
	Layers        LayerSnapshot         `json:"layers"`
	Connected     bool                  `json:"connected"`
}

// Digest returns a stable hash of the snapshot's data triple. History uses
// it to skip storing unchanged consecutive snapshots and the dashboard uses
// it to skip redundant redraws.
func (s Snapshot) Digest() uint64 {
	encoded, err := json.Marshal(digestDoc{
		Network:       s.Network,
		Consciousness: s.Consciousness,
		Layers:        s.Layers,
		Connected:     s.Connected,
	})
	if err != nil {
		return 0
	}
	return xxh3.Hash(encoded)
}

// statusDocument mirrors the wire body of /api/status. All three keys are
// optional; a nil field means the backend omitted it and the poller fills it
// with a synthetic value.
type statusDocument struct {
	Network       *NetworkSnapshot       `json:"network_status"`
	Consciousness *ConsciousnessSnapshot `json:"consciousness_state"`
	Layers        *LayerSnapshot         `json:"layers"`
}

func parseStatusDocument(body []byte) (statusDocument, error) {
	var doc statusDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return statusDocument{}, err
	}
	return doc, nil
}
