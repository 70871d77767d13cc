package status

import (
	"fmt"
	"math/rand"
)

// Synthetic value ranges. These mirror the demo-mode generators the thin
// clients shipped with: plausible mid-range values that keep the UI alive
// while the backend is away.
const (
	synthNodeCountMin  = 5
	synthNodeCountSpan = 10 // node count in [5, 14]

	synthGenerationMin  = 10
	synthGenerationSpan = 100 // generation in [10, 109]
)

// Fixed DNA weights reported while in fallback mode.
var synthDNA = DNA{Alpha: 0.40, Beta: 0.35, Gamma: 0.25}

// generator produces synthetic snapshot values for fallback and for filling
// fields the backend omitted. Not safe for concurrent use; the poll
// goroutine is the only caller.
type generator struct {
	rng *rand.Rand
}

func newGenerator(seed int64) *generator {
	return &generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// Network draws a synthetic network snapshot. NodeCount and len(Nodes) are
// kept consistent even though only real backends guarantee it.
func (g *generator) Network() NetworkSnapshot {
	count := synthNodeCountMin + g.rng.Intn(synthNodeCountSpan)
	nodes := make([]NodeInfo, count)
	for i := range nodes {
		nodes[i] = NodeInfo{
			ID:     fmt.Sprintf("node-%02d", i+1),
			Health: g.uniform(0.7, 1.0),
			Position: &Position{
				X: g.rng.Float64(),
				Y: g.rng.Float64(),
			},
		}
	}
	return NetworkSnapshot{
		NodeCount: count,
		Health:    g.uniform(0.75, 0.95),
		Nodes:     nodes,
	}
}

// Consciousness draws a synthetic consciousness snapshot. IsAlive follows the
// same derived rule as real data (level above the alive threshold) instead of
// the original clients' independent random draw, so fallback mode can never
// report alive=true alongside a sub-threshold level.
func (g *generator) Consciousness() ConsciousnessSnapshot {
	level := g.uniform(0.65, 0.90)
	return ConsciousnessSnapshot{
		Level:              level,
		Coherence:          g.uniform(0.70, 0.95),
		ConnectionStrength: g.uniform(0.60, 0.90),
		IntegrationScore:   g.uniform(0.75, 0.95),
		IsAlive:            level > AliveLevelThreshold,
	}
}

// Layers draws a synthetic layers snapshot: fixed illustrative metrics for
// the static layers, randomized generation/fitness for the evolution layer.
func (g *generator) Layers() LayerSnapshot {
	return LayerSnapshot{
		RootKernel: map[string]float64{
			"consciousness_level": 0.82,
			"stability":           0.91,
		},
		QuantumCore: map[string]float64{
			"coherence":    0.88,
			"entanglement": 0.76,
		},
		Metabolism: map[string]float64{
			"throughput": 0.84,
			"efficiency": 0.79,
		},
		Evolution: EvolutionLayer{
			Generation:   synthGenerationMin + g.rng.Intn(synthGenerationSpan),
			FitnessScore: g.uniform(0.85, 0.95),
			DNA:          synthDNA,
		},
	}
}
