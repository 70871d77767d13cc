package status

import "testing"

func TestSyntheticNetworkRanges(t *testing.T) {
	gen := newGenerator(1)
	for i := 0; i < 200; i++ {
		net := gen.Network()
		if net.NodeCount < 5 || net.NodeCount > 14 {
			t.Fatalf("node count out of range: %d", net.NodeCount)
		}
		if len(net.Nodes) != net.NodeCount {
			t.Fatalf("node count %d != len(nodes) %d", net.NodeCount, len(net.Nodes))
		}
		if net.Health < 0.75 || net.Health > 0.95 {
			t.Fatalf("network health out of range: %v", net.Health)
		}
		seen := make(map[string]bool, len(net.Nodes))
		for _, node := range net.Nodes {
			if node.Health < 0.7 || node.Health > 1.0 {
				t.Fatalf("node health out of range: %v", node.Health)
			}
			if seen[node.ID] {
				t.Fatalf("duplicate node id %q", node.ID)
			}
			seen[node.ID] = true
		}
	}
}

func TestSyntheticConsciousnessRanges(t *testing.T) {
	gen := newGenerator(2)
	for i := 0; i < 200; i++ {
		c := gen.Consciousness()
		if c.Level < 0.65 || c.Level > 0.90 {
			t.Fatalf("level out of range: %v", c.Level)
		}
		if c.Coherence < 0.70 || c.Coherence > 0.95 {
			t.Fatalf("coherence out of range: %v", c.Coherence)
		}
		if c.ConnectionStrength < 0.60 || c.ConnectionStrength > 0.90 {
			t.Fatalf("connection strength out of range: %v", c.ConnectionStrength)
		}
		if c.IntegrationScore < 0.75 || c.IntegrationScore > 0.95 {
			t.Fatalf("integration score out of range: %v", c.IntegrationScore)
		}
		// The derived alive rule replaces the legacy independent draw, and
		// synthetic levels never exceed the threshold.
		if c.IsAlive {
			t.Fatalf("synthetic snapshot reported alive with level %v", c.Level)
		}
	}
}

func TestSyntheticLayers(t *testing.T) {
	gen := newGenerator(3)
	for i := 0; i < 200; i++ {
		layers := gen.Layers()
		if layers.Evolution.Generation < 10 || layers.Evolution.Generation > 109 {
			t.Fatalf("generation out of range: %d", layers.Evolution.Generation)
		}
		if layers.Evolution.FitnessScore < 0.85 || layers.Evolution.FitnessScore > 0.95 {
			t.Fatalf("fitness out of range: %v", layers.Evolution.FitnessScore)
		}
		if layers.Evolution.DNA != synthDNA {
			t.Fatalf("unexpected DNA weights: %+v", layers.Evolution.DNA)
		}
		if len(layers.RootKernel) == 0 || len(layers.QuantumCore) == 0 || len(layers.Metabolism) == 0 {
			t.Fatalf("static layers must not be empty")
		}
	}
}
