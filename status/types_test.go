package status

import "testing"

func TestParseStatusDocumentPartial(t *testing.T) {
	body := []byte(`{"network_status":{"node_count":3,"health":0.5,"nodes":[]}}`)
	doc, err := parseStatusDocument(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Network == nil {
		t.Fatalf("expected network to be present")
	}
	if doc.Network.NodeCount != 3 || doc.Network.Health != 0.5 || len(doc.Network.Nodes) != 0 {
		t.Fatalf("unexpected network: %+v", doc.Network)
	}
	if doc.Consciousness != nil || doc.Layers != nil {
		t.Fatalf("expected missing keys to decode as nil")
	}
}

func TestParseStatusDocumentFull(t *testing.T) {
	body := []byte(`{
		"network_status":{"node_count":1,"health":0.9,"nodes":[{"id":"n1","health":0.8,"position":{"x":0.1,"y":0.2}}]},
		"consciousness_state":{"level":0.95,"coherence":0.9,"connection_strength":0.8,"integration_score":0.85,"is_alive":false},
		"layers":{"layer_0":{"stability":0.9},"layer_10":{},"layer_11":{},"layer_12":{"generation":42,"fitness_score":0.91,"dna":{"alpha":0.4,"beta":0.35,"gamma":0.25}}}
	}`)
	doc, err := parseStatusDocument(body)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if doc.Network == nil || doc.Consciousness == nil || doc.Layers == nil {
		t.Fatalf("expected all keys present")
	}
	node := doc.Network.Nodes[0]
	if node.ID != "n1" || node.Position == nil || node.Position.Y != 0.2 {
		t.Fatalf("unexpected node: %+v", node)
	}
	if doc.Layers.Evolution.Generation != 42 {
		t.Fatalf("unexpected generation %d", doc.Layers.Evolution.Generation)
	}
	if doc.Layers.Evolution.DNA.Beta != 0.35 {
		t.Fatalf("unexpected dna %+v", doc.Layers.Evolution.DNA)
	}
}

func TestParseStatusDocumentMalformed(t *testing.T) {
	if _, err := parseStatusDocument([]byte(`{"network_status":`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDigestIgnoresFetchMetadata(t *testing.T) {
	gen := newGenerator(7)
	snap := Snapshot{
		Network:       gen.Network(),
		Consciousness: gen.Consciousness(),
		Layers:        gen.Layers(),
		Connected:     true,
	}
	other := snap
	other.LastError = "transport: connection refused"
	if snap.Digest() != other.Digest() {
		t.Fatalf("digest must ignore lastError")
	}

	changed := snap
	changed.Network.Health = snap.Network.Health / 2
	if snap.Digest() == changed.Digest() {
		t.Fatalf("digest must track data changes")
	}

	disconnected := snap
	disconnected.Connected = false
	if snap.Digest() == disconnected.Digest() {
		t.Fatalf("digest must track connectivity")
	}
}
