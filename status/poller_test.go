package status

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func checkRanges(t *testing.T, snap Snapshot) {
	t.Helper()
	if snap.Network.NodeCount < 0 {
		t.Fatalf("negative node count %d", snap.Network.NodeCount)
	}
	if snap.Network.Health < 0 || snap.Network.Health > 1 {
		t.Fatalf("network health out of range: %v", snap.Network.Health)
	}
	for _, field := range []float64{
		snap.Consciousness.Level,
		snap.Consciousness.Coherence,
		snap.Consciousness.ConnectionStrength,
		snap.Consciousness.IntegrationScore,
	} {
		if field < 0 || field > 1 {
			t.Fatalf("consciousness field out of range: %v", field)
		}
	}
	if snap.Layers.Evolution.Generation < 0 {
		t.Fatalf("negative generation %d", snap.Layers.Evolution.Generation)
	}
}

func TestBaselineBeforeFirstPoll(t *testing.T) {
	p := New(Config{Endpoint: "http://127.0.0.1:1"}, nil)
	snap := p.Current()
	if snap.Connected {
		t.Fatalf("baseline must not claim connectivity")
	}
	checkRanges(t, snap)
}

func TestUnreachableEndpointFallsBack(t *testing.T) {
	// Scenario A: nothing listens on the endpoint.
	p := New(Config{Endpoint: "http://127.0.0.1:1", RequestTimeout: time.Second}, nil)
	p.poll(context.Background())
	snap := p.Current()
	if snap.Connected {
		t.Fatalf("expected connected=false")
	}
	if snap.LastError == "" {
		t.Fatalf("expected lastError to be set")
	}
	if !strings.HasPrefix(snap.LastError, string(ErrTransport)) {
		t.Fatalf("expected transport error, got %q", snap.LastError)
	}
	checkRanges(t, snap)
}

func TestPartialBodyFillsMissingFields(t *testing.T) {
	// Scenario B: only network_status present.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"network_status":{"node_count":3,"health":0.5,"nodes":[]}}`))
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL}, nil)
	p.poll(context.Background())
	snap := p.Current()
	if !snap.Connected {
		t.Fatalf("expected connected=true, lastError=%q", snap.LastError)
	}
	if snap.LastError != "" {
		t.Fatalf("expected lastError cleared, got %q", snap.LastError)
	}
	if snap.Network.NodeCount != 3 || snap.Network.Health != 0.5 || len(snap.Network.Nodes) != 0 {
		t.Fatalf("network must reflect the body exactly: %+v", snap.Network)
	}
	// Missing keys are synthetic but present and in range.
	checkRanges(t, snap)
	if snap.Consciousness.Level < 0.65 || snap.Consciousness.Level > 0.90 {
		t.Fatalf("expected synthetic consciousness, got level %v", snap.Consciousness.Level)
	}
}

func TestHTTP500TreatedAsFullFallback(t *testing.T) {
	// Scenario C: a 5xx answer is no better than a dead socket.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL}, nil)
	p.poll(context.Background())
	snap := p.Current()
	if snap.Connected {
		t.Fatalf("expected connected=false")
	}
	if !strings.HasPrefix(snap.LastError, string(ErrProtocol)) {
		t.Fatalf("expected protocol error, got %q", snap.LastError)
	}
	checkRanges(t, snap)
}

func TestMalformedBodyTreatedAsFullFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"network_status":`))
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL}, nil)
	p.poll(context.Background())
	snap := p.Current()
	if snap.Connected {
		t.Fatalf("expected connected=false")
	}
	if !strings.HasPrefix(snap.LastError, string(ErrDecode)) {
		t.Fatalf("expected decode error, got %q", snap.LastError)
	}
}

func TestAliveRuleAppliedToRealData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"consciousness_state":{"level":0.95,"coherence":0.9,"connection_strength":0.8,"integration_score":0.85,"is_alive":false}}`))
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL}, nil)
	p.poll(context.Background())
	snap := p.Current()
	if !snap.Consciousness.IsAlive {
		t.Fatalf("level %v above threshold must imply alive", snap.Consciousness.Level)
	}
}

func TestSubscriberNotifiedOncePerTick(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL}, nil)
	var count atomic.Int64
	p.Subscribe(func(Snapshot) { count.Add(1) })

	p.poll(context.Background())
	p.poll(context.Background())
	if got := count.Load(); got != 2 {
		t.Fatalf("expected 2 notifications, got %d", got)
	}
}

func TestConsecutiveTicksReplaceWholesale(t *testing.T) {
	// Scenario D: each poll is an independent replacement, not an
	// accumulation of history.
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"network_status":{"node_count":2,"health":0.4,"nodes":[{"id":"a","health":0.5},{"id":"b","health":0.6}]}}`))
			return
		}
		w.Write([]byte(`{"network_status":{"node_count":1,"health":0.8,"nodes":[{"id":"c","health":0.9}]}}`))
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL}, nil)
	p.poll(context.Background())
	p.poll(context.Background())
	snap := p.Current()
	if snap.Network.NodeCount != 1 || len(snap.Network.Nodes) != 1 || snap.Network.Nodes[0].ID != "c" {
		t.Fatalf("second tick must fully replace the first: %+v", snap.Network)
	}
}

func TestStopSuppressesFurtherNotifications(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL, Interval: 10 * time.Millisecond}, nil)
	var mu sync.Mutex
	count := 0
	p.Subscribe(func(Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	p.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	p.Stop()

	mu.Lock()
	after := count
	mu.Unlock()
	if after == 0 {
		t.Fatalf("expected at least one notification before stop")
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	final := count
	mu.Unlock()
	if final != after {
		t.Fatalf("notifications continued after Stop: %d -> %d", after, final)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL}, nil)
	var count atomic.Int64
	unsubscribe := p.Subscribe(func(Snapshot) { count.Add(1) })
	p.poll(context.Background())
	unsubscribe()
	p.poll(context.Background())
	if got := count.Load(); got != 1 {
		t.Fatalf("expected 1 notification, got %d", got)
	}
}

func TestSetEndpointRetargetsNextPoll(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer good.Close()

	p := New(Config{Endpoint: "http://127.0.0.1:1", RequestTimeout: time.Second}, nil)
	p.poll(context.Background())
	if p.Current().Connected {
		t.Fatalf("expected first poll to fail")
	}

	p.SetEndpoint(good.URL + "/")
	if p.Endpoint() != good.URL {
		t.Fatalf("expected trailing slash to be trimmed, got %q", p.Endpoint())
	}
	p.poll(context.Background())
	if !p.Current().Connected {
		t.Fatalf("expected poll to succeed after retarget")
	}
}
