package status

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"
)

// Config holds the poller tunables. The endpoint base URL is the only
// required field; interval and timeout default to the reference behavior
// (5 s each).
type Config struct {
	Endpoint       string
	Interval       time.Duration
	RequestTimeout time.Duration
}

func (c *Config) normalize() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 5 * time.Second
	}
}

// Subscriber is notified synchronously after each completed poll tick,
// success or fallback, with the freshly swapped-in snapshot. Callbacks run on
// the poll goroutine and must not block.
type Subscriber func(Snapshot)

type subEntry struct {
	id int
	fn Subscriber
}

// Poller owns the current snapshot triple and re-synchronizes it on a fixed
// schedule. It is an explicit, caller-owned object: construct with New, start
// with Start, tear down with Stop.
//
// Scheduling is fixed-delay: the next tick is armed only after the current
// poll settles, so at most one request is ever in flight.
type Poller struct {
	cfg    Config
	logger *log.Logger
	fetch  *fetcher
	gen    *generator

	mu      sync.RWMutex
	current Snapshot
	subs    []subEntry
	nextSub int
	started bool
	stopped bool

	stop chan struct{}
	done chan struct{}
}

// New builds a poller and seeds it with a synthetic baseline so Current never
// blocks, even before the first poll completes.
func New(cfg Config, logger *log.Logger) *Poller {
	cfg.normalize()
	p := &Poller{
		cfg:    cfg,
		logger: logger,
		fetch:  newFetcher(cfg.Endpoint, &http.Client{Timeout: cfg.RequestTimeout}),
		gen:    newGenerator(time.Now().UnixNano()),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.current = Snapshot{
		Network:       p.gen.Network(),
		Consciousness: p.gen.Consciousness(),
		Layers:        p.gen.Layers(),
		Connected:     false,
		FetchedAt:     time.Now().UTC(),
	}
	return p
}

// Start begins polling: one immediate poll, then one poll per interval. It is
// a no-op on repeated calls.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)
	for {
		p.poll(ctx)
		timer := time.NewTimer(p.cfg.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-p.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Stop cancels future polls. An in-flight request is allowed to finish but
// its result is discarded; once Stop returns no subscriber sees another
// notification and Current no longer changes.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()

	close(p.stop)
	if started {
		<-p.done
	}
}

// Current returns the latest resolved snapshot. Never blocks.
func (p *Poller) Current() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Subscribe registers a consumer and returns its unsubscribe function.
func (p *Poller) Subscribe(fn Subscriber) func() {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs = append(p.subs, subEntry{id: id, fn: fn})
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, sub := range p.subs {
			if sub.id == id {
				p.subs = append(p.subs[:i], p.subs[i+1:]...)
				return
			}
		}
	}
}

// SetEndpoint retargets the polling endpoint. Takes effect on the next tick.
func (p *Poller) SetEndpoint(endpoint string) {
	p.fetch.SetEndpoint(endpoint)
}

// Endpoint returns the current endpoint base URL.
func (p *Poller) Endpoint() string {
	return p.fetch.Endpoint()
}

// poll executes one fetch-or-fallback cycle and publishes the result.
func (p *Poller) poll(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	doc, err := p.fetch.Fetch(reqCtx)
	cancel()

	now := time.Now().UTC()
	var snap Snapshot
	if err != nil {
		// Full replacement: a failed poll never merges partial data with
		// stale state.
		snap = Snapshot{
			Network:       p.gen.Network(),
			Consciousness: p.gen.Consciousness(),
			Layers:        p.gen.Layers(),
			Connected:     false,
			LastError:     err.Error(),
			FetchedAt:     now,
		}
		p.logf("status: poll failed: %v", err)
	} else {
		snap = p.resolve(doc, now)
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.current = snap
	subs := make([]subEntry, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}

// resolve builds a connected snapshot from a decoded document, substituting
// synthetic values for any missing top-level key.
func (p *Poller) resolve(doc statusDocument, now time.Time) Snapshot {
	snap := Snapshot{Connected: true, FetchedAt: now}

	if doc.Network != nil {
		snap.Network = *doc.Network
	} else {
		snap.Network = p.gen.Network()
	}
	if doc.Consciousness != nil {
		snap.Consciousness = *doc.Consciousness
	} else {
		snap.Consciousness = p.gen.Consciousness()
	}
	snap.Consciousness.IsAlive = snap.Consciousness.IsAlive ||
		snap.Consciousness.Level > AliveLevelThreshold
	if doc.Layers != nil {
		snap.Layers = *doc.Layers
	} else {
		snap.Layers = p.gen.Layers()
	}
	return snap
}

func (p *Poller) logf(format string, args ...any) {
	if p == nil || p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}
