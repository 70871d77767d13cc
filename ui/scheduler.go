package ui

import (
	"sync"
	"time"

	"github.com/rivo/tview"
)

// frameScheduler coalesces panel updates and caps the draw rate. Each panel
// schedules under its own id; only the newest update per panel survives until
// the next frame, so a fast tick stream costs one draw per frame, not one per
// tick.
type frameScheduler struct {
	app       *tview.Application
	pending   map[string]func()
	mu        sync.Mutex
	quit      chan struct{}
	done      chan struct{}
	wg        sync.WaitGroup
	frameTime time.Duration
}

func newFrameScheduler(app *tview.Application, targetFPS int) *frameScheduler {
	if targetFPS <= 0 {
		targetFPS = 10
	}
	return &frameScheduler{
		app:       app,
		pending:   make(map[string]func()),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		frameTime: time.Second / time.Duration(targetFPS),
	}
}

func (f *frameScheduler) Start() {
	f.wg.Add(1)
	go f.run()
}

func (f *frameScheduler) Stop() {
	close(f.quit)
	select {
	case <-f.done:
	case <-time.After(100 * time.Millisecond):
	}
}

// Schedule queues fn under id, replacing any update already pending for the
// same panel.
func (f *frameScheduler) Schedule(id string, fn func()) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.pending[id] = fn
	f.mu.Unlock()
}

func (f *frameScheduler) run() {
	defer f.wg.Done()
	defer close(f.done)

	ticker := time.NewTicker(f.frameTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.flush()
		case <-f.quit:
			return
		}
	}
}

func (f *frameScheduler) flush() {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return
	}
	batch := make([]func(), 0, len(f.pending))
	for _, fn := range f.pending {
		batch = append(batch, fn)
	}
	for key := range f.pending {
		delete(f.pending, key)
	}
	f.mu.Unlock()

	f.app.QueueUpdateDraw(func() {
		for _, fn := range batch {
			fn()
		}
	})
}
