// Package ui renders the live terminal dashboard: connection banner,
// consciousness gauges, node table, layer metrics and a scrolling event log,
// refreshed from poll ticks.
package ui

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"lucamon/status"
)

const logMaxLines = 8

// Dashboard owns the tview application and its panels. Snapshot updates
// arrive via Update; panel redraws are coalesced by the frame scheduler and
// skipped entirely when the snapshot digest has not changed.
type Dashboard struct {
	app       *tview.Application
	scheduler *frameScheduler

	headerView *tview.TextView
	consView   *tview.TextView
	nodesView  *tview.TextView
	layersView *tview.TextView
	logView    *tview.TextView

	endpoint func() string

	logMu    sync.Mutex
	logLines []string

	lastDigest atomic.Uint64
	haveDigest atomic.Bool
	closed     atomic.Bool
	ready      chan struct{}
}

// New builds the dashboard but does not start the terminal application;
// call Run from the main goroutine. endpoint is queried on every redraw so
// API retargeting shows up immediately.
func New(targetFPS int, endpoint func() string) *Dashboard {
	makePane := func(title string) *tview.TextView {
		tv := tview.NewTextView().
			SetDynamicColors(true).
			SetWrap(false)
		tv.SetBorder(true).SetTitle(" " + title + " ").SetTitleAlign(tview.AlignLeft)
		return tv
	}

	header := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	cons := makePane("Consciousness")
	nodes := makePane("Network")
	layers := makePane("Layers")
	logPane := makePane("Log")
	logPane.SetTextColor(tcell.ColorYellow)

	middle := tview.NewFlex().
		AddItem(cons, 0, 1, false).
		AddItem(nodes, 0, 1, false)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, 3, 0, false).
		AddItem(middle, 9, 0, false).
		AddItem(layers, 0, 1, false).
		AddItem(logPane, logMaxLines+2, 0, false)

	app := tview.NewApplication().SetRoot(layout, true).EnableMouse(false)

	d := &Dashboard{
		app:        app,
		scheduler:  newFrameScheduler(app, targetFPS),
		headerView: header,
		consView:   cons,
		nodesView:  nodes,
		layersView: layers,
		logView:    logPane,
		endpoint:   endpoint,
		ready:      make(chan struct{}),
	}

	var once sync.Once
	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		once.Do(func() { close(d.ready) })
		return false
	})
	app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC || event.Rune() == 'q' {
			app.Stop()
			return nil
		}
		return event
	})
	return d
}

// Run starts the frame scheduler and blocks in the tview event loop until
// Stop or a quit key.
func (d *Dashboard) Run() error {
	d.scheduler.Start()
	defer d.scheduler.Stop()
	if err := d.app.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// Stop tears the application down. Safe to call more than once.
func (d *Dashboard) Stop() {
	if d == nil || !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.app.Stop()
}

// WaitReady blocks until the first frame has drawn.
func (d *Dashboard) WaitReady() {
	if d == nil || d.ready == nil {
		return
	}
	<-d.ready
}

// Update schedules a redraw for the snapshot. The header always refreshes
// (the poll age moves even when data does not); the data panels are skipped
// when the digest matches the previous tick.
func (d *Dashboard) Update(snap status.Snapshot) {
	if d == nil || d.closed.Load() {
		return
	}

	endpoint := ""
	if d.endpoint != nil {
		endpoint = d.endpoint()
	}
	headerText := strings.Join(headerLines(snap, endpoint, time.Now()), "\n")
	d.scheduler.Schedule("header", func() {
		d.headerView.SetText(headerText)
	})

	digest := snap.Digest()
	if d.haveDigest.Load() && d.lastDigest.Load() == digest {
		return
	}
	d.lastDigest.Store(digest)
	d.haveDigest.Store(true)

	consText := strings.Join(consciousnessLines(snap.Consciousness), "\n")
	nodesText := strings.Join(networkLines(snap.Network), "\n")
	layersText := strings.Join(layerLines(snap.Layers), "\n")
	d.scheduler.Schedule("consciousness", func() {
		d.consView.SetText(consText)
	})
	d.scheduler.Schedule("network", func() {
		d.nodesView.SetText(nodesText)
	})
	d.scheduler.Schedule("layers", func() {
		d.layersView.SetText(layersText)
	})
}

// AppendLog adds a timestamped line to the log pane, keeping the newest
// logMaxLines.
func (d *Dashboard) AppendLog(line string) {
	if d == nil || d.closed.Load() {
		return
	}
	d.logMu.Lock()
	d.logLines = append(d.logLines, time.Now().Format("15:04:05 ")+line)
	if len(d.logLines) > logMaxLines {
		d.logLines = d.logLines[len(d.logLines)-logMaxLines:]
	}
	text := strings.Join(d.logLines, "\n")
	d.logMu.Unlock()

	d.scheduler.Schedule("log", func() {
		d.logView.SetText(text)
		d.logView.ScrollToEnd()
	})
}

// LogWriter adapts the log pane to io.Writer so the standard logger can fan
// out into the dashboard.
func (d *Dashboard) LogWriter() *logWriter {
	if d == nil {
		return nil
	}
	return &logWriter{dash: d}
}

type logWriter struct {
	dash *Dashboard
}

func (w *logWriter) Write(p []byte) (int, error) {
	if w == nil || w.dash == nil {
		return len(p), nil
	}
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			w.dash.AppendLog(line)
		}
	}
	return len(p), nil
}
