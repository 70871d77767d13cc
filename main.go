// Command lucamon monitors a LUCA organism backend: it polls /api/status on a
// fixed cadence, degrades to synthetic data when the backend is away, and
// serves the resulting snapshots to a terminal dashboard, a line-command
// console, a history store, a tick log and an MQTT topic.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"lucamon/config"
	"lucamon/console"
	"lucamon/history"
	"lucamon/publish"
	"lucamon/status"
	"lucamon/ticklog"
	"lucamon/ui"
)

const (
	defaultConfigPath = "config.yaml"

	// envConfigPath overrides the config file location at runtime.
	envConfigPath = "LUCAMON_CONFIG_PATH"

	historyPurgeInterval = 1 * time.Hour
)

// Version will be set at build time
var Version = "dev"

// Purpose: Report whether stdout is a TTY for UI gating.
// Key aspects: Uses term.IsTerminal on stdout fd.
// Upstream: main UI selection.
// Downstream: term.IsTerminal.
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Purpose: Load configuration from env/default locations.
// Key aspects: Tries env override first, then the default path; a missing
// file falls back to built-in defaults so the daemon can run on env vars
// alone.
// Upstream: main startup.
// Downstream: config.Load and os.IsNotExist.
func loadMonitorConfig() (*config.Config, string, error) {
	candidates := make([]string, 0, 2)
	if envPath := strings.TrimSpace(os.Getenv(envConfigPath)); envPath != "" {
		candidates = append(candidates, envPath)
	}
	candidates = append(candidates, defaultConfigPath)

	for _, path := range candidates {
		cfg, err := config.Load(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, path, err
		}
		return cfg, path, nil
	}

	cfg := config.Default()
	if strings.TrimSpace(cfg.Poller.Endpoint) == "" {
		return nil, "", fmt.Errorf("no config file found (tried %s) and %s is not set",
			strings.Join(candidates, ", "), config.EnvEndpoint)
	}
	return cfg, "built-in defaults", nil
}

// Purpose: Program entrypoint; wires the poller, stores, console and UI.
// Key aspects: Every consumer hangs off poller subscriptions; shutdown is
// signal-driven and stops producers before sinks.
// Upstream: OS process start.
// Downstream: Startup helpers, goroutines, and network services.
func main() {
	cfg, configSource, err := loadMonitorConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	fanout, logErr := setupLogging(cfg.Logging, os.Stdout)
	log.SetFlags(0)
	log.SetOutput(fanout)
	defer fanout.Close()
	if logErr != nil {
		log.Printf("Warning: file logging unavailable: %v", logErr)
	}

	log.Printf("lucamon v%s starting...", Version)
	log.Printf("Loaded configuration from %s", configSource)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	useDashboard := cfg.Dashboard.Enabled && (cfg.Dashboard.Force || isStdoutTTY())
	if cfg.Dashboard.Enabled && !useDashboard {
		log.Printf("Dashboard disabled (requires an interactive console)")
	}
	if !useDashboard {
		cfg.Print()
	}

	poller := status.New(status.Config{
		Endpoint:       cfg.Poller.Endpoint,
		Interval:       time.Duration(cfg.Poller.IntervalSec) * time.Second,
		RequestTimeout: time.Duration(cfg.Poller.RequestTimeoutSec) * time.Second,
	}, log.Default())

	// History store: digest-deduplicated snapshot archive with retention.
	var hist *history.Store
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			log.Printf("Warning: history store disabled: %v", err)
		} else {
			hist = store
			defer hist.Close()
			log.Printf("History: %s (%d snapshots on disk)", cfg.History.Path, hist.Count())
			poller.Subscribe(func(snap status.Snapshot) {
				if _, err := hist.Append(snap); err != nil {
					log.Printf("History: append failed: %v", err)
				}
			})
			go runHistoryPurge(ctx, hist, cfg.History.RetentionDays)
		}
	}

	// Tick log: one SQLite row per poll outcome.
	var ticks *ticklog.Logger
	if cfg.TickLog.Enabled {
		ticks = ticklog.New(cfg.TickLog.Path, cfg.TickLog.QueueSize)
		defer ticks.Close()
		log.Printf("Tick log: %s", cfg.TickLog.Path)
		poller.Subscribe(func(snap status.Snapshot) {
			ticks.Enqueue(ticklog.FromSnapshot(snap))
		})
	}

	// MQTT republisher.
	var publisher *publish.Publisher
	if cfg.MQTT.Enabled {
		publisher = publish.New(publish.Options{
			Broker: cfg.MQTT.Broker,
			Port:   cfg.MQTT.Port,
			Topic:  cfg.MQTT.Topic,
		}, log.Default())
		if err := publisher.Connect(); err != nil {
			log.Printf("Warning: MQTT publisher degraded: %v", err)
		}
		defer publisher.Stop()
		poller.Subscribe(publisher.Publish)
	}

	// Console server.
	var consoleSrv *console.Server
	if cfg.Console.Enabled {
		consoleSrv = console.NewServer(console.Options{
			Port:           cfg.Console.Port,
			MaxConnections: cfg.Console.MaxConnections,
			Welcome:        cfg.Console.WelcomeMessage,
		}, poller, hist, log.Default())
		if err := consoleSrv.Start(); err != nil {
			log.Fatalf("Error starting console server: %v", err)
		}
		defer consoleSrv.Stop()
		log.Printf("Connect via: telnet localhost %d", cfg.Console.Port)
	}

	poller.Start(ctx)
	defer poller.Stop()
	log.Printf("Polling %s every %ds (timeout %ds)",
		poller.Endpoint(), cfg.Poller.IntervalSec, cfg.Poller.RequestTimeoutSec)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if useDashboard {
		runDashboard(cfg, poller, fanout, sigChan)
	} else {
		log.Println("Monitor is running. Press Ctrl+C to stop.")
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
	}

	log.Println("Shutting down gracefully...")
}

// Purpose: Run the tview dashboard until quit, feeding it poll ticks.
// Key aspects: Log output is rerouted into the dashboard log pane while it
// owns the terminal and restored afterwards.
// Upstream: main when a usable terminal is present.
// Downstream: ui.Dashboard and poller subscription.
func runDashboard(cfg *config.Config, poller *status.Poller, fanout *logFanout, sigChan <-chan os.Signal) {
	dash := ui.New(cfg.Dashboard.TargetFPS, poller.Endpoint)

	fanout.SetConsoleSink(dash.LogWriter(), false)
	defer fanout.SetConsoleSink(os.Stdout, true)

	unsubscribe := poller.Subscribe(dash.Update)
	defer unsubscribe()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v", sig)
		dash.Stop()
	}()

	dash.Update(poller.Current())
	if err := dash.Run(); err != nil {
		fanout.SetConsoleSink(os.Stdout, true)
		log.Printf("Dashboard error: %v", err)
	}
}

// Purpose: Periodically drop history records past the retention window.
// Key aspects: Hourly cadence; first purge runs immediately on startup.
// Upstream: main when history is enabled.
// Downstream: history.Store.PurgeOlderThan.
func runHistoryPurge(ctx context.Context, hist *history.Store, retentionDays int) {
	if retentionDays <= 0 {
		return
	}
	purge := func() {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		removed, err := hist.PurgeOlderThan(cutoff)
		if err != nil {
			log.Printf("History: purge failed: %v", err)
			return
		}
		if removed > 0 {
			log.Printf("History: purged %d snapshots older than %s", removed, cutoff.Format("2006-01-02"))
		}
	}
	purge()
	ticker := time.NewTicker(historyPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purge()
		}
	}
}
