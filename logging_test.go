package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lucamon/config"
)

func TestLogFileNameForDate(t *testing.T) {
	when := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if got := logFileNameForDate(when); got != "22-Jan-2026.log" {
		t.Fatalf("expected log filename to be 22-Jan-2026.log, got %q", got)
	}
}

func TestParseLogFileDate(t *testing.T) {
	parsed, ok := parseLogFileDate("22-Jan-2026.log")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if parsed.Year() != 2026 || parsed.Month() != time.January || parsed.Day() != 22 {
		t.Fatalf("unexpected parsed date: %s", parsed.Format(time.RFC3339))
	}
	if _, ok := parseLogFileDate("notes.txt"); ok {
		t.Fatalf("expected non-log file to be rejected")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"20-Jan-2026.log",
		"21-Jan-2026.log",
		"22-Jan-2026.log",
		"notes.txt",
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	now := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if err := cleanupOldLogs(dir, now, 2); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "20-Jan-2026.log")); err == nil {
		t.Fatalf("expected 20-Jan-2026.log to be removed")
	} else if !os.IsNotExist(err) {
		t.Fatalf("stat: %v", err)
	}
	for _, name := range []string{"21-Jan-2026.log", "22-Jan-2026.log", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to remain: %v", name, err)
		}
	}
}

func TestDailyFileSinkRotatesOnDayChange(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 7)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	defer sink.Close()

	day1 := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	sink.WriteLine("first", day1)
	sink.WriteLine("second", day2)

	for _, name := range []string{"22-Jan-2026.log", "23-Jan-2026.log"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if len(data) == 0 {
			t.Fatalf("%s is empty", name)
		}
	}
}

func TestFanoutSplitsLines(t *testing.T) {
	var got []string
	sink := &captureSink{lines: &got}
	fanout := newLogFanout(sink, nil)

	if _, err := fanout.Write([]byte("one\ntwo\npart")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("unexpected lines: %v", got)
	}
	if _, err := fanout.Write([]byte("ial\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(got) != 3 || got[2] != "partial" {
		t.Fatalf("expected buffered partial line to complete: %v", got)
	}
}

func TestSetupLoggingDisabledFile(t *testing.T) {
	var sb strings.Builder
	fanout, err := setupLogging(config.LoggingConfig{Enabled: false}, &sb)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	defer fanout.Close()
	if _, err := fanout.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(sb.String(), "hello") {
		t.Fatalf("console sink did not receive line: %q", sb.String())
	}
}

type captureSink struct {
	lines *[]string
}

func (c *captureSink) WriteLine(line string, _ time.Time) {
	*c.lines = append(*c.lines, line)
}

func (c *captureSink) Close() error { return nil }
