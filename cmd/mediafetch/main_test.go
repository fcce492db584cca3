package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Sternrassler/mediafetch/internal/testutil"
	"github.com/Sternrassler/mediafetch/pkg/client"
	"github.com/Sternrassler/mediafetch/pkg/download"
	"github.com/Sternrassler/mediafetch/pkg/media"
	"github.com/alicebob/miniredis/v2"
)

func TestParseOptions(t *testing.T) {
	t.Setenv("MEDIAFETCH_QUERY_HASH", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("USER_AGENT", "")

	t.Run("defaults", func(t *testing.T) {
		opts, err := parseOptions([]string{"alice"}, io.Discard)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		if opts.username != "alice" || opts.dir != "alice" {
			t.Errorf("Expected username and dir 'alice', got %q and %q", opts.username, opts.dir)
		}
		if opts.bufferSize != download.DefaultMaxConcurrency {
			t.Errorf("Expected buffer size %d, got %d", download.DefaultMaxConcurrency, opts.bufferSize)
		}
		if opts.ext != "jpg" || opts.force || opts.queryHash != "" || opts.redisURL != "" {
			t.Errorf("Unexpected defaults: %+v", opts)
		}
		if opts.baseURL != client.DefaultBaseURL {
			t.Errorf("Expected base URL %s, got %s", client.DefaultBaseURL, opts.baseURL)
		}
		if opts.userAgent != defaultUserAgent {
			t.Errorf("Expected user agent %s, got %s", defaultUserAgent, opts.userAgent)
		}
	})

	t.Run("flags", func(t *testing.T) {
		opts, err := parseOptions([]string{"-force", "-query-hash", "abc", "-buffer-size", "4", "-dir", "out", "-ext", "png", "bob"}, io.Discard)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if !opts.force || opts.queryHash != "abc" || opts.bufferSize != 4 || opts.dir != "out" || opts.ext != "png" {
			t.Errorf("Flags not applied: %+v", opts)
		}
	})

	t.Run("env fallback", func(t *testing.T) {
		t.Setenv("MEDIAFETCH_QUERY_HASH", "from-env")
		t.Setenv("REDIS_URL", "localhost:6379")
		t.Setenv("USER_AGENT", "custom/2.0")

		opts, err := parseOptions([]string{"carol"}, io.Discard)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if opts.queryHash != "from-env" || opts.redisURL != "localhost:6379" || opts.userAgent != "custom/2.0" {
			t.Errorf("Environment not applied: %+v", opts)
		}

		opts, err = parseOptions([]string{"-query-hash", "from-flag", "carol"}, io.Discard)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if opts.queryHash != "from-flag" {
			t.Errorf("Expected flag to override environment, got %q", opts.queryHash)
		}
	})

	errorCases := []struct {
		name string
		args []string
	}{
		{"missing username", []string{}},
		{"too many arguments", []string{"a", "b"}},
		{"zero buffer", []string{"-buffer-size", "0", "a"}},
		{"unknown flag", []string{"-nope", "a"}},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseOptions(tt.args, io.Discard); err == nil {
				t.Error("Expected error")
			}
		})
	}

	t.Run("help", func(t *testing.T) {
		_, err := parseOptions([]string{"-h"}, io.Discard)
		if !errors.Is(err, flag.ErrHelp) {
			t.Errorf("Expected flag.ErrHelp, got %v", err)
		}
	})
}

func newOptions(t *testing.T, mock *testutil.MockServer) options {
	t.Helper()
	return options{
		username:   "alice",
		dir:        filepath.Join(t.TempDir(), "alice"),
		ext:        "jpg",
		queryHash:  "hash",
		bufferSize: 4,
		baseURL:    mock.URL(),
		userAgent:  "mediafetch-test/1.0",
	}
}

func TestRun(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	mock.SetProfile("alice", "42", mock.Timeline(true, "c1", "one", "two"))
	mock.SetPage("c1", mock.Timeline(false, "", "three", "broken"))
	mock.SetMedia("one", []byte("1"), 0)
	mock.SetMedia("two", []byte("22"), 0)
	mock.SetMedia("three", []byte("333"), 0)

	opts := newOptions(t, mock)
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(opts.dir, "two.jpg"), []byte("kept"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	if err := run(context.Background(), opts, &stdout); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out := stdout.String()
	for _, want := range []string{
		"Downloaded:     ",
		"Already Exists: ",
		"Couldn't download",
		"broken",
		"caption one",
		"2 downloaded, 0 re-downloaded, 1 already present, 1 failed (4 bytes)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}

	if data, _ := os.ReadFile(filepath.Join(opts.dir, "two.jpg")); string(data) != "kept" {
		t.Errorf("Existing file was modified: %q", data)
	}
	if _, err := os.Stat(filepath.Join(opts.dir, "broken.jpg")); !os.IsNotExist(err) {
		t.Error("Failed download left a file behind")
	}
}

func TestRun_Force(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	mock.SetProfile("alice", "42", mock.Timeline(false, "", "one"))
	mock.SetMedia("one", []byte("new"), 0)

	opts := newOptions(t, mock)
	opts.force = true
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(opts.dir, "one.jpg"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	if err := run(context.Background(), opts, &stdout); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !strings.Contains(stdout.String(), "Re-downloaded:  ") {
		t.Errorf("Expected re-download line, got:\n%s", stdout.String())
	}
	if data, _ := os.ReadFile(filepath.Join(opts.dir, "one.jpg")); string(data) != "new" {
		t.Errorf("Expected overwritten content, got %q", data)
	}
}

func TestRun_WithoutQueryHashStopsAfterSeed(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	mock.SetProfile("alice", "42", mock.Timeline(true, "c1", "one"))
	mock.SetMedia("one", []byte("1"), 0)

	opts := newOptions(t, mock)
	opts.queryHash = ""

	var stdout bytes.Buffer
	if err := run(context.Background(), opts, &stdout); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if n := len(mock.PageRequests()); n != 0 {
		t.Errorf("Expected no page requests, got %d", n)
	}
	if !strings.Contains(stdout.String(), "1 downloaded") {
		t.Errorf("Unexpected output:\n%s", stdout.String())
	}
}

func TestRun_ProfileNotFound(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	opts := newOptions(t, mock)

	err := run(context.Background(), opts, io.Discard)
	if !errors.Is(err, client.ErrProfileNotFound) {
		t.Errorf("Expected ErrProfileNotFound, got %v", err)
	}
}

func TestRun_WithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	mock := testutil.NewMockServer()
	defer mock.Close()

	mock.SetProfile("alice", "42", mock.Timeline(true, "c1", "one"))
	mock.SetPage("c1", mock.Timeline(false, "", "two"))
	mock.SetMedia("one", []byte("1"), 0)
	mock.SetMedia("two", []byte("2"), 0)

	opts := newOptions(t, mock)
	opts.redisURL = mr.Addr()

	if err := run(context.Background(), opts, io.Discard); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(mr.Keys()) == 0 {
		t.Error("Expected the page response to be cached in redis")
	}
}

func TestRun_RedisUnavailable(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	opts := newOptions(t, mock)
	opts.redisURL = "127.0.0.1:1"

	if err := run(context.Background(), opts, io.Discard); err == nil {
		t.Error("Expected error when redis is unreachable")
	}
}

func TestReportLine(t *testing.T) {
	styles := media.DefaultStyles()
	item := media.Item{ID: "abc", Caption: "hello"}

	tests := []struct {
		result download.Result
		prefix string
	}{
		{download.Result{Item: item, Outcome: download.OutcomeFetched}, "Downloaded:     "},
		{download.Result{Item: item, Outcome: download.OutcomeOverwritten}, "Re-downloaded:  "},
		{download.Result{Item: item, Outcome: download.OutcomeSkipped}, "Already Exists: "},
		{download.Result{Item: item, Outcome: download.OutcomeFailed, Err: errors.New("boom")}, "Couldn't download "},
	}

	for _, tt := range tests {
		t.Run(string(tt.result.Outcome), func(t *testing.T) {
			line := reportLine(styles, tt.result)
			if !strings.HasPrefix(line, tt.prefix) {
				t.Errorf("Expected prefix %q, got %q", tt.prefix, line)
			}
			if !strings.Contains(line, "abc") {
				t.Errorf("Expected line to contain the identifier, got %q", line)
			}
		})
	}

	if line := reportLine(styles, tests[3].result); !strings.HasSuffix(line, ": boom") {
		t.Errorf("Expected error suffix, got %q", line)
	}
}
