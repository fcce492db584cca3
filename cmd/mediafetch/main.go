// Command mediafetch downloads every photo of a public profile into a local
// directory. Without a query hash only the first page of the timeline is
// reachable; the hash is generated in the web client and changes frequently.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/Sternrassler/mediafetch/pkg/client"
	"github.com/Sternrassler/mediafetch/pkg/download"
	"github.com/Sternrassler/mediafetch/pkg/logging"
	"github.com/Sternrassler/mediafetch/pkg/media"
	"github.com/Sternrassler/mediafetch/pkg/metrics"
	"github.com/Sternrassler/mediafetch/pkg/pagination"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultUserAgent = "mediafetch/1.0"

type options struct {
	username    string
	dir         string
	ext         string
	force       bool
	queryHash   string
	bufferSize  int
	redisURL    string
	logLevel    string
	pretty      bool
	metricsAddr string
	baseURL     string
	userAgent   string
}

func main() {
	opts, err := parseOptions(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(opts.logLevel),
		Pretty: opts.pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, opts, os.Stdout)
	stop()
	if err != nil {
		log.Error().Err(err).Str("username", opts.username).Msg("Download aborted")
		os.Exit(1)
	}
}

func parseOptions(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("mediafetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: mediafetch [flags] <username>")
		fs.PrintDefaults()
	}

	fs.BoolVar(&opts.force, "force", false, "overwrite files that already exist locally")
	fs.StringVar(&opts.queryHash, "query-hash", getEnv("MEDIAFETCH_QUERY_HASH", ""), "query hash used to request further pages")
	fs.IntVar(&opts.bufferSize, "buffer-size", download.DefaultMaxConcurrency, "maximum number of photos downloaded simultaneously")
	fs.StringVar(&opts.dir, "dir", "", "target directory (default: the username)")
	fs.StringVar(&opts.ext, "ext", download.DefaultExtension, "file extension of saved photos")
	fs.StringVar(&opts.redisURL, "redis", getEnv("REDIS_URL", ""), "redis address or URL for the page cache (disabled when empty)")
	fs.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", string(logging.LevelWarn)), "log level (debug, info, warn, error)")
	fs.BoolVar(&opts.pretty, "pretty", true, "human-readable logs instead of JSON")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", getEnv("METRICS_ADDR", ""), "serve Prometheus metrics on this address during the run")
	fs.StringVar(&opts.baseURL, "base-url", client.DefaultBaseURL, "base URL of the web endpoint")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return options{}, fmt.Errorf("expected exactly one username, got %d arguments", fs.NArg())
	}
	if opts.bufferSize <= 0 {
		return options{}, fmt.Errorf("buffer-size must be > 0 (got %d)", opts.bufferSize)
	}

	opts.username = fs.Arg(0)
	if opts.dir == "" {
		opts.dir = opts.username
	}
	opts.userAgent = getEnv("USER_AGENT", defaultUserAgent)

	return opts, nil
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}

	redisClient, err := connectRedis(ctx, opts.redisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	cfg := client.DefaultConfig(redisClient, opts.userAgent)
	cfg.BaseURL = opts.baseURL
	apiClient, err := client.New(cfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer apiClient.Close()

	if opts.metricsAddr != "" {
		stopMetrics := startMetrics(ctx, opts.metricsAddr)
		defer stopMetrics()
	}

	profile, err := apiClient.FetchProfile(ctx, opts.username)
	if err != nil {
		return fmt.Errorf("user not found: %w", err)
	}
	log.Info().
		Str("username", profile.Username).
		Str("user_id", profile.ID).
		Int("timeline_count", profile.Timeline.Count).
		Msg("Profile resolved")

	if opts.queryHash == "" && profile.SeedPage().PageInfo.More() {
		log.Warn().Msg("No query hash given, only the first page will be downloaded")
	}

	stream := pagination.NewStream(apiClient, profile.SeedPage(), profile.ID, opts.queryHash)
	pipeline := download.NewPipeline(apiClient, opts.dir, download.Policy{
		Force:          opts.force,
		MaxConcurrency: opts.bufferSize,
		Extension:      opts.ext,
	})

	styles := media.DefaultStyles()
	var summary download.Summary
	for result := range pipeline.Run(ctx, stream) {
		summary.Add(result)
		fmt.Fprintln(stdout, reportLine(styles, result))
	}

	if err := stream.Err(); err != nil {
		log.Warn().Err(err).Int("pages", stream.PagesFetched()).Msg("Pagination stopped early")
	}

	fmt.Fprintf(stdout, "\n%d downloaded, %d re-downloaded, %d already present, %d failed (%d bytes)\n",
		summary.Fetched, summary.Overwritten, summary.Skipped, summary.Failed, summary.Bytes)

	return nil
}

func reportLine(styles media.Styles, r download.Result) string {
	switch r.Outcome {
	case download.OutcomeFetched:
		return "Downloaded:     " + styles.Render(r.Item)
	case download.OutcomeOverwritten:
		return "Re-downloaded:  " + styles.Render(r.Item)
	case download.OutcomeSkipped:
		return "Already Exists: " + styles.Render(r.Item)
	default:
		return fmt.Sprintf("Couldn't download %s: %v", styles.ID.Render(r.Item.ID), r.Err)
	}
}

// connectRedis returns nil when addr is empty. Both host:port addresses and
// redis:// URLs are accepted.
func connectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}

	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis")

	return redisClient, nil
}

// startMetrics serves metrics until the returned function is called.
func startMetrics(ctx context.Context, addr string) func() {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := metrics.ListenAndServe(ctx, addr); err != nil {
			log.Warn().Err(err).Str("addr", addr).Msg("Metrics server failed")
		}
	}()

	return func() {
		cancel()
		wg.Wait()
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
