// Command splegis-crawl walks the São Paulo city council search portal and
// stores the proposals it finds.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/assessorai/splegis-crawler/pkg/config"
	"github.com/assessorai/splegis-crawler/pkg/fetch"
	"github.com/assessorai/splegis-crawler/pkg/logging"
	"github.com/assessorai/splegis-crawler/pkg/pacer"
	"github.com/assessorai/splegis-crawler/pkg/pipeline"
	"github.com/assessorai/splegis-crawler/pkg/proposicao"
	"github.com/assessorai/splegis-crawler/pkg/walker"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (empty: built-in defaults)")
	dataInicio := flag.String("data-inicio", "", "filing date lower bound, dd/mm/yyyy")
	dataFim := flag.String("data-fim", "", "filing date upper bound, dd/mm/yyyy")
	limit := flag.Int("limit", -1, "stop after this many records (0: unlimited)")
	dryRun := flag.Bool("dry-run", false, "log records without downloading or storing them")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Environment overrides config file, flags override both.
	cfg.Redis = getEnv("REDIS_URL", cfg.Redis)
	cfg.Storage.Mongo.URI = getEnv("MONGO_URL", cfg.Storage.Mongo.URI)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	if getEnv("LOG_PRETTY", "") == "true" {
		cfg.Log.Pretty = true
	}
	if *dataInicio != "" {
		cfg.Crawl.DataInicio = *dataInicio
	}
	if *dataFim != "" {
		cfg.Crawl.DataFim = *dataFim
	}
	if *limit >= 0 {
		cfg.Crawl.Limit = *limit
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Log.Level),
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(redisOptions(cfg.Redis))
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis", cfg.Redis).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis", cfg.Redis).Msg("Connected to Redis")

	fetchCfg := fetch.DefaultConfig(redisClient, cfg.Portal.UserAgent)
	fetchCfg.Timeout = cfg.Timeout()
	fetchCfg.CacheTTL = cfg.CacheTTL()
	fetchCfg.Pacing = pacer.Config{
		MinInterval: cfg.MinInterval(),
		MaxInterval: cfg.MaxInterval(),
	}
	if cfg.Fetch.MaxRetries > 0 {
		fetchCfg.Retry.MaxAttempts = cfg.Fetch.MaxRetries
	}
	client, err := fetch.New(fetchCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create fetch client")
	}

	var sink walker.Sink
	if *dryRun {
		sink = pipeline.New(nil, nil, pipeline.WithDryRun())
	} else {
		store, err := pipeline.NewStore(ctx, cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database, cfg.Storage.Mongo.Collection)
		if err != nil {
			logger.Fatal().Err(err).Str("mongo", cfg.Storage.Mongo.URI).Msg("Failed to connect to MongoDB")
		}
		defer store.Close(context.Background())
		logger.Info().Str("mongo", cfg.Storage.Mongo.URI).Msg("Connected to MongoDB")

		sink = pipeline.New(store, pipeline.NewDownloader(client, cfg.Storage.Root))
	}

	w, err := walker.New(walker.Config{
		Source: proposicao.Source{
			House: cfg.Source.House,
			UF:    cfg.Source.UF,
			Slug:  cfg.Source.Slug,
		},
		BaseURL:     cfg.Portal.BaseURL,
		ListingPath: cfg.Portal.ListingPath,
		Referer:     cfg.Portal.Referer,
		PageSize:    cfg.Crawl.PageSize,
		DataInicio:  cfg.Crawl.DataInicio,
		DataFim:     cfg.Crawl.DataFim,
		Limit:       cfg.Crawl.Limit,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create walker")
	}

	go serveMetrics(cfg.Metrics.Addr)
	logger.Info().
		Str("portal", cfg.Portal.BaseURL).
		Str("source", cfg.Source.Slug).
		Int("limit", cfg.Crawl.Limit).
		Bool("dry_run", *dryRun).
		Msg("Starting crawl")

	summary, err := w.Run(ctx, client, sink)
	if err != nil {
		logger.Error().
			Err(err).
			Int("pages", summary.Pages).
			Int("emitted", summary.Emitted).
			Msg("Crawl failed")
		os.Exit(1)
	}

	logger.Info().
		Int("pages", summary.Pages).
		Int("emitted", summary.Emitted).
		Int("sink_errors", summary.SinkErrors).
		Str("reason", summary.Reason).
		Dur("duration", summary.Duration).
		Msg("Crawl finished")
}

// serveMetrics exposes /metrics and /health. Crawls are batch runs, so a
// failure to bind is logged, not fatal.
func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger := logging.NewLogger("metrics")
		logger.Warn().Err(err).Str("addr", addr).Msg("Metrics server stopped")
	}
}

// redisOptions accepts both redis:// URLs and bare host:port addresses.
func redisOptions(rawURL string) *redis.Options {
	if opts, err := redis.ParseURL(rawURL); err == nil {
		return opts
	}
	return &redis.Options{Addr: rawURL}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
