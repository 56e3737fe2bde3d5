package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/degenrun/degenrun/internal/analytics"
	"github.com/degenrun/degenrun/internal/application/agent"
	"github.com/degenrun/degenrun/internal/application/execution"
	"github.com/degenrun/degenrun/internal/application/rebalance"
	"github.com/degenrun/degenrun/internal/application/scheduler"
	"github.com/degenrun/degenrun/internal/application/worker"
	"github.com/degenrun/degenrun/internal/config"
	"github.com/degenrun/degenrun/internal/data/aggregator"
	"github.com/degenrun/degenrun/internal/data/cache"
	"github.com/degenrun/degenrun/internal/domain/gates"
	"github.com/degenrun/degenrun/internal/domain/scoring"
	"github.com/degenrun/degenrun/internal/infrastructure/providers"
	"github.com/degenrun/degenrun/internal/infrastructure/venue"
	httpiface "github.com/degenrun/degenrun/internal/interfaces/http"
	"github.com/degenrun/degenrun/internal/persistence"
	"github.com/degenrun/degenrun/internal/persistence/memory"
	"github.com/degenrun/degenrun/internal/persistence/postgres"
	rediskv "github.com/degenrun/degenrun/internal/persistence/redis"
)

var configPath string

func main() {
	setupLogging()

	root := &cobra.Command{
		Use:   "degenrun",
		Short: "Autonomous trading agent: scan, decide, execute, rebalance",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config YAML")

	root.AddCommand(runCmd(), scanCmd(), healthCmd())

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

// setupLogging emits console output on a TTY, JSON otherwise.
func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	if lvl := os.Getenv("DEGENRUN_LOG_LEVEL"); lvl != "" {
		if parsed, err := zerolog.ParseLevel(lvl); err == nil {
			zerolog.SetGlobalLevel(parsed)
		}
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full agent (scheduler, worker, rebalancer, http)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent()
		},
	}
}

func runAgent() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer deps.close()

	metrics := httpiface.NewMetrics()

	w := worker.New(worker.DefaultOptions(), deps.tasks, metrics)
	sched := scheduler.New(deps.tasks, w)

	tracker, err := analytics.NewTracker(ctx, deps.kv, deps.slippage)
	if err != nil {
		return fmt.Errorf("init analytics: %w", err)
	}

	var stream *venue.PriceStream
	if cfg.Venue.WSURL != "" {
		stream = venue.NewPriceStream(cfg.Venue.WSURL, nil)
		stream.Start(ctx)
		defer stream.Stop()
	}
	venueClient := venue.NewClient(cfg.Venue, stream)

	gate := gates.New(gates.Floors{
		MinLiquidity: cfg.Validation.MinLiquidity,
		MinVolume24h: cfg.Validation.MinVolume24h,
	}, deps.market)

	agg := aggregator.New(deps.feeds, deps.market, deps.cache, cfg.Cache.TTL.Std())
	engine := scoring.NewEngine(scoring.Thresholds{
		MinScore:     cfg.Scoring.MinScore,
		MinLiquidity: cfg.Scoring.MinLiquidity,
		MinVolume24h: cfg.Scoring.MinVolume24h,
	}, agg.GetTokenMarketData)

	exec := execution.New(cfg.Execution, gate, agg, deps.quotes, venueClient, tracker)
	rebalancer := rebalance.New(cfg.Rebalance, venueClient, metrics)

	app := agent.New(cfg, agg, engine, exec, rebalancer, sched, venueClient, tracker, metrics)
	app.Register()

	server := httpiface.NewServer(cfg.HTTP, metrics, healthSource{w: w, r: rebalancer})
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("http server failed")
		}
	}()

	w.Start(ctx)
	if err := sched.Resume(ctx); err != nil {
		log.Warn().Err(err).Msg("task resume failed, continuing")
	}
	sched.Start(ctx)

	log.Info().Msg("agent running")
	<-ctx.Done()
	log.Info().Msg("shutting down")

	sched.Stop()
	w.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	return nil
}

// healthSource adapts worker + rebalancer state for /health.
type healthSource struct {
	w *worker.Worker
	r *rebalance.Rebalancer
}

func (h healthSource) PendingJobs() int { return h.w.Pending() }

func (h healthSource) StuckPositions() []string {
	stuck := h.r.Stuck()
	mints := make([]string, 0, len(stuck))
	for mint := range stuck {
		mints = append(mints, mint)
	}
	return mints
}

// deps bundles the swappable infrastructure. Postgres and redis degrade to
// in-memory implementations when no DSN/addr is configured, so the scan
// command works without backing services.
type deps struct {
	tasks    persistence.TaskRepo
	kv       persistence.KVStore
	slippage persistence.SlippageRepo
	cache    cache.Cache
	feeds    []providers.SignalFeed
	market   *providers.MarketDataClient
	quotes   providers.QuoteSource
	db       *sqlx.DB
	memCache *cache.TTLCache
}

func buildDeps(cfg *config.Config) (*deps, error) {
	d := &deps{}

	guards := providers.NewGuardSet(cfg.Providers.RPS, cfg.Providers.Burst)
	d.feeds = providers.NewFeeds(cfg.Providers, guards)
	d.market = providers.NewMarketDataClient(cfg.Providers, guards)
	d.quotes = providers.NewQuoteClient(cfg.Providers, guards)

	if cfg.Redis.Addr != "" {
		d.cache = cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		d.kv = rediskv.NewKVStore(rediskv.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB))
	} else {
		d.memCache = cache.NewTTLCache(cfg.Cache.MaxEntries)
		d.cache = d.memCache
		d.kv = memory.NewKVStore()
	}

	if cfg.Postgres.DSN != "" {
		db, err := sqlx.Connect("postgres", cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		d.db = db
		d.tasks = postgres.NewTasksRepo(db, cfg.Postgres.Timeout.Std())
		d.slippage = postgres.NewSlippageRepo(db, cfg.Postgres.Timeout.Std())
	} else {
		log.Warn().Msg("no postgres dsn, using in-memory repositories")
		d.tasks = memory.NewTaskRepo()
		d.slippage = memory.NewSlippageRepo()
	}
	return d, nil
}

func (d *deps) close() {
	if d.db != nil {
		d.db.Close()
	}
	if d.memCache != nil {
		d.memCache.Close()
	}
}
