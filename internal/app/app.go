package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/teslahub/internal/config"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver"
	"github.com/MrSnakeDoc/teslahub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/teslahub/internal/index"
	"github.com/MrSnakeDoc/teslahub/internal/logger"
	"github.com/MrSnakeDoc/teslahub/internal/redis"
	"github.com/MrSnakeDoc/teslahub/internal/relay"
	"github.com/MrSnakeDoc/teslahub/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/teslahub/internal/store/redis"
	"github.com/MrSnakeDoc/teslahub/internal/utils"
	"github.com/MrSnakeDoc/teslahub/internal/version"
)

type App struct {
	cfg           *config.Config
	logger        logger.Logger
	server        *httpserver.Server
	redisClient   *goredis.Client
	defaultsIndex *index.DefaultsIndex
	reloader      *scheduler.DefaultsReloader
	sweeper       *scheduler.SessionSweeper
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.NewWithFile(cfg.LogLevel, cfg.PrettyLog, logger.FileOptions{Path: cfg.LogFile})
}

// openBackend returns the relay backend selected by the config. The client
// is nil for the memory backend.
func openBackend(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (relay.SweepBackend, *goredis.Client, error) {
	if cfg.RelayBackend == config.BackendMemory {
		loggerClient.Warn("using the in-memory relay backend, sessions are lost on restart")
		return relay.NewMemoryBackend(), nil, nil
	}

	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	loggerClient.Info("Redis initialized successfully")

	return redisstore.NewStore(redisClient, loggerClient), redisClient, nil
}

func New() *App {
	cfg := config.Load()

	loggerClient := newLogger(cfg)

	// Initialize the relay backend early - fail fast if unavailable
	backend, redisClient, err := openBackend(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to initialize relay backend: %v", err)
		os.Exit(1)
	}

	// Initialize defaults index
	defaultsIndex := index.NewDefaultsIndex()

	// Create manual reload trigger channel
	reloadTrigger := make(chan struct{}, 1)

	// Initialize defaults reloader
	reloader := scheduler.NewDefaultsReloader(
		cfg.DefaultsFile,
		defaultsIndex,
		loggerClient,
		cfg.ReloadInterval,
		reloadTrigger,
	)

	// Initialize session sweeper
	sweeper := scheduler.NewSessionSweeper(
		backend,
		loggerClient,
		cfg.SweepInterval,
		cfg.SweepHorizon,
	)

	// Dependencies passed to routes (extend as needed).
	build := version.Get()
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        build.Version,
		Commit:         build.Commit,
		BuildDate:      build.BuildDate,
		GoVersion:      build.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		AllowedOrigins: cfg.AllowedOrigins,
		TrustProxy:     cfg.TrustProxy,
		PublicURL:      cfg.PublicURL,
		RedirectURL:    cfg.RedirectURL,
		DefaultsFile:   cfg.DefaultsFile,
		RelayBackend:   cfg.RelayBackend,
		RedisClient:    redisClient,
		Relay:          relay.NewManager(backend, cfg.SessionTimeout, loggerClient, time.Now),
		DefaultsIndex:  defaultsIndex,
		ReloadTrigger:  reloadTrigger,
		SubmitBurst:    cfg.SubmitBurst,
		SubmitPerMin:   cfg.SubmitPerMin,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:           cfg,
		logger:        loggerClient,
		server:        server,
		redisClient:   redisClient,
		defaultsIndex: defaultsIndex,
		reloader:      reloader,
		sweeper:       sweeper,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting TeslaHub v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.Get().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start defaults reloader (loads the set and starts periodic refresh)
	if err := a.reloader.Start(ctx); err != nil {
		return fmt.Errorf("failed to start defaults reloader: %w", err)
	}
	a.logger.Info("defaults reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval),
		logger.Int("entries", a.defaultsIndex.Count()))

	// Start session sweeper
	if err := a.sweeper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}
	a.logger.Info("session sweeper started",
		logger.Duration("interval", a.cfg.SweepInterval),
		logger.Duration("horizon", a.cfg.SweepHorizon))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.reloader.Stop()
	a.sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.closeRedis()

	a.logger.Info("✅ TeslaHub stopped cleanly")
	_ = a.logger.Sync()
	return nil
}

func (a *App) closeRedis() {
	if a.redisClient == nil {
		return
	}
	if err := a.redisClient.Close(); err != nil {
		a.logger.Warnf("failed to close redis: %v", err)
	} else {
		a.logger.Info("✅ Redis closed cleanly")
	}
}

// RunSweep runs one cleanup pass against the configured backend and
// returns. It is the scheduled job entry point.
func RunSweep(ctx context.Context) (int, error) {
	cfg := config.Load()
	loggerClient := newLogger(cfg)
	defer func() { _ = loggerClient.Sync() }()

	if cfg.RelayBackend == config.BackendMemory {
		loggerClient.Info("memory relay backend holds no persisted sessions, nothing to sweep")
		return 0, nil
	}

	backend, redisClient, err := openBackend(ctx, cfg, loggerClient)
	if err != nil {
		return 0, err
	}
	defer utils.MustClose(redisClient, loggerClient, "redis")

	sweeper := scheduler.NewSessionSweeper(backend, loggerClient, cfg.SweepInterval, cfg.SweepHorizon)
	return sweeper.Sweep(ctx), nil
}
