package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkhub/internal/config"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver"
	"github.com/MrSnakeDoc/linkhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkhub/internal/logger"
	"github.com/MrSnakeDoc/linkhub/internal/metrics"
	"github.com/MrSnakeDoc/linkhub/internal/profiles"
	"github.com/MrSnakeDoc/linkhub/internal/redis"
	"github.com/MrSnakeDoc/linkhub/internal/scheduler"
	"github.com/MrSnakeDoc/linkhub/internal/store"
	redisstore "github.com/MrSnakeDoc/linkhub/internal/store/redis"
	"github.com/MrSnakeDoc/linkhub/internal/utils"
	"github.com/MrSnakeDoc/linkhub/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	backend     store.Backend
	redisClient *goredis.Client
	seeder      *scheduler.SeedReloader
}

// New wires every component from cfg. Redis, when configured, must answer
// within its connect timeout or startup fails.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	m := metrics.New()

	verifier, err := NewVerifier(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := OpenBackend(ctx, cfg, loggerClient)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}
	loggerClient.Info("profile backend ready", logger.String("backend", backend.Name()))

	redisClient, err := connectRedis(ctx, cfg, loggerClient)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	if redisClient != nil {
		backend = redisstore.NewCache(backend, redisClient, cfg.CacheTTL, loggerClient, m)
	}

	profileStore := profiles.New(backend, loggerClient, m)

	var (
		seeder      *scheduler.SeedReloader
		seedTrigger chan struct{}
	)
	if cfg.SeedFile != "" {
		seedTrigger = make(chan struct{}, 1)
		seeder = scheduler.NewSeedReloader(cfg.SeedFile, profileStore, loggerClient, cfg.SeedReloadInterval, seedTrigger)
	} else {
		loggerClient.Info("seed file not configured, seed import disabled")
	}

	d := deps.Deps{
		Logger:            loggerClient,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		TimeNow:           time.Now,
		Profiles:          profileStore,
		Verifier:          verifier,
		Metrics:           m,
		Locks:             utils.NewKeyedMutex(),
		RedisClient:       redisClient,
		AllowedOrigins:    cfg.AllowedOrigins,
		AllowedHosts:      cfg.AllowedHosts,
		AllowedCIDRS:      cfg.AllowedCIDRS,
		TrustProxy:        cfg.TrustProxy,
		CreateBurst:       cfg.CreateBurst,
		CreatePerMin:      cfg.CreatePerMin,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		SeedReloadTrigger: seedTrigger,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		backend:     backend,
		redisClient: redisClient,
		seeder:      seeder,
	}, nil
}

func connectRedis(ctx context.Context, cfg *config.Config, log logger.Logger) (*goredis.Client, error) {
	if !cfg.CacheEnabled() {
		log.Info("redis not configured, profile cache disabled")
		return nil, nil
	}

	log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	client, err := redis.Connect(ctx, redis.ConnectOptions{
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
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("Redis initialized successfully", logger.Duration("cache_ttl", cfg.CacheTTL))
	return client, nil
}

// Run serves until SIGINT/SIGTERM, then shuts down in reverse start order.
func (a *App) Run() error {
	a.logger.Infof("🚀 Starting LinkHub v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("LinkHub %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer a.closeStores()

	if a.seeder != nil {
		if err := a.seeder.Start(ctx); err != nil {
			return fmt.Errorf("failed to start seed reloader: %w", err)
		}
		a.logger.Info("seed reloader started",
			logger.String("file", a.cfg.SeedFile),
			logger.Duration("interval", a.cfg.SeedReloadInterval))
	}

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

	if a.seeder != nil {
		a.seeder.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.logger.Info("✅ LinkHub stopped cleanly")
	return nil
}

func (a *App) closeStores() {
	if err := a.backend.Close(); err != nil {
		a.logger.Warnf("failed to close %s backend: %v", a.backend.Name(), err)
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warnf("failed to close redis: %v", err)
		} else {
			a.logger.Info("✅ Redis closed cleanly")
		}
	}
}
