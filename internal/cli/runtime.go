package cli

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"cybercalc/internal/app"
	"cybercalc/internal/config"
	"cybercalc/internal/generator"
	"cybercalc/internal/infra/memory"
	"cybercalc/internal/infra/postgres"
	infraredis "cybercalc/internal/infra/redis"
	"cybercalc/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	serviceName     = "cybercalc"
	defaultCacheTTL = 10 * time.Minute
)

// runtime holds the services shared by every command.
type runtime struct {
	cfg         config.Config
	log         *logrus.Logger
	store       *app.Store
	auth        *app.AuthService
	leaderboard *app.LeaderboardService
	closers     []func()
}

func loadConfig(path string) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, logger.New(serviceName, cfg.Log.Level), nil
}

func buildRuntime(ctx context.Context, cfg config.Config, log *logrus.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: log}
	backend, err := rt.openBackend(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.store = app.NewStore(backend, cfg.Storage.Namespace, log)
	rt.leaderboard = app.NewLeaderboardService(rt.store, log)
	rt.auth = app.NewAuthService(rt.store,
		app.WithBcryptCost(cfg.Auth.BcryptCost),
		app.WithNotifier(rt.leaderboard),
		app.WithAuthLogger(log),
	)
	return rt, nil
}

func (rt *runtime) openBackend(ctx context.Context) (app.Backend, error) {
	cfg := rt.cfg
	kind := cfg.StorageBackend()
	rt.log.WithFields(logrus.Fields{
		"backend":   kind,
		"namespace": cfg.Storage.Namespace,
	}).Info("opening storage")

	switch kind {
	case config.BackendMemory:
		return memory.NewBackend(), nil

	case config.BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis addr not configured")
		}
		backend := infraredis.NewBackend(rt.redisClient())
		if err := backend.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return backend, nil

	case config.BackendPostgres:
		if err := runMigrationsWithConfig(ctx, cfg, rt.log); err != nil {
			return nil, err
		}
		pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, pool.Close)
		var backend app.Backend = postgres.NewBackend(pool)
		if cfg.Redis.Addr != "" {
			ttl := config.Duration(cfg.Redis.CacheTTL, defaultCacheTTL)
			backend = infraredis.NewCache(rt.redisClient(), backend, ttl)
			rt.log.WithField("ttl", ttl.String()).Info("redis cache enabled")
		}
		return backend, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", kind)
}

func (rt *runtime) redisClient() *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     rt.cfg.Redis.Addr,
		Password: rt.cfg.Redis.Password,
		DB:       rt.cfg.Redis.DB,
	})
	rt.closers = append(rt.closers, func() { _ = client.Close() })
	return client
}

// Close releases backend connections.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func newGenerator(cfg config.Config, seed int64) (*generator.Generator, error) {
	return generator.New(generator.Config{BucketBoundaries: cfg.Generator.BucketBoundaries}, rand.NewSource(seed))
}
