package main

import (
	"context"
	"fmt"
	"time"

	"auction-lifecycle/internal/config"
	"auction-lifecycle/internal/domain"
	"auction-lifecycle/internal/infrastructure/leader"
	"auction-lifecycle/internal/infrastructure/mysql"
	"auction-lifecycle/internal/infrastructure/postgres"
	"auction-lifecycle/internal/infrastructure/redis"
	"auction-lifecycle/internal/services"
	"auction-lifecycle/pkg/logger"
	"auction-lifecycle/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
)

// app holds the wired lifecycle components and their cleanup.
type app struct {
	cfg    *config.Config
	log    logger.Logger
	driver *services.LifecycleDriver
	admin  *services.ListingAdmin
	lease  *leader.RedisPassLease
	closer []func()
}

func (a *app) Close() {
	for i := len(a.closer) - 1; i >= 0; i-- {
		a.closer[i]()
	}
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (domain.ListingStore, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := utils.OpenPostgres(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		log.Info("Connected to Postgres")
		return postgres.NewListingRepo(pool), pool.Close, nil
	default:
		db, err := utils.OpenMySQL(ctx, utils.MySQLPoolOptions{
			DSN:             cfg.MySQL.DSN,
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect mysql: %w", err)
		}
		log.Info("Connected to MySQL")
		return mysql.NewMySQLListingRepository(db), func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		}, nil
	}
}

func newRedis(ctx context.Context, cfg *config.Config) (*redisClient.Client, error) {
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.NewWithLevel(cfg.Log.Level).With("instance_id", cfg.Instance.ID)
	a := &app{cfg: cfg, log: log}
	log.Info("Configuration loaded", "config", cfg.GetConfigString())

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.closer = append(a.closer, closeStore)

	rdb, err := newRedis(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closer = append(a.closer, func() { _ = rdb.Close() })
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	publisher := redis.NewRedisEventPublisher(rdb, cfg.Redis.Channel)
	notifier := redis.NewEventNotifier(publisher)
	states := redis.NewRedisStateCache(rdb)

	a.driver = services.NewLifecycleDriver(store, notifier, nil, services.DriverConfig{
		PaymentGraceInterval: cfg.Lifecycle.PaymentGraceInterval,
		WarningInterval:      cfg.Lifecycle.WarningInterval,
		FallbackInterval:     cfg.Lifecycle.FallbackInterval,
		NotifyTimeout:        cfg.Lifecycle.NotifyTimeout,
		StoreTimeout:         cfg.Lifecycle.StoreTimeout,
		Workers:              cfg.Lifecycle.Workers,
		InstanceID:           cfg.Instance.ID,
		LeaseRenewInterval:   cfg.Lease.TTL / 3,
	}, log.With("component", "driver"))
	a.driver.SetStateCache(states)

	if cfg.Lease.Enabled {
		a.lease = leader.NewRedisPassLease(rdb, cfg.Lease.Key, cfg.Lease.TTL)
		a.driver.SetPassLease(a.lease)
		log.Info("Pass lease enabled", "key", cfg.Lease.Key, "ttl", cfg.Lease.TTL.String())
	}

	a.admin = services.NewListingAdmin(store, nil, log.With("component", "admin"))
	a.admin.SetStateCache(states)

	return a, nil
}
