package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	client "AppStatus/internal/agent/clients"
	handler "AppStatus/internal/agent/handlers"
	"AppStatus/internal/agent/metrics"
	runner "AppStatus/internal/agent/runners"
	"AppStatus/internal/agent/server"
	"AppStatus/internal/agent/storage"
	"AppStatus/internal/config"
	"AppStatus/internal/shared/constants"
)

// Container контейнер зависимостей агента
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	// Sinks
	Latest  *storage.LatestSink
	Emitter storage.Emitter

	// Connections
	DB    *pgxpool.Pool
	Redis *redis.Client

	Manager *handler.StatusManager
	Feed    *client.RedisEventFeed
	Server  *server.Server
}

func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		Logger: log,
	}

	if err := c.initMetrics(); err != nil {
		return nil, err
	}

	if err := c.initStorage(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	if err := c.initManager(); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.initFeed()
	c.initServer()

	log.Info("Dependency container initialized successfully")
	return c, nil
}

func (c *Container) initMetrics() error {
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c.Metrics = metrics.New()
	if err := c.Metrics.Register(c.Registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	return nil
}

func (c *Container) initStorage(ctx context.Context) error {
	c.Latest = storage.NewLatestSink()
	emitters := storage.MultiEmitter{
		storage.NewLogSink(c.Logger.With("component", "records"), slog.LevelDebug),
		c.Latest,
	}

	source := c.Config.App.Name

	if c.Config.Redis.Enabled {
		rdb, err := storage.NewRedisClient(&c.Config.Redis, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Redis = rdb
		emitters = append(emitters, storage.NewRedisSink(rdb, c.Config.Redis.RecordsKey, source, c.Config.Redis.RecordsMaxLen))
	}

	if c.Config.Database.Enabled {
		db, err := storage.NewPostgres(ctx, &c.Config.Database, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db

		sink := storage.NewPostgresSink(db, source)
		if err := sink.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
		emitters = append(emitters, sink)
	}

	c.Emitter = emitters
	return nil
}

func (c *Container) initManager() error {
	location, err := c.Config.Status.Location()
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	var resolver runner.Resolver
	if c.Config.TimeSync.Resolver != "" {
		resolver = runner.NewDNSResolver(c.Config.TimeSync.Resolver, constants.DNSTimeout)
	}

	// адрес может быть включен позже через настройки, поэтому создаем всегда
	addresses := runner.NewAddressResolver(runner.LiveInterfaceAddrs, c.Logger.With("component", "address"))

	c.Manager, err = handler.NewStatusManager(handler.ManagerConfig{
		UpdateInterval:   c.Config.Status.UpdateInterval,
		TimezoneInterval: c.Config.Status.TimezoneInterval,
		RunOnStart:       c.Config.Status.RunOnStart,
		TimeSyncServer:   c.Config.TimeSync.Server,
		TimeSyncTimeout:  c.Config.TimeSync.Timeout,
		IncludeIP:        c.Config.Status.IncludeIP,
		Location:         location,
	}, c.Emitter, runner.NewNTPRunner(resolver), addresses, c.Logger, c.Metrics)
	if err != nil {
		return fmt.Errorf("failed to create status manager: %w", err)
	}
	return nil
}

func (c *Container) initFeed() {
	if c.Redis == nil || c.Config.Redis.EventsChannel == "" {
		return
	}
	c.Feed = client.NewRedisEventFeed(c.Redis, c.Config.Redis.EventsChannel, c.Logger.With("component", "feed"))
}

func (c *Container) initServer() {
	if !c.Config.Server.Enabled {
		return
	}
	c.Server = server.New(&server.Config{
		Port:    c.Config.Server.Port,
		Mode:    c.Config.Server.Mode,
		Name:    c.Config.App.Name,
		Version: c.Config.App.Version,
		Metrics: promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{}),
	}, c.Manager, c.Latest, c.Logger.With("component", "http"))
}

// ApplyConfig pushes the runtime-tunable options of a reloaded config.
func (c *Container) ApplyConfig(cfg *config.Config) {
	if err := c.Manager.SetStatusInterval(cfg.Status.UpdateInterval); err != nil {
		c.Logger.Warn("failed to apply update interval", "error", err)
	}
	if err := c.Manager.SetTimezoneInterval(cfg.Status.TimezoneInterval); err != nil {
		c.Logger.Warn("failed to apply timezone interval", "error", err)
	}
	c.Manager.SetTimeSyncServer(cfg.TimeSync.Server)
	c.Manager.SetIncludeIP(cfg.Status.IncludeIP)

	c.Logger.Info("Runtime settings applied",
		"update_interval", c.Manager.StatusInterval(),
		"timezone_interval", c.Manager.TimezoneInterval(),
		"time_sync_server", c.Manager.TimeSyncServer(),
		"include_ip", c.Manager.IncludeIP(),
	)
}

// Close закрывает все соединения
func (c *Container) Close() error {
	var errs []error

	if c.Manager != nil {
		if err := c.Manager.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.DB != nil {
		c.DB.Close()
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("errors closing dependencies: %w", err)
	}
	return nil
}
