package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/config"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/database"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/events"
	"github.com/unitedhospital222-cmyk/UnitedHospitalPRM/internal/repository"

	"go.uber.org/zap"
)

// openRepository builds the record store for cfg.Store.Backend. closeFn releases its resources.
func openRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repo repository.PatientsRepository, closeFn func(), err error) {
	switch cfg.Store.Backend {
	case repository.BackendExcel:
		excel := repository.NewExcelPatientsRepository(cfg.Store.ExcelPath, logger)
		if err := excel.EnsureStore(); err != nil {
			return nil, nil, fmt.Errorf("prepare excel store: %w", err)
		}
		logger.Info("Using excel record store", zap.String("path", excel.Path()))
		return excel, func() {}, nil

	case repository.BackendPostgres:
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db, logger); err != nil {
				_ = database.Close(db)
				return nil, nil, err
			}
		}
		logger.Info("Using postgres record store",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database),
		)
		return repository.NewPostgresPatientsRepository(db, logger), func() { _ = database.Close(db) }, nil

	case repository.BackendMemory:
		logger.Warn("Using in-memory record store, records are lost on exit")
		return repository.NewMemoryPatientsRepo(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// openDatabase connects to postgres using cfg.Database.
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return database.NewPostgresDB(ctx, &cfg.Database)
}

// buildPublisher wires the enabled event sinks. Sinks that cannot connect are skipped with a warning.
func buildPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Publisher, func()) {
	var (
		publishers []events.Publisher
		closers    []func()
	)

	if cfg.Redis.Enabled {
		pub := events.NewRedisStreamPublisher(events.NewRedisClient(&cfg.Redis), cfg.Redis.Stream)
		if err := pub.Ping(ctx); err != nil {
			logger.Warn("Redis not reachable, event publishing fails until it recovers", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		publishers = append(publishers, pub)
		closers = append(closers, func() { _ = pub.Close() })
		logger.Info("Redis stream publisher enabled", zap.String("stream", cfg.Redis.Stream))
	}

	if cfg.MQTT.Enabled {
		client, err := events.NewMQTTClient(&cfg.MQTT)
		if err != nil {
			logger.Warn("MQTT publisher disabled", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
		} else {
			pub := events.NewMQTTPublisher(client, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS)
			publishers = append(publishers, pub)
			closers = append(closers, pub.Close)
			logger.Info("MQTT publisher enabled", zap.String("topic_prefix", cfg.MQTT.TopicPrefix))
		}
	}

	if cfg.Webhook.URL != "" {
		publishers = append(publishers, events.NewWebhookPublisher(cfg.Webhook.URL, cfg.Webhook.Timeout()))
		logger.Info("Webhook publisher enabled", zap.String("url", cfg.Webhook.URL))
	}

	return events.Combine(publishers...), func() {
		for _, c := range closers {
			c()
		}
	}
}
