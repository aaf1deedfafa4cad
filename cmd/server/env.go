package main

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/config"
	"github.com/Nixie-Tech-LLC/premiere/internal/db"
	"github.com/Nixie-Tech-LLC/premiere/internal/notify"
	"github.com/Nixie-Tech-LLC/premiere/internal/redis"
)

// Environment holds the external resources the server runs against.
type Environment struct {
	DB       *sqlx.DB
	Redis    *goredis.Client // nil when REDIS_ADDRESS is unset
	MQTT     mqtt.Client     // nil when MQTT_BROKER_URL is unset
	Notifier *notify.Async
}

// LoadEnvironment connects to Postgres, runs migrations and builds the
// notification fan-out from whichever brokers are configured.
func LoadEnvironment(ctx context.Context, cfg *config.Config) (*Environment, error) {
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(conn, cfg.MigrationsPath); err != nil {
		conn.Close()
		return nil, err
	}

	env := &Environment{DB: conn}
	dispatchers := notify.Multi{notify.NewLog(log.Logger)}

	if cfg.RedisAddress != "" {
		env.Redis = redis.NewClient(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		if err := redis.Ping(ctx, env.Redis); err != nil {
			// notifications are best effort; the client reconnects on its own
			log.Warn().Err(err).Str("address", cfg.RedisAddress).Msg("redis not reachable yet")
		}
		dispatchers = append(dispatchers, notify.NewRedis(env.Redis, cfg.RedisChannel))
		log.Info().Str("channel", cfg.RedisChannel).Msg("redis notifications enabled")
	}

	if cfg.MQTTBrokerURL != "" {
		client, err := notify.ConnectMQTT(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			env.Close(ctx)
			return nil, err
		}
		env.MQTT = client
		dispatchers = append(dispatchers, notify.NewMQTT(client, cfg.MQTTTopicPrefix))
		log.Info().Str("prefix", cfg.MQTTTopicPrefix).Msg("mqtt notifications enabled")
	}

	env.Notifier = notify.NewAsync(dispatchers, notify.AsyncConfig{
		QueueSize: cfg.NotifyQueueSize,
		PerSecond: cfg.NotifyRate,
		Timeout:   5 * time.Second,
	}, log.Logger)
	return env, nil
}

// Close drains pending notifications and releases every connection.
func (e *Environment) Close(ctx context.Context) {
	if e.Notifier != nil {
		if err := e.Notifier.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("notification queue not drained")
		}
	}
	if e.MQTT != nil {
		notify.DisconnectMQTT(e.MQTT)
	}
	if e.Redis != nil {
		if err := e.Redis.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis")
		}
	}
	if e.DB != nil {
		if err := e.DB.Close(); err != nil {
			log.Warn().Err(err).Msg("close database")
		}
	}
}
