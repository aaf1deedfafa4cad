package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
)

const pingTimeout = 5 * time.Second

// NewClient builds a client for the notification channel. It does not dial;
// call Ping to verify the server is reachable.
func NewClient(address, username, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     address,
		Username: username,
		Password: password,
		DB:       0,
	})
}

// Ping checks connectivity and marks failures as transient.
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Str("address", client.Options().Addr).Msg("redis ping failed")
		return errors.Transient(errors.Wrapf(err, "ping redis at %s", client.Options().Addr))
	}
	return nil
}
