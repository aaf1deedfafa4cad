package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/premiere/internal/errors"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"DATABASE_URL": "postgres://localhost/premiere",
		"JWT_SECRET":   "secret",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "./migrations", cfg.MigrationsPath)
	assert.True(t, cfg.SweepEnabled)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, 1, cfg.SweepConcurrency)
	assert.Equal(t, 500, cfg.SweepBatchLimit)
	assert.Equal(t, 3, cfg.SweepRetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.SweepRetryBackoff)
	assert.Equal(t, 24*time.Hour, cfg.ExpireAfter)
	assert.Equal(t, 30*time.Minute, cfg.StaleClaimAfter)
	assert.Equal(t, 30*time.Second, cfg.PublishTimeout)
	assert.Equal(t, 256, cfg.NotifyQueueSize)
	assert.Equal(t, 10.0, cfg.NotifyRate)
	assert.Equal(t, "premiere:notifications", cfg.RedisChannel)
	assert.Equal(t, "premiere", cfg.MQTTTopicPrefix)
	assert.Empty(t, cfg.RedisAddress)
	assert.Empty(t, cfg.MQTTBrokerURL)
}

func TestOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"DATABASE_URL":      "postgres://localhost/premiere",
		"JWT_SECRET":        "secret",
		"SWEEP_INTERVAL":    "30s",
		"SWEEP_CONCURRENCY": "4",
		"SWEEP_ENABLED":     "false",
		"EXPIRE_AFTER":      "0",
		"NOTIFY_RATE":       "2.5",
	}))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 4, cfg.SweepConcurrency)
	assert.False(t, cfg.SweepEnabled)
	assert.Equal(t, time.Duration(0), cfg.ExpireAfter)
	assert.Equal(t, 2.5, cfg.NotifyRate)
}

func TestInvalid(t *testing.T) {
	base := map[string]string{"DATABASE_URL": "postgres://x", "JWT_SECRET": "s"}

	cases := map[string]map[string]string{
		"missing database url": {"JWT_SECRET": "s"},
		"missing secret":       {"DATABASE_URL": "postgres://x"},
		"bad duration":         {"SWEEP_INTERVAL": "soon"},
		"bad integer":          {"SWEEP_CONCURRENCY": "many"},
		"zero concurrency":     {"SWEEP_CONCURRENCY": "0"},
		"bad bool":             {"SWEEP_ENABLED": "sometimes"},
		"negative expiry":      {"EXPIRE_AFTER": "-1h"},
		"reap before timeout":  {"STALE_CLAIM_AFTER": "20s", "PUBLISH_TIMEOUT": "30s"},
		"reap at timeout":      {"STALE_CLAIM_AFTER": "1m", "PUBLISH_TIMEOUT": "1m"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			merged := map[string]string{}
			if name != "missing database url" && name != "missing secret" {
				for k, v := range base {
					merged[k] = v
				}
			}
			for k, v := range vars {
				merged[k] = v
			}
			_, err := FromEnv(env(merged))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation), "got %v", err)
		})
	}
}

func TestStaleClaimWindowCanBeDisabled(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"DATABASE_URL":      "postgres://x",
		"JWT_SECRET":        "s",
		"STALE_CLAIM_AFTER": "0s",
		"PUBLISH_TIMEOUT":   "30s",
	}))
	require.NoError(t, err)
	assert.Zero(t, cfg.StaleClaimAfter)
}
