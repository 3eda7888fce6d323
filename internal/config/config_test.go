package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.AutoBook.BookingWindow)
	assert.Equal(t, 30*time.Second, cfg.AutoBook.PollInterval)
	assert.Equal(t, 0, cfg.AutoBook.BatchLimit)
	assert.Equal(t, 2*time.Minute, cfg.AutoBook.PassTimeout)
	assert.Equal(t, cfg.AutoBook.PassTimeout, cfg.AutoBook.PassLeaseTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.RabbitMQ.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("AUTOBOOK_BOOKING_WINDOW", "90s")
	t.Setenv("AUTOBOOK_BATCH_LIMIT", "250")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("REDIS_ENABLED", "false")

	cfg := Load()

	assert.Equal(t, 90*time.Second, cfg.AutoBook.BookingWindow)
	assert.Equal(t, 250, cfg.AutoBook.BatchLimit)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Redis.Enabled)
}

func TestPassLeaseCoversPassTimeout(t *testing.T) {
	tests := []struct {
		name     string
		lease    string
		timeout  string
		wantTTL  time.Duration
		wantPass time.Duration
	}{
		{name: "lease follows timeout", timeout: "5m", wantTTL: 5 * time.Minute, wantPass: 5 * time.Minute},
		{name: "short lease raised", lease: "60s", timeout: "2m", wantTTL: 2 * time.Minute, wantPass: 2 * time.Minute},
		{name: "longer lease kept", lease: "10m", timeout: "2m", wantTTL: 10 * time.Minute, wantPass: 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTOBOOK_PASS_LEASE_TTL", tt.lease)
			t.Setenv("AUTOBOOK_PASS_TIMEOUT", tt.timeout)

			cfg := Load()
			assert.Equal(t, tt.wantTTL, cfg.AutoBook.PassLeaseTTL)
			assert.Equal(t, tt.wantPass, cfg.AutoBook.PassTimeout)
		})
	}
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("AUTOBOOK_POLL_INTERVAL", "soon")
	t.Setenv("DB_CONNECT_RETRIES", "many")

	assert.Equal(t, 30*time.Second, getEnvDuration("AUTOBOOK_POLL_INTERVAL", 30*time.Second))
	assert.Equal(t, 5, getEnvInt("DB_CONNECT_RETRIES", 5))
}
