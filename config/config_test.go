package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SESSION_TTL", "not-a-duration")
	t.Setenv("STORAGE_BACKEND", "none")
	t.Setenv("MQ_BACKEND", "none")
	t.Setenv("TIMETABLE_TIMEZONE", "Europe/London")
	t.Setenv("TIMETABLE_DEDUPLICATE", "maybe")

	cfg := LoadConfig()

	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "Europe/London", cfg.Timetable.Timezone)
	assert.False(t, cfg.Timetable.Deduplicate)
	assert.Equal(t, BackendNone, cfg.Storage.Backend)
	assert.Equal(t, BackendNone, cfg.MQ.Backend)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SESSION_SECRET", "  s3cret  ")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("TIMETABLE_DEDUPLICATE", "true")
	t.Setenv("STORAGE_BACKEND", "MinIO")
	t.Setenv("MQ_BACKEND", "RabbitMQ")

	cfg := LoadConfig()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "s3cret", cfg.Session.Secret)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.True(t, cfg.Timetable.Deduplicate)
	assert.Equal(t, BackendMinio, cfg.Storage.Backend)
	assert.Equal(t, BackendRabbitMQ, cfg.MQ.Backend)
}
