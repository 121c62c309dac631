package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetDurationEnvFallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("PAYMENT_SESSION_TTL", "abc")
	assert.Equal(t, 48*time.Hour, getDurationEnv("PAYMENT_SESSION_TTL", 48, time.Hour))

	t.Setenv("PAYMENT_SESSION_TTL", "2")
	assert.Equal(t, 2*time.Hour, getDurationEnv("PAYMENT_SESSION_TTL", 48, time.Hour))
}

func TestGetListEnvSkipsBlankEntries(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, getListEnv("KAFKA_BROKERS"))

	t.Setenv("KAFKA_BROKERS", "")
	assert.Nil(t, getListEnv("KAFKA_BROKERS"))
}

func TestLoadTrimsTrailingSlashFromPublicURL(t *testing.T) {
	t.Setenv("PUBLIC_URL", "https://bikes.example.com/")
	Load()
	assert.Equal(t, "https://bikes.example.com", AppEnv.PublicURL)
}
