package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"KYCGATE_ADDR", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "STORAGE_BACKEND", "KYC_CLASSIFY_TIMEOUT", "KYC_REJECT_MARKERS"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":3000", cfg.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 20*time.Second, cfg.KYC.ClassifyTimeout)
	assert.Equal(t, int64(10<<20), cfg.KYC.MaxUploadBytes)
	assert.Equal(t, []string{"rejected", "invalid"}, cfg.KYC.RejectMarkers)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("KYCGATE_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("KYC_CLASSIFY_TIMEOUT", "5s")
	t.Setenv("KYC_WORKERS", "2")
	t.Setenv("KYC_REJECT_MARKERS", "forged")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.KYC.ClassifyTimeout)
	assert.Equal(t, 2, cfg.KYC.Workers)
	assert.Equal(t, []string{"forged"}, cfg.KYC.RejectMarkers)
}

func TestFromEnv_IgnoresMalformedValues(t *testing.T) {
	t.Setenv("KYC_WORKERS", "-3")
	t.Setenv("KYC_CLASSIFY_TIMEOUT", "soon")

	cfg := FromEnv()

	assert.Equal(t, 8, cfg.KYC.Workers)
	assert.Equal(t, 20*time.Second, cfg.KYC.ClassifyTimeout)
}
