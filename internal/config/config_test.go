package config

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"CATALOG_SOURCE", "TICK_INTERVAL_MS", "SUBMIT_RETRIES", "ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, CatalogSourceFile, cfg.CatalogSource)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, 3, cfg.SubmitRetries)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CATALOG_SOURCE", "Postgres")
	t.Setenv("TICK_INTERVAL_MS", "50")
	t.Setenv("SUBMIT_RETRIES", "nope")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()
	assert.Equal(t, CatalogSourcePostgres, cfg.CatalogSource)
	assert.Equal(t, 50*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 3, cfg.SubmitRetries)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestCacheKeys(t *testing.T) {
	id := uuid.MustParse("7b0f1c9e-3a55-4c43-9a5f-0c1f2d3e4a5b")
	assert.Equal(t, "session:7b0f1c9e-3a55-4c43-9a5f-0c1f2d3e4a5b:answers", CacheKey.SessionAnswersKey(id))
	assert.Equal(t, "exam:rn-cert:monitor", CacheKey.ExamMonitorChannel("rn-cert"))
}
