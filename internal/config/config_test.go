package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"STORE_DRIVER", "RETENTION_GRACE_DAYS", "ADMIN_RATE_WINDOW", "ADMIN_RATE_MAX", "RETENTION_SWEEP_CRON"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 30, cfg.RetentionGraceDays)
	assert.Equal(t, "@every 1h", cfg.RetentionSweepCron)
	assert.Equal(t, 60*time.Second, cfg.AdminRateWindow)
	assert.Equal(t, 5, cfg.AdminRateMax)
	assert.Equal(t, 5*time.Minute, cfg.RateCompactionInterval)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RETENTION_GRACE_DAYS", "14")
	t.Setenv("ADMIN_RATE_WINDOW", "2m")
	t.Setenv("ADMIN_RATE_MAX", "not-a-number")
	t.Setenv("STORE_DRIVER", "memory")

	cfg := Load()
	assert.Equal(t, 14, cfg.RetentionGraceDays)
	assert.Equal(t, 2*time.Minute, cfg.AdminRateWindow)
	assert.Equal(t, 5, cfg.AdminRateMax)
	assert.Equal(t, "memory", cfg.StoreDriver)
}

func TestValidate(t *testing.T) {
	cfg := &Config{StoreDriver: "postgres"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "DB_PASSWORD")

	cfg = &Config{StoreDriver: "memory", JWTSecret: "s"}
	assert.NoError(t, cfg.Validate())

	cfg = &Config{StoreDriver: "sqlite", JWTSecret: "s"}
	assert.Error(t, cfg.Validate())
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBHost: "db", DBUser: "u", DBPassword: "p", DBName: "n", DBPort: "5432", DBSSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}
