package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("PaymentPollInterval converts seconds to duration", func(t *testing.T) {
		cfg := &Config{PaymentPollSecs: 90}
		assert.Equal(t, 90*time.Second, cfg.PaymentPollInterval())
	})

	t.Run("PaymentPollInterval falls back to default", func(t *testing.T) {
		cfg := &Config{}
		assert.Equal(t, DefaultPaymentPollInterval, cfg.PaymentPollInterval())
	})

	t.Run("OperatorIdentityConfigured requires all three parameters", func(t *testing.T) {
		cfg := &Config{TelegramAPIID: 1, TelegramAPIHash: "hash"}
		assert.False(t, cfg.OperatorIdentityConfigured())

		cfg.TelegramPhone = "+70000000000"
		assert.True(t, cfg.OperatorIdentityConfigured())
	})
}

func TestLawyerIDs(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []int64
	}{
		{"empty", "", nil},
		{"single id", "123456789", []int64{123456789}},
		{"list with spaces", " 111 , 222,333 ", []int64{111, 222, 333}},
		{"skips malformed entries", "abc,42,-1,0", []int64{42}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{LawyerTelegramID: tc.raw}
			assert.Equal(t, tc.expected, cfg.LawyerIDs())
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{DatabaseURL: "postgres://localhost/test", CodeWord: DefaultCodeWord}
	}

	t.Run("accepts minimal config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("accepts discrete PG parameters", func(t *testing.T) {
		cfg := valid()
		cfg.DatabaseURL = ""
		cfg.PG.Host = "db.internal"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects missing database settings", func(t *testing.T) {
		cfg := valid()
		cfg.DatabaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non-bcrypt operator password hash", func(t *testing.T) {
		cfg := valid()
		cfg.OperatorPasswordHash = "plaintext"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects short encryption key", func(t *testing.T) {
		cfg := valid()
		cfg.EncryptionKey = "abcd"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects blank code word", func(t *testing.T) {
		cfg := valid()
		cfg.CodeWord = "   "
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad(t *testing.T) {
	keys := []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "TELEGRAM_BOT_TOKEN",
		"CODE_WORD", "LOG_LEVEL", "PGHOST", "PGPORT",
	}
	originalEnv := make(map[string]string, len(keys))
	for _, k := range keys {
		originalEnv[k] = os.Getenv(k)
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
		os.Unsetenv("PORT")
		os.Unsetenv("CODE_WORD")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("PGPORT")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, DefaultCodeWord, cfg.CodeWord)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 5432, cfg.PG.Port)
	})

	t.Run("reads PG prefixed parameters", func(t *testing.T) {
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
		os.Setenv("PGHOST", "db.internal")
		os.Setenv("PGPORT", "6543")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "db.internal", cfg.PG.Host)
		assert.Equal(t, 6543, cfg.PG.Port)
	})

	t.Run("fails without required REDIS_URL", func(t *testing.T) {
		os.Unsetenv("REDIS_URL")
		os.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fails without required TELEGRAM_BOT_TOKEN", func(t *testing.T) {
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("TELEGRAM_BOT_TOKEN")

		_, err := Load()
		assert.Error(t, err)
	})
}
