package redis

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "conv:awaiting_email:12345678", AwaitingEmailKey(12345678))
	assert.Equal(t, "operator:contacts", ContactBookKey)
}

func TestNewClient(t *testing.T) {
	t.Run("rejects malformed url", func(t *testing.T) {
		_, err := NewClient(context.Background(), "not a url")
		assert.Error(t, err)
	})

	t.Run("connects", func(t *testing.T) {
		url := os.Getenv("TEST_REDIS_URL")
		if url == "" {
			t.Skip("TEST_REDIS_URL not set")
		}
		c, err := NewClient(context.Background(), url)
		require.NoError(t, err)
		assert.NoError(t, c.Close())
	})
}
