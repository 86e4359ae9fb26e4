package utils

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildr-network/pointsbot/config"
)

func TestTokenRoundTrip(t *testing.T) {
	config.SetForTesting(config.AppConfig{JWTSecret: "jwt-test-secret"})

	token, err := GenerateToken("100", "alice", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "100", claims.TelegramID)
	assert.Equal(t, "alice", claims.Username)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	config.SetForTesting(config.AppConfig{JWTSecret: "jwt-test-secret"})
	token, err := GenerateToken("100", "alice", time.Hour)
	require.NoError(t, err)

	config.SetForTesting(config.AppConfig{JWTSecret: "a-different-secret"})
	_, err = ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	config.SetForTesting(config.AppConfig{JWTSecret: "jwt-test-secret"})
	token, err := GenerateToken("100", "alice", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token)
	assert.Error(t, err)
}

var dedupTestID int64 = 500000

func TestMarkUpdateProcessed(t *testing.T) {
	config.SetForTesting(config.AppConfig{JWTSecret: "jwt-test-secret", RedisHost: "127.0.0.1", RedisPort: 6379})

	id := atomic.AddInt64(&dedupTestID, 1)
	assert.True(t, MarkUpdateProcessed(id, time.Minute))
	assert.False(t, MarkUpdateProcessed(id, time.Minute))

	// A different update ID is unaffected
	assert.True(t, MarkUpdateProcessed(atomic.AddInt64(&dedupTestID, 1), time.Minute))
}
