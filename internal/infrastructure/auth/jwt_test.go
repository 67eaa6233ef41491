package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pymeadmin/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(expiration time.Duration) *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-for-jwt-0123456789",
		AccessTokenExpiration: expiration,
		Issuer:                "pyme-backend",
	})
}

func TestJWTService(t *testing.T) {
	t.Run("round-trips a valid token", func(t *testing.T) {
		svc := newTestService(15 * time.Minute)
		userID := uuid.New()

		token, expiresAt, err := svc.GenerateToken(userID, "contadora")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, userID.String(), claims.UserID)
		assert.Equal(t, "contadora", claims.Username)
		assert.Equal(t, "pyme-backend", claims.Issuer)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		svc := newTestService(-time.Minute)
		token, _, err := svc.GenerateToken(uuid.New(), "contadora")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("rejects a token signed with another secret", func(t *testing.T) {
		svc := newTestService(15 * time.Minute)
		other := NewJWTService(config.JWTConfig{
			Secret:                "another-secret-key-0123456789abcdef",
			AccessTokenExpiration: 15 * time.Minute,
			Issuer:                "pyme-backend",
		})

		token, _, err := other.GenerateToken(uuid.New(), "contadora")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		svc := newTestService(15 * time.Minute)
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
