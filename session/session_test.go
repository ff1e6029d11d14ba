package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	userID := uuid.New()
	s, err := New(userID, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, userID, s.UserID)
	assert.NotEmpty(t, s.Token)
	assert.WithinDuration(t, s.CreatedAt.Add(time.Hour), s.ExpiresAt, time.Second)
	assert.False(t, s.Expired(time.Now()))
	assert.True(t, s.Expired(time.Now().Add(2*time.Hour)))

	other, err := New(userID, 0)
	require.NoError(t, err)
	assert.NotEqual(t, s.Token, other.Token)
	assert.WithinDuration(t, other.CreatedAt.Add(DefaultTTL), other.ExpiresAt, time.Second)
}
