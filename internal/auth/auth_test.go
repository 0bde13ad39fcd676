package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomTokenSession(t *testing.T) {
	signer := NewProvider("", "s3cret", false)
	token, err := signer.Sign("player-1")
	require.NoError(t, err)

	p := NewProvider(token, "s3cret", true)
	s, err := p.EstablishSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "player-1", s.UserID)
	assert.False(t, s.Anonymous)
}

func TestInvalidTokenDoesNotFallBack(t *testing.T) {
	signer := NewProvider("", "other", false)
	token, err := signer.Sign("player-1")
	require.NoError(t, err)

	p := NewProvider(token, "s3cret", true)
	s, err := p.EstablishSession(context.Background())
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, s)
}

func TestExpiredToken(t *testing.T) {
	signer := NewProvider("", "s3cret", false)
	signer.TokenTTL = time.Hour
	token, err := signer.Sign("player-1")
	require.NoError(t, err)

	p := NewProvider(token, "s3cret", false)
	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = p.EstablishSession(context.Background())
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAnonymousSession(t *testing.T) {
	p := NewProvider("", "", true)
	s, err := p.EstablishSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, s.Anonymous)
	assert.True(t, strings.HasPrefix(s.UserID, "anon-"))
}

func TestNoIdentity(t *testing.T) {
	p := NewProvider("", "", false)
	s, err := p.EstablishSession(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestMissingSecret(t *testing.T) {
	p := NewProvider("some.token.value", "", true)
	_, err := p.EstablishSession(context.Background())
	assert.ErrorIs(t, err, ErrMissingSecret)
}
