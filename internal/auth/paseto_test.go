package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pasetoTestKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func TestPasetoIssueAndVerify(t *testing.T) {
	t.Parallel()

	svc, err := NewPasetoService(pasetoTestKey())
	require.NoError(t, err)

	claims := Claims{
		UserID:     "0192aef1-0000-7000-8000-000000000002",
		Username:   "tester",
		Email:      "tester@example.com",
		Permission: "moderator",
	}

	token, err := svc.Issue(claims, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, got.UserID)
	assert.Equal(t, claims.Username, got.Username)
	assert.Equal(t, claims.Email, got.Email)
	assert.Equal(t, claims.Permission, got.Permission)
}

func TestPasetoVerifyExpired(t *testing.T) {
	t.Parallel()

	svc, err := NewPasetoService(pasetoTestKey())
	require.NoError(t, err)

	token, err := svc.Issue(Claims{Username: "tester"}, -time.Minute)
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestPasetoVerifyWrongKey(t *testing.T) {
	t.Parallel()

	issuer, err := NewPasetoService(pasetoTestKey())
	require.NoError(t, err)
	verifier, err := NewPasetoService([]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)

	token, err := issuer.Issue(Claims{Username: "tester"}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasetoVerifyMalformed(t *testing.T) {
	t.Parallel()

	svc, err := NewPasetoService(pasetoTestKey())
	require.NoError(t, err)

	_, err = svc.Verify("v4.local.garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewPasetoServiceBadKeyLength(t *testing.T) {
	t.Parallel()

	_, err := NewPasetoService([]byte("too-short"))
	assert.Error(t, err)
}
