package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer("super-secret", time.Hour)

	tok, expiresAt, err := issuer.Issue("user-123", "Jane Doe")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := issuer.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "Jane Doe", claims.DisplayName)
}

func TestParseExpired(t *testing.T) {
	t.Parallel()

	issuer := NewIssuer("secret", time.Minute)
	tok, _, err := issuer.Issue("u1", "")
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = issuer.Parse(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseWrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := NewIssuer("right-secret", time.Hour).Issue("u2", "")
	require.NoError(t, err)

	_, err = NewIssuer("wrong-secret", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseGarbage(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer("secret", time.Hour).Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssueRequiresUserID(t *testing.T) {
	t.Parallel()

	_, _, err := NewIssuer("secret", time.Hour).Issue("", "Jane Doe")
	assert.Error(t, err)
}
