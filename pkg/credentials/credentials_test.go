package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLocalHashAndVerify(t *testing.T) {
	local := NewLocal(bcrypt.MinCost)

	ref, err := local.Hash("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "bcrypt:"))

	require.NoError(t, local.Verify(ref, "correct horse"))
	assert.ErrorIs(t, local.Verify(ref, "wrong"), errorx.ErrUnauthorized)
	assert.ErrorIs(t, local.Verify("firebase:abc", "correct horse"), errorx.ErrUnauthorized)
}

type fakeVerifier struct {
	token *auth.Token
	err   error
}

func (f fakeVerifier) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return f.token, f.err
}

func TestFirebaseResolve(t *testing.T) {
	fb := NewFirebase(fakeVerifier{token: &auth.Token{
		UID:    "uid-1",
		Claims: map[string]interface{}{"email": "a@example.com", "name": "Ann"},
	}})

	id, err := fb.Resolve(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, Identity{Ref: "firebase:uid-1", Email: "a@example.com", Name: "Ann"}, id)

	_, err = NewFirebase(fakeVerifier{err: errors.New("expired")}).Resolve(context.Background(), "tok")
	assert.ErrorIs(t, err, errorx.ErrUnauthorized)

	var disabled *Firebase
	_, err = disabled.Resolve(context.Background(), "tok")
	assert.ErrorIs(t, err, errorx.ErrInvalidOperation)
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)

	signed, expiresAt, err := issuer.Issue(7, "ann")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := issuer.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "ann", claims.Username)

	_, err = NewTokenIssuer("other", time.Hour).Parse(signed)
	assert.ErrorIs(t, err, errorx.ErrUnauthorized)
}

func TestTokenIssuerRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	signed, _, err := issuer.Issue(7, "ann")
	require.NoError(t, err)

	_, err = issuer.Parse(signed)
	assert.ErrorIs(t, err, errorx.ErrUnauthorized)
}
