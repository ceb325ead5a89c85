package credentials

import (
	"context"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"github.com/rs/zerolog/log"
)

const firebasePrefix = "firebase:"

// TokenVerifier is the part of the Firebase auth client the service needs.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// Identity is what a verified external token tells us about the caller.
type Identity struct {
	Ref   string
	Email string
	Name  string
}

type Firebase struct {
	verifier TokenVerifier
}

func NewFirebase(verifier TokenVerifier) *Firebase {
	return &Firebase{verifier: verifier}
}

// Resolve verifies the ID token and returns the identity behind it.
func (f *Firebase) Resolve(ctx context.Context, idToken string) (Identity, error) {
	if f == nil || f.verifier == nil {
		return Identity{}, errorx.New(errorx.InvalidOperation, "firebase login is not enabled")
	}

	token, err := f.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		log.Debug().Err(err).Msg("firebase token rejected")
		return Identity{}, errorx.New(errorx.Unauthorized, "invalid or expired ID token")
	}

	id := Identity{Ref: firebasePrefix + token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		id.Name = name
	}
	return id, nil
}
