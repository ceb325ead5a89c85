// Package credentials holds the collaborators that turn secrets into opaque
// credential references and sessions. The engine only ever stores the refs.
package credentials

import (
	"strings"

	"github.com/anonto42/snapfeed/backend/pkg/errorx"
	"golang.org/x/crypto/bcrypt"
)

const localPrefix = "bcrypt:"

// Local keeps password hashes inside the credential ref itself.
type Local struct {
	cost int
}

func NewLocal(cost int) *Local {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Local{cost: cost}
}

// Hash returns a credential ref for the password.
func (l *Local) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return "", err
	}
	return localPrefix + string(hashed), nil
}

// Verify checks password against a ref produced by Hash. Refs from other
// providers never verify.
func (l *Local) Verify(ref, password string) error {
	hashed, ok := strings.CutPrefix(ref, localPrefix)
	if !ok {
		return errorx.New(errorx.Unauthorized, "account has no password login")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)); err != nil {
		return errorx.New(errorx.Unauthorized, "invalid credentials")
	}
	return nil
}
