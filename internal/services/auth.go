package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anonto42/snapfeed/backend/internal/models"
	"github.com/anonto42/snapfeed/backend/pkg/credentials"
	"github.com/anonto42/snapfeed/backend/pkg/errorx"
)

// Session is a signed token for a user.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// AuthService ties account records to the credential collaborators. The
// engine itself only ever sees the opaque credential refs.
type AuthService struct {
	accounts *AccountService
	local    *credentials.Local
	firebase *credentials.Firebase
	tokens   *credentials.TokenIssuer
}

// NewAuthService wires authentication. firebase may be nil when Firebase
// login is not configured.
func NewAuthService(accounts *AccountService, local *credentials.Local, firebase *credentials.Firebase, tokens *credentials.TokenIssuer) *AuthService {
	return &AuthService{accounts: accounts, local: local, firebase: firebase, tokens: tokens}
}

func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*Session, error) {
	ref, err := s.local.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	id, err := s.accounts.CreateUser(ctx, req.Username, req.DisplayName, req.Email, ref)
	if err != nil {
		return nil, err
	}
	user, err := s.accounts.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// Signin checks a username or email and password pair. Unknown logins and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Signin(ctx context.Context, login, password string) (*Session, error) {
	user, err := s.accounts.GetUserByLogin(ctx, login)
	if errors.Is(err, errorx.ErrNotFound) {
		return nil, errorx.New(errorx.Unauthorized, "invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if err := s.local.Verify(user.CredentialRef, password); err != nil {
		return nil, errorx.New(errorx.Unauthorized, "invalid credentials")
	}
	if !user.IsActive {
		return nil, errorx.New(errorx.Unauthorized, "account is deactivated")
	}
	return s.session(user)
}

// FirebaseLogin signs a Firebase user in, registering them on first login.
// The boolean reports whether an account was created.
func (s *AuthService) FirebaseLogin(ctx context.Context, req models.FirebaseLoginRequest) (*Session, bool, error) {
	identity, err := s.firebase.Resolve(ctx, req.IDToken)
	if err != nil {
		return nil, false, err
	}

	user, err := s.accounts.GetUserByCredentialRef(ctx, identity.Ref)
	if err == nil {
		if !user.IsActive {
			return nil, false, errorx.New(errorx.Unauthorized, "account is deactivated")
		}
		session, err := s.session(user)
		return session, false, err
	}
	if !errors.Is(err, errorx.ErrNotFound) {
		return nil, false, err
	}

	if req.Username == "" {
		return nil, false, errorx.New(errorx.InvalidOperation, "username is required on first login")
	}
	if identity.Email == "" {
		return nil, false, errorx.New(errorx.InvalidOperation, "firebase account has no email")
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = identity.Name
	}

	id, err := s.accounts.CreateUser(ctx, req.Username, displayName, identity.Email, identity.Ref)
	if err != nil {
		return nil, false, err
	}
	user, err = s.accounts.GetUser(ctx, id)
	if err != nil {
		return nil, false, err
	}
	session, err := s.session(user)
	return session, true, err
}

func (s *AuthService) session(user *models.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}
