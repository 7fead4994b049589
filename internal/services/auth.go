package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mymiscarriage/apiserver/internal/logging"
	"github.com/mymiscarriage/apiserver/internal/store"
	"github.com/mymiscarriage/apiserver/types"
)

const maxPasswordBytes = 72

var (
	// ErrUnauthorized is returned for a missing or unknown bearer token
	// and for a failed signup-key check.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidCredentials is the single login failure; it does not say
	// whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ModeratorRepository defines persistence operations for moderators.
type ModeratorRepository interface {
	Create(ctx context.Context, moderator types.Moderator) (types.Moderator, error)
	GetByEmail(ctx context.Context, email string) (types.Moderator, error)
	GetByToken(ctx context.Context, token string) (types.Moderator, error)
}

// SignupKeyRepository defines the operations on the signup allowlist.
type SignupKeyRepository interface {
	GetUnconsumed(ctx context.Context, email, key string) (types.SignupKey, error)
	Consume(ctx context.Context, email, key string) error
}

// AuthOptions tunes registration.
type AuthOptions struct {
	SignupGating bool
	BcryptCost   int
}

// AuthService registers moderators and checks their credentials.
type AuthService struct {
	moderators ModeratorRepository
	keys       SignupKeyRepository
	opts       AuthOptions
	log        logging.Logger
	now        func() time.Time
	newID      func() string

	// dummyHash is compared against on unknown emails so both login
	// failures cost one bcrypt comparison.
	dummyHash string
}

// NewAuthService builds the service. keys may be nil when gating is off.
func NewAuthService(moderators ModeratorRepository, keys SignupKeyRepository, opts AuthOptions, log logging.Logger) *AuthService {
	if log == nil {
		log = logging.Nop()
	}
	dummy, _ := HashPassword("not-a-real-password", opts.BcryptCost)
	return &AuthService{
		moderators: moderators,
		keys:       keys,
		opts:       opts,
		log:        log,
		now:        time.Now,
		newID:      uuid.NewString,
		dummyHash:  dummy,
	}
}

// Register creates a moderator and returns its credentials. With signup
// gating on, key must match an unconsumed allowlist entry for email.
func (s *AuthService) Register(ctx context.Context, email, password, key string) (types.Credentials, error) {
	email, err := validateCredentials(email, password)
	if err != nil {
		return types.Credentials{}, err
	}

	gated := s.opts.SignupGating
	if gated {
		if s.keys == nil || strings.TrimSpace(key) == "" {
			return types.Credentials{}, ErrUnauthorized
		}
		if _, err := s.keys.GetUnconsumed(ctx, email, key); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return types.Credentials{}, ErrUnauthorized
			}
			return types.Credentials{}, err
		}
	}

	hash, err := HashPassword(password, s.opts.BcryptCost)
	if err != nil {
		return types.Credentials{}, err
	}
	token, err := NewAccessToken()
	if err != nil {
		return types.Credentials{}, err
	}

	moderator, err := s.moderators.Create(ctx, types.Moderator{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hash,
		AccessToken:  token,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return types.Credentials{}, err
	}

	if gated {
		if err := s.keys.Consume(ctx, email, key); err != nil {
			s.log.Warn(ctx, "consume signup key failed", "moderator_id", moderator.ID, "error", err)
		}
	}

	s.log.Info(ctx, "moderator registered", "moderator_id", moderator.ID)
	return credentialsOf(moderator), nil
}

// Login returns the stored credentials when password matches.
func (s *AuthService) Login(ctx context.Context, email, password string) (types.Credentials, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return types.Credentials{}, ErrInvalidCredentials
	}

	moderator, err := s.moderators.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_, _ = CheckPassword(s.dummyHash, password)
			return types.Credentials{}, ErrInvalidCredentials
		}
		return types.Credentials{}, err
	}

	ok, err := CheckPassword(moderator.PasswordHash, password)
	if err != nil || !ok {
		return types.Credentials{}, ErrInvalidCredentials
	}
	return credentialsOf(moderator), nil
}

// Authenticate resolves a bearer token to its moderator. Only an exact
// match succeeds.
func (s *AuthService) Authenticate(ctx context.Context, token string) (types.Moderator, error) {
	if token == "" {
		return types.Moderator{}, ErrUnauthorized
	}
	moderator, err := s.moderators.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Moderator{}, ErrUnauthorized
		}
		return types.Moderator{}, err
	}
	return moderator, nil
}

func validateCredentials(email, password string) (string, error) {
	var verr types.ValidationError

	email = NormalizeEmail(email)
	if email == "" {
		verr.Add("email", "is required")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		verr.Add("email", "must be a valid email address")
	}

	switch {
	case password == "":
		verr.Add("password", "is required")
	case len(password) > maxPasswordBytes:
		verr.Add("password", "must be at most 72 bytes")
	}

	return email, verr.OrNil()
}

// NormalizeEmail trims and lower-cases an address; moderator emails are
// stored in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func credentialsOf(m types.Moderator) types.Credentials {
	return types.Credentials{ID: m.ID, AccessToken: m.AccessToken, Email: m.Email}
}
