package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/fjod/redclaw/internal/cache"
	"github.com/fjod/redclaw/internal/domain"
	"github.com/fjod/redclaw/internal/notify"
	"github.com/fjod/redclaw/internal/repository"
	"github.com/fjod/redclaw/internal/validation"
	"github.com/fjod/redclaw/pkg/logger"
)

const (
	DefaultVerifyWindow = 24 * time.Hour
	verifyCodeDigits    = 6
)

// VerificationStore holds the e-mail confirmation code of each new signup.
type VerificationStore interface {
	SaveVerificationCode(ctx context.Context, userID uuid.UUID, code string, ttl time.Duration) error
	VerificationCode(ctx context.Context, userID uuid.UUID) (string, error)
	DeleteVerificationCode(ctx context.Context, userID uuid.UUID) error
}

type WelcomeMailer interface {
	SendWelcome(ctx context.Context, w notify.Welcome) error
}

type SignupInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type AccountsConfig struct {
	VerifyWindow time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// Accounts signs users up and in. Both hand back a fresh session whose
// refresh token is stored for rotation by the Refresher.
type Accounts struct {
	tokens *Tokens
	store  TokenStore
	codes  VerificationStore
	users  repository.UserRepository
	mailer WelcomeMailer
	window time.Duration
	cost   int
	// compared against when the e-mail is unknown so both paths cost one bcrypt
	dummy []byte
	now   func() time.Time
}

func NewAccounts(tokens *Tokens, store TokenStore, codes VerificationStore, users repository.UserRepository, mailer WelcomeMailer, cfg AccountsConfig) (*Accounts, error) {
	a := &Accounts{
		tokens: tokens,
		store:  store,
		codes:  codes,
		users:  users,
		mailer: mailer,
		window: cfg.VerifyWindow,
		cost:   cfg.BcryptCost,
		now:    time.Now,
	}
	if a.window <= 0 {
		a.window = DefaultVerifyWindow
	}
	if a.cost == 0 {
		a.cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("redclaw-unknown-user"), a.cost)
	if err != nil {
		return nil, fmt.Errorf("prepare password hashing: %w", err)
	}
	a.dummy = dummy
	return a, nil
}

// Signup creates an unverified customer, mails the confirmation code and
// logs the new user in.
func (a *Accounts) Signup(ctx context.Context, in SignupInput) (*domain.User, *Session, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.cost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}
	expires := a.now().Add(a.window).UTC()
	user := &domain.User{
		ID:                    uuid.New(),
		Name:                  in.Name,
		Email:                 in.Email,
		Role:                  domain.RoleCustomer,
		VerificationExpiresAt: &expires,
		PasswordHash:          hash,
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, nil, domain.Conflict("user already exists")
		}
		return nil, nil, domain.Persistence("create user", err)
	}

	log := logger.FromContext(ctx).With(zap.String("user_id", user.ID.String()))
	if err := a.sendVerification(ctx, user, expires); err != nil {
		// the account stands; an unconfirmed one is swept after the window
		log.Warn("verification mail not sent", zap.Error(err))
	}

	session, err := issueSession(ctx, a.tokens, a.store, user)
	if err != nil {
		return nil, nil, err
	}
	log.Info("user signed up")
	return user, session, nil
}

func (a *Accounts) sendVerification(ctx context.Context, user *domain.User, expires time.Time) error {
	code, err := newVerifyCode()
	if err != nil {
		return err
	}
	if err := a.codes.SaveVerificationCode(ctx, user.ID, code, a.window); err != nil {
		return err
	}
	return a.mailer.SendWelcome(ctx, notify.Welcome{
		To:        user.Email,
		Name:      user.Name,
		Code:      code,
		ExpiresAt: expires,
	})
}

func (a *Accounts) Login(ctx context.Context, email, password string) (*domain.User, *Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, nil, domain.Validation("email and password are required")
	}

	user, err := a.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(a.dummy, []byte(password))
		return nil, nil, domain.Unauthenticated("invalid email or password")
	}
	if err != nil {
		return nil, nil, domain.Persistence("load user", err)
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, nil, domain.Unauthenticated("invalid email or password")
	}

	session, err := issueSession(ctx, a.tokens, a.store, user)
	if err != nil {
		return nil, nil, err
	}
	logger.FromContext(ctx).Info("user logged in", zap.String("user_id", user.ID.String()))
	return user, session, nil
}

func (a *Accounts) Profile(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := a.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, domain.NotFound("user")
	}
	if err != nil {
		return nil, domain.Persistence("load user", err)
	}
	return user, nil
}

// VerifyEmail confirms the caller's address with the mailed code. Verifying
// an already confirmed account succeeds without a code lookup.
func (a *Accounts) VerifyEmail(ctx context.Context, userID uuid.UUID, code string) error {
	user, err := a.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if user.IsVerified {
		return nil
	}

	stored, err := a.codes.VerificationCode(ctx, userID)
	if errors.Is(err, cache.ErrCacheMiss) {
		return domain.Validation("verification code expired")
	}
	if err != nil {
		return fmt.Errorf("load verification code: %w", err)
	}
	if !hmac.Equal([]byte(stored), []byte(strings.TrimSpace(code))) {
		return domain.Validation("invalid verification code")
	}

	if err := a.users.MarkUserVerified(ctx, userID); err != nil {
		return domain.Persistence("verify user", err)
	}
	if err := a.codes.DeleteVerificationCode(ctx, userID); err != nil {
		logger.FromContext(ctx).Warn("verification code not deleted", zap.Error(err))
	}
	logger.FromContext(ctx).Info("e-mail verified", zap.String("user_id", userID.String()))
	return nil
}

// issueSession signs a token pair for user and stores the refresh half,
// replacing whatever refresh token the user had before.
func issueSession(ctx context.Context, tokens *Tokens, store TokenStore, user *domain.User) (*Session, error) {
	access, err := tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := tokens.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}
	if err := store.SaveRefreshToken(ctx, user.ID, refresh, tokens.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &Session{AccessToken: access, RefreshToken: refresh}, nil
}

func newVerifyCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", verifyCodeDigits, n.Int64()), nil
}
