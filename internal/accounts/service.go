package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgAuth "github.com/dcastillo/authcore-backend/pkg/auth"
	"github.com/dcastillo/authcore-backend/pkg/config"
	"github.com/dcastillo/authcore-backend/pkg/db/models"
	pkgerrors "github.com/dcastillo/authcore-backend/pkg/errors"
	"github.com/dcastillo/authcore-backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	invalidCredentialsMessage = "invalid email or password"
	unverifiedAccountMessage  = "please verify your email before logging in"
	invalidTokenMessage       = "invalid or expired token"

	resetTokenTTL = time.Hour
)

// Service defines the account lifecycle behavior needed by the controllers.
type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*SignupResult, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	VerifyEmail(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, req ResetRequest) error
	ConfirmPasswordReset(ctx context.Context, req ResetConfirmRequest) error
	ChangePassword(ctx context.Context, userID uint, req ChangePasswordRequest) error
	UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*UserDTO, error)
	GetUser(ctx context.Context, userID uint) (*UserDTO, error)
}

type service struct {
	repo    userRepository
	hasher  passwordHasher
	tokens  tokenSource
	mail    mailSender
	logg    *logger.Logger
	jwtCfg  config.JWTConfig
	nowFunc func() time.Time
}

type userRepository interface {
	Create(ctx context.Context, params CreateUserParams) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uint) (*models.User, error)
	ConsumeVerificationToken(ctx context.Context, token string) (bool, error)
	SetResetToken(ctx context.Context, email, code string, expires time.Time) (bool, error)
	FindByLiveResetToken(ctx context.Context, token string, now time.Time) (*models.User, error)
	ConsumeResetToken(ctx context.Context, token string, now time.Time, hash string) (bool, error)
	UpdatePassword(ctx context.Context, id uint, hash string) (bool, error)
	UpdateProfile(ctx context.Context, id uint, firstName, lastName *string) (bool, error)
}

type passwordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type tokenSource interface {
	VerificationToken() (string, error)
	ResetCode() (string, error)
}

type mailSender interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, code string) error
	SendPasswordChangedEmail(ctx context.Context, to string) error
}

// ServiceParams bundles the dependencies required to build an accounts service.
type ServiceParams struct {
	Repo      userRepository
	Hasher    passwordHasher
	Tokens    tokenSource
	Mailer    mailSender
	Logger    *logger.Logger
	JWTConfig config.JWTConfig
}

// NewService constructs an accounts service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if params.Mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		repo:    params.Repo,
		hasher:  params.Hasher,
		tokens:  params.Tokens,
		mail:    params.Mailer,
		logg:    params.Logger,
		jwtCfg:  params.JWTConfig,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Signup persists a new unverified account and emails the verification link.
// The row survives a mail failure; the caller learns about the delivery
// problem through the returned error and the account can be re-verified later
// through the reset flow.
func (s *service) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	email := normalizeEmail(req.Email)

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	token, err := s.tokens.VerificationToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate verification token")
	}

	user, err := s.repo.Create(ctx, CreateUserParams{
		Email:             email,
		PasswordHash:      hash,
		FirstName:         strings.TrimSpace(req.FirstName),
		LastName:          strings.TrimSpace(req.LastName),
		VerificationToken: token,
	})
	if err != nil {
		if isDuplicateEmail(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an account with this email already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}

	if err := s.mail.SendVerificationEmail(ctx, email, token); err != nil {
		s.logg.Error(ctx, "verification email delivery failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send verification email")
	}

	return &SignupResult{UserID: user.ID}, nil
}

// Login authenticates the credentials and mints an access token. The
// verification check runs before the password comparison so an unverified
// holder of correct credentials still learns they need to verify first.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := normalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	if !user.IsVerified {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, unverifiedAccountMessage)
	}

	valid, err := s.hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	token, err := pkgAuth.MintAccessToken(s.jwtCfg, s.nowFunc(), user.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}

	return &LoginResult{Token: token, User: FromModel(user)}, nil
}

// VerifyEmail consumes a verification token. The underlying update is
// conditional on the token still being present, so a second call with the
// same token fails the same way an unknown token does.
func (s *service) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeInvalidToken, invalidTokenMessage)
	}

	ok, err := s.repo.ConsumeVerificationToken(ctx, token)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consume verification token")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInvalidToken, invalidTokenMessage)
	}
	return nil
}

// RequestPasswordReset stores a short-lived reset code and emails it. An
// unknown email is deliberately indistinguishable from a known one.
func (s *service) RequestPasswordReset(ctx context.Context, req ResetRequest) error {
	email := normalizeEmail(req.Email)

	if _, err := s.repo.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Info(s.logg.WithField(ctx, "reason", "unknown email"), "password reset requested for unknown account")
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	code, err := s.tokens.ResetCode()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate reset code")
	}

	expires := s.nowFunc().Add(resetTokenTTL)
	if _, err := s.repo.SetResetToken(ctx, email, code, expires); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store reset code")
	}

	if err := s.mail.SendPasswordResetEmail(ctx, email, code); err != nil {
		s.logg.Error(ctx, "password reset email delivery failed", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send reset email")
	}
	return nil
}

// ConfirmPasswordReset exchanges a live reset code for a new password hash.
// The write is keyed by the code itself and clears it in the same statement,
// so the code is single-use even under concurrent confirmations.
func (s *service) ConfirmPasswordReset(ctx context.Context, req ResetConfirmRequest) error {
	token := strings.TrimSpace(req.Token)
	if _, err := s.repo.FindByLiveResetToken(ctx, token, s.nowFunc()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeInvalidToken, invalidTokenMessage)
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup reset code")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	ok, err := s.repo.ConsumeResetToken(ctx, token, s.nowFunc(), hash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
	}
	if !ok {
		// A concurrent confirmation consumed the code between the
		// lookup and the write.
		return pkgerrors.New(pkgerrors.CodeInvalidToken, invalidTokenMessage)
	}
	return nil
}

// ChangePassword swaps the hash for a logged-in user after re-checking the
// current password. The confirmation email is best effort; a delivery
// failure never undoes the change.
func (s *service) ChangePassword(ctx context.Context, userID uint, req ChangePasswordRequest) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := s.hasher.Verify(req.CurrentPassword, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "current password is incorrect")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if _, err := s.repo.UpdatePassword(ctx, userID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
	}

	if err := s.mail.SendPasswordChangedEmail(ctx, user.Email); err != nil {
		s.logg.Error(ctx, "password change confirmation email failed", err)
	}
	return nil
}

// UpdateProfile applies the provided name fields and returns the fresh row.
func (s *service) UpdateProfile(ctx context.Context, userID uint, req UpdateProfileRequest) (*UserDTO, error) {
	ok, err := s.repo.UpdateProfile(ctx, userID, req.FirstName, req.LastName)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update profile")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return s.GetUser(ctx, userID)
}

// GetUser loads the sanitized view of a single account.
func (s *service) GetUser(ctx context.Context, userID uint) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	return FromModel(user), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
