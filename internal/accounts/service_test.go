package accounts

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	pkgAuth "github.com/dcastillo/authcore-backend/pkg/auth"
	"github.com/dcastillo/authcore-backend/pkg/config"
	"github.com/dcastillo/authcore-backend/pkg/db/models"
	pkgerrors "github.com/dcastillo/authcore-backend/pkg/errors"
	"github.com/dcastillo/authcore-backend/pkg/logger"
	"github.com/dcastillo/authcore-backend/pkg/security"
	"github.com/dcastillo/authcore-backend/pkg/tokens"
	"gorm.io/gorm"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "authcore",
	ExpirationMinutes: 30,
}

func TestServiceSignupSendsVerificationEmail(t *testing.T) {
	svc, repo, mail := buildTestService(t)

	res, err := svc.Signup(context.Background(), SignupRequest{
		Email:     "  New.User@Example.COM ",
		Password:  "secret-pass",
		FirstName: "New",
		LastName:  "User",
	})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if res.UserID == 0 {
		t.Fatalf("expected assigned user id")
	}

	user := repo.byEmail("new.user@example.com")
	if user == nil {
		t.Fatalf("expected normalized email to be persisted")
	}
	if user.IsVerified {
		t.Fatalf("new accounts must start unverified")
	}
	if user.VerificationToken == nil || len(*user.VerificationToken) != 64 {
		t.Fatalf("expected 64-char verification token, got %v", user.VerificationToken)
	}
	if user.PasswordHash == "secret-pass" {
		t.Fatalf("password must be stored hashed")
	}

	if len(mail.verifications) != 1 {
		t.Fatalf("expected one verification email, got %d", len(mail.verifications))
	}
	if mail.verifications[0].token != *user.VerificationToken {
		t.Fatalf("emailed token does not match stored token")
	}
}

func TestServiceSignupDuplicateEmail(t *testing.T) {
	svc, _, _ := buildTestService(t)

	req := SignupRequest{Email: "dup@example.com", Password: "secret-pass", FirstName: "A", LastName: "B"}
	if _, err := svc.Signup(context.Background(), req); err != nil {
		t.Fatalf("first signup: %v", err)
	}

	_, err := svc.Signup(context.Background(), req)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestServiceSignupMailFailureKeepsUser(t *testing.T) {
	svc, repo, mail := buildTestService(t)
	mail.failVerification = errors.New("smtp down")

	_, err := svc.Signup(context.Background(), SignupRequest{
		Email: "kept@example.com", Password: "secret-pass", FirstName: "K", LastName: "T",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if repo.byEmail("kept@example.com") == nil {
		t.Fatalf("user must survive a mail delivery failure")
	}
}

func TestServiceLoginRejectsUnverifiedBeforePasswordCheck(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	repo.seed(t, "pending@example.com", "right-pass", false)

	// Correct password, but the account is not verified yet.
	_, err := svc.Login(context.Background(), LoginRequest{Email: "pending@example.com", Password: "right-pass"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if typed.Message() != unverifiedAccountMessage {
		t.Fatalf("expected unverified message, got %q", typed.Message())
	}

	// Wrong password on the same unverified account yields the same message,
	// so the check must run first.
	_, err = svc.Login(context.Background(), LoginRequest{Email: "pending@example.com", Password: "wrong"})
	typed = pkgerrors.As(err)
	if typed == nil || typed.Message() != unverifiedAccountMessage {
		t.Fatalf("expected unverified message regardless of password, got %v", err)
	}
}

func TestServiceLoginSuccess(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	user := repo.seed(t, "active@example.com", "right-pass", true)

	res, err := svc.Login(context.Background(), LoginRequest{Email: "Active@Example.com", Password: "right-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig, res.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("expected user id %d in claims, got %d", user.ID, claims.UserID)
	}
	if res.User == nil || res.User.Email != "active@example.com" {
		t.Fatalf("expected sanitized user in result, got %+v", res.User)
	}
}

func TestServiceLoginInvalidCredentials(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	repo.seed(t, "active@example.com", "right-pass", true)

	for _, req := range []LoginRequest{
		{Email: "missing@example.com", Password: "whatever"},
		{Email: "active@example.com", Password: "wrong"},
	} {
		_, err := svc.Login(context.Background(), req)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
			t.Fatalf("expected unauthorized for %q, got %v", req.Email, err)
		}
		if typed.Message() != invalidCredentialsMessage {
			t.Fatalf("unknown email and wrong password must read the same, got %q", typed.Message())
		}
	}
}

func TestServiceVerifyEmailIsSingleUse(t *testing.T) {
	svc, repo, mail := buildTestService(t)

	if _, err := svc.Signup(context.Background(), SignupRequest{
		Email: "once@example.com", Password: "secret-pass", FirstName: "O", LastName: "U",
	}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	token := mail.verifications[0].token

	if err := svc.VerifyEmail(context.Background(), token); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	user := repo.byEmail("once@example.com")
	if !user.IsVerified || user.VerificationToken != nil {
		t.Fatalf("expected verified user with cleared token, got %+v", user)
	}

	err := svc.VerifyEmail(context.Background(), token)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidToken {
		t.Fatalf("second use of the token must fail, got %v", err)
	}
}

func TestServiceVerifyEmailUnknownToken(t *testing.T) {
	svc, _, _ := buildTestService(t)
	for _, token := range []string{"", "   ", "deadbeef"} {
		err := svc.VerifyEmail(context.Background(), token)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeInvalidToken {
			t.Fatalf("token %q: expected invalid token error, got %v", token, err)
		}
	}
}

func TestServiceRequestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	svc, _, mail := buildTestService(t)
	if err := svc.RequestPasswordReset(context.Background(), ResetRequest{Email: "ghost@example.com"}); err != nil {
		t.Fatalf("unknown email must not error, got %v", err)
	}
	if len(mail.resets) != 0 {
		t.Fatalf("no email may be sent for unknown accounts")
	}
}

func TestServiceRequestPasswordResetEmailsCode(t *testing.T) {
	svc, repo, mail := buildTestService(t)
	repo.seed(t, "reset@example.com", "old-pass", true)

	if err := svc.RequestPasswordReset(context.Background(), ResetRequest{Email: "reset@example.com"}); err != nil {
		t.Fatalf("request reset: %v", err)
	}

	user := repo.byEmail("reset@example.com")
	if user.ResetToken == nil || len(*user.ResetToken) != 6 {
		t.Fatalf("expected 6-char reset code, got %v", user.ResetToken)
	}
	if user.ResetTokenExpires == nil || !user.ResetTokenExpires.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", user.ResetTokenExpires)
	}
	if len(mail.resets) != 1 || mail.resets[0].code != *user.ResetToken {
		t.Fatalf("emailed code must match stored code")
	}

	// A second request overwrites the first code.
	first := *user.ResetToken
	if err := svc.RequestPasswordReset(context.Background(), ResetRequest{Email: "reset@example.com"}); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if second := *repo.byEmail("reset@example.com").ResetToken; second == first {
		t.Fatalf("expected a fresh code on re-request")
	}
}

func TestServiceConfirmPasswordReset(t *testing.T) {
	svc, repo, mail := buildTestService(t)
	repo.seed(t, "reset@example.com", "old-pass", true)
	if err := svc.RequestPasswordReset(context.Background(), ResetRequest{Email: "reset@example.com"}); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	code := mail.resets[0].code

	if err := svc.ConfirmPasswordReset(context.Background(), ResetConfirmRequest{Token: code, NewPassword: "brand-new-pass"}); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}

	user := repo.byEmail("reset@example.com")
	if user.ResetToken != nil || user.ResetTokenExpires != nil {
		t.Fatalf("reset columns must be cleared, got %+v", user)
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Email: "reset@example.com", Password: "brand-new-pass"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	_, err := svc.Login(context.Background(), LoginRequest{Email: "reset@example.com", Password: "old-pass"})
	if pkgerrors.As(err) == nil {
		t.Fatalf("old password must stop working")
	}

	// The code is single use.
	err = svc.ConfirmPasswordReset(context.Background(), ResetConfirmRequest{Token: code, NewPassword: "another-pass"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidToken {
		t.Fatalf("expected invalid token on reuse, got %v", err)
	}
}

func TestServiceConfirmPasswordResetExpiredCode(t *testing.T) {
	svc, repo, mail := buildTestService(t)
	repo.seed(t, "late@example.com", "old-pass", true)
	if err := svc.RequestPasswordReset(context.Background(), ResetRequest{Email: "late@example.com"}); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	repo.expireReset("late@example.com")

	err := svc.ConfirmPasswordReset(context.Background(), ResetConfirmRequest{Token: mail.resets[0].code, NewPassword: "new-pass"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidToken {
		t.Fatalf("expected invalid token for expired code, got %v", err)
	}
}

func TestServiceChangePassword(t *testing.T) {
	svc, repo, mail := buildTestService(t)
	user := repo.seed(t, "change@example.com", "old-pass", true)

	err := svc.ChangePassword(context.Background(), user.ID, ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "new-pass"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for wrong current password, got %v", err)
	}

	if err := svc.ChangePassword(context.Background(), user.ID, ChangePasswordRequest{CurrentPassword: "old-pass", NewPassword: "new-pass"}); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "change@example.com", Password: "new-pass"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if len(mail.changed) != 1 || mail.changed[0] != "change@example.com" {
		t.Fatalf("expected confirmation email, got %v", mail.changed)
	}
}

func TestServiceChangePasswordSurvivesMailFailure(t *testing.T) {
	svc, repo, mail := buildTestService(t)
	user := repo.seed(t, "quiet@example.com", "old-pass", true)
	mail.failChanged = errors.New("smtp down")

	if err := svc.ChangePassword(context.Background(), user.ID, ChangePasswordRequest{CurrentPassword: "old-pass", NewPassword: "new-pass"}); err != nil {
		t.Fatalf("confirmation mail failure must not fail the change, got %v", err)
	}
	if _, err := svc.Login(context.Background(), LoginRequest{Email: "quiet@example.com", Password: "new-pass"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestServiceUpdateProfile(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	user := repo.seed(t, "profile@example.com", "pass-word", true)

	first := "Updated"
	res, err := svc.UpdateProfile(context.Background(), user.ID, UpdateProfileRequest{FirstName: &first})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if res.FirstName != "Updated" {
		t.Fatalf("expected updated first name, got %q", res.FirstName)
	}
	if res.LastName != user.LastName {
		t.Fatalf("omitted field must be untouched, got %q", res.LastName)
	}

	_, err = svc.UpdateProfile(context.Background(), 9999, UpdateProfileRequest{FirstName: &first})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
}

func TestServiceGetUser(t *testing.T) {
	svc, repo, _ := buildTestService(t)
	user := repo.seed(t, "me@example.com", "pass-word", true)

	res, err := svc.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if res.ID != user.ID || res.Email != "me@example.com" {
		t.Fatalf("unexpected user payload: %+v", res)
	}

	_, err = svc.GetUser(context.Background(), 9999)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func buildTestService(t *testing.T) (Service, *memoryRepo, *stubMailer) {
	t.Helper()
	repo := newMemoryRepo()
	mail := &stubMailer{}
	logg := logger.New(logger.Options{ServiceName: "accounts-test", Output: io.Discard})
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Hasher:    security.NewHasher(config.PasswordConfig{}),
		Tokens:    tokens.NewGenerator(),
		Mailer:    mail,
		Logger:    logg,
		JWTConfig: testJWTConfig,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, repo, mail
}

// memoryRepo mimics the conditional-update behavior of the SQL repo.
type memoryRepo struct {
	nextID uint
	users  map[uint]*models.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, users: map[uint]*models.User{}}
}

func (m *memoryRepo) byEmail(email string) *models.User {
	for _, u := range m.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (m *memoryRepo) seed(t *testing.T, email, password string, verified bool) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		ID:           m.nextID,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Seed",
		LastName:     "User",
		IsVerified:   verified,
		CreatedAt:    time.Now().UTC(),
	}
	m.nextID++
	m.users[user.ID] = user
	return user
}

func (m *memoryRepo) expireReset(email string) {
	if u := m.byEmail(email); u != nil && u.ResetTokenExpires != nil {
		past := time.Now().Add(-time.Minute)
		u.ResetTokenExpires = &past
	}
}

func (m *memoryRepo) Create(_ context.Context, params CreateUserParams) (*models.User, error) {
	if m.byEmail(params.Email) != nil {
		return nil, errors.New(`duplicate key value violates unique constraint "idx_users_email"`)
	}
	token := params.VerificationToken
	user := &models.User{
		ID:                m.nextID,
		Email:             params.Email,
		PasswordHash:      params.PasswordHash,
		FirstName:         params.FirstName,
		LastName:          params.LastName,
		VerificationToken: &token,
		CreatedAt:         time.Now().UTC(),
	}
	m.nextID++
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u := m.byEmail(email); u != nil {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepo) FindByID(_ context.Context, id uint) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepo) ConsumeVerificationToken(_ context.Context, token string) (bool, error) {
	for _, u := range m.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			u.IsVerified = true
			u.VerificationToken = nil
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) SetResetToken(_ context.Context, email, code string, expires time.Time) (bool, error) {
	u := m.byEmail(email)
	if u == nil {
		return false, nil
	}
	u.ResetToken = &code
	u.ResetTokenExpires = &expires
	return true, nil
}

func (m *memoryRepo) FindByLiveResetToken(_ context.Context, token string, now time.Time) (*models.User, error) {
	for _, u := range m.users {
		if u.ResetToken != nil && *u.ResetToken == token && u.ResetTokenExpires != nil && u.ResetTokenExpires.After(now) {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryRepo) ConsumeResetToken(_ context.Context, token string, now time.Time, hash string) (bool, error) {
	for _, u := range m.users {
		if u.ResetToken == nil || *u.ResetToken != token {
			continue
		}
		if u.ResetTokenExpires == nil || !u.ResetTokenExpires.After(now) {
			continue
		}
		u.PasswordHash = hash
		u.ResetToken = nil
		u.ResetTokenExpires = nil
		return true, nil
	}
	return false, nil
}

func (m *memoryRepo) UpdatePassword(_ context.Context, id uint, hash string) (bool, error) {
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.PasswordHash = hash
	return true, nil
}

func (m *memoryRepo) UpdateProfile(_ context.Context, id uint, firstName, lastName *string) (bool, error) {
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	if firstName != nil {
		u.FirstName = *firstName
	}
	if lastName != nil {
		u.LastName = *lastName
	}
	return true, nil
}

type sentVerification struct {
	to    string
	token string
}

type sentReset struct {
	to   string
	code string
}

type stubMailer struct {
	verifications    []sentVerification
	resets           []sentReset
	changed          []string
	failVerification error
	failReset        error
	failChanged      error
}

func (s *stubMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	if s.failVerification != nil {
		return s.failVerification
	}
	s.verifications = append(s.verifications, sentVerification{to: to, token: token})
	return nil
}

func (s *stubMailer) SendPasswordResetEmail(_ context.Context, to, code string) error {
	if s.failReset != nil {
		return s.failReset
	}
	s.resets = append(s.resets, sentReset{to: to, code: code})
	return nil
}

func (s *stubMailer) SendPasswordChangedEmail(_ context.Context, to string) error {
	if s.failChanged != nil {
		return s.failChanged
	}
	s.changed = append(s.changed, to)
	return nil
}
