package accounts

import (
	"context"
	"time"

	"github.com/dcastillo/authcore-backend/pkg/db"
	"github.com/dcastillo/authcore-backend/pkg/db/models"
	"gorm.io/gorm"
)

func isDuplicateEmail(err error) bool {
	return db.IsUniqueViolation(err, "")
}

// Repository exposes user-related persistence operations. It is the single
// writer of the users table; the service never touches the connection
// directly.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an accounts repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new unverified user and returns the persisted model.
func (r *Repository) Create(ctx context.Context, params CreateUserParams) (*models.User, error) {
	token := params.VerificationToken
	user := &models.User{
		Email:             params.Email,
		PasswordHash:      params.PasswordHash,
		FirstName:         params.FirstName,
		LastName:          params.LastName,
		IsVerified:        false,
		VerificationToken: &token,
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail retrieves the user matching the provided (normalized) email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by primary key.
func (r *Repository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ConsumeVerificationToken flips is_verified and clears the token in one
// conditional update keyed by the token value. Concurrent calls with the same
// token race on the WHERE clause; only the winner reports true.
func (r *Repository) ConsumeVerificationToken(ctx context.Context, token string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("verification_token = ?", token).
		Updates(map[string]any{
			"is_verified":        true,
			"verification_token": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SetResetToken overwrites any previous reset code and its expiry for the
// account with the given email.
func (r *Repository) SetResetToken(ctx context.Context, email, code string, expires time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ?", email).
		Updates(map[string]any{
			"reset_token":         code,
			"reset_token_expires": expires,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindByLiveResetToken returns the user holding the code, provided the expiry
// is still in the future. Expired codes behave as absent.
func (r *Repository) FindByLiveResetToken(ctx context.Context, token string, now time.Time) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Where("reset_token = ? AND reset_token_expires > ?", token, now).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ConsumeResetToken replaces the stored hash and clears both reset columns
// in one update keyed by the live code, making the code single-use. A zero
// row count means the code was already consumed or has expired.
func (r *Repository) ConsumeResetToken(ctx context.Context, token string, now time.Time, hash string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("reset_token = ? AND reset_token_expires > ?", token, now).
		Updates(map[string]any{
			"password_hash":       hash,
			"reset_token":         nil,
			"reset_token_expires": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdatePassword replaces the stored hash without touching reset columns.
func (r *Repository) UpdatePassword(ctx context.Context, id uint, hash string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpdateProfile overwrites only the supplied name fields.
func (r *Repository) UpdateProfile(ctx context.Context, id uint, firstName, lastName *string) (bool, error) {
	updates := map[string]any{}
	if firstName != nil {
		updates["first_name"] = *firstName
	}
	if lastName != nil {
		updates["last_name"] = *lastName
	}
	if len(updates) == 0 {
		// Nothing to change; report whether the row exists.
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0, nil
	}

	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
