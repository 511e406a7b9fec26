package models

import "time"

// User is the sole persisted entity: one row per registered account.
// Verification and reset tokens live on the row itself; a NULL token means
// no pending verification/reset.
type User struct {
	ID                uint       `gorm:"primaryKey;autoIncrement"`
	Email             string     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash      string     `gorm:"column:password_hash;not null"`
	FirstName         string     `gorm:"column:first_name;not null"`
	LastName          string     `gorm:"column:last_name;not null"`
	IsVerified        bool       `gorm:"column:is_verified;not null;default:false"`
	VerificationToken *string    `gorm:"column:verification_token"`
	ResetToken        *string    `gorm:"column:reset_token"`
	ResetTokenExpires *time.Time `gorm:"column:reset_token_expires"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
