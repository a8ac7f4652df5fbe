package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	FullName     string `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email        string `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"column:password_hash;size:255;not null" json:"-"`
	IsAdmin      bool   `gorm:"column:is_admin;default:false" json:"is_admin"`

	EmailVerified         bool      `gorm:"column:email_verified;default:false" json:"email_verified"`
	EmailVerificationCode string    `gorm:"size:6" json:"-"`
	VerificationExpiry    time.Time `gorm:"" json:"-"`

	Refresh               string    `gorm:"column:refresh_token;size:255" json:"-"`
	RefreshTokenExpiredAt time.Time `gorm:"column:refresh_token_expired_at" json:"-"`

	Counselor *Counselor `gorm:"foreignKey:UserID" json:"counselor,omitempty"`
}

// Counselor is the professional profile bound 1:1 to its owning User.
// The binding is enforced at creation time, not by the storage layer.
type Counselor struct {
	gorm.Model
	UserID       uint   `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Specialty    string `gorm:"column:specialty;size:255" json:"specialty"`
	Bio          string `gorm:"column:bio;type:text" json:"bio"`
	SlotDuration int    `gorm:"column:slot_duration;not null;default:60" json:"slot_duration"`
	IsActive     bool   `gorm:"column:is_active;default:true" json:"is_active"`

	Availability []AvailabilityRule `gorm:"foreignKey:CounselorID" json:"availability,omitempty"`
	User         *User              `gorm:"foreignKey:UserID" json:"-"`
}

func (Counselor) TableName() string {
	return "counselors"
}

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null"`
	Token     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
}
