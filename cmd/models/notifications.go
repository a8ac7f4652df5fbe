package models

import "gorm.io/gorm"

// Device is a registered Expo push target for a user.
type Device struct {
	gorm.Model
	Token      string `gorm:"not null;uniqueIndex:idx_token_user" json:"token"`
	UserID     uint   `gorm:"not null;index;uniqueIndex:idx_token_user" json:"user_id"`
	DeviceType string `gorm:"type:varchar(50)" json:"device_type"`
	DeviceName string `gorm:"type:varchar(100)" json:"device_name,omitempty"`
}
