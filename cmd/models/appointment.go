package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	StatusBooked               = "booked"
	StatusConfirmed            = "confirmed"
	StatusCompleted            = "completed"
	StatusCancelledByUser      = "cancelled_by_user"
	StatusCancelledByCounselor = "cancelled_by_counselor"
)

// CancelledStatuses are the terminal states excluded from overlap checks
// and slot generation.
var CancelledStatuses = []string{StatusCancelledByUser, StatusCancelledByCounselor}

type Appointment struct {
	gorm.Model
	Reference   string    `gorm:"column:reference;size:64;uniqueIndex" json:"reference"`
	ClientID    uint      `gorm:"column:client_id;not null;index" json:"client_id"`
	CounselorID uint      `gorm:"column:counselor_id;not null;index" json:"counselor_id"`
	StartTime   time.Time `gorm:"column:start_time;not null" json:"start_time"`
	EndTime     time.Time `gorm:"column:end_time;not null" json:"end_time"`
	Status      string    `gorm:"column:status;size:32;not null;default:booked" json:"status"`
	Notes       string    `gorm:"column:notes;type:text" json:"notes,omitempty"`

	Client    *User      `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Counselor *Counselor `gorm:"foreignKey:CounselorID" json:"counselor,omitempty"`
}
