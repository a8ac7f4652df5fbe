package models

import "gorm.io/gorm"

// AvailabilityRule is one recurring weekly window during which a counselor
// accepts bookings. Times are "HH:MM" strings interpreted in UTC; an end
// earlier than the start means the window crosses midnight.
type AvailabilityRule struct {
	gorm.Model
	CounselorID uint   `gorm:"column:counselor_id;not null;index" json:"counselor_id"`
	DayOfWeek   int    `gorm:"column:day_of_week;not null" json:"day_of_week"`
	StartTime   string `gorm:"column:start_time;size:5;not null" json:"start_time"`
	EndTime     string `gorm:"column:end_time;size:5;not null" json:"end_time"`

	Counselor *Counselor `gorm:"foreignKey:CounselorID" json:"-"`
}

func (AvailabilityRule) TableName() string {
	return "availability_rules"
}
