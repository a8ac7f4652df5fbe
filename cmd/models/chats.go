package models

import "gorm.io/gorm"

// Chat is one exchange with the AI companion. Response generation and
// sentiment classification happen in an external service; only the result
// is stored here.
type Chat struct {
	gorm.Model
	UserID     uint    `gorm:"column:user_id;not null;index" json:"user_id"`
	Message    string  `gorm:"column:message;type:text;not null" json:"message"`
	Response   string  `gorm:"column:response;type:text" json:"response"`
	Emotion    string  `gorm:"column:emotion;size:50" json:"emotion,omitempty"`
	Confidence float64 `gorm:"column:confidence" json:"confidence,omitempty"`
	Flagged    bool    `gorm:"column:flagged;default:false" json:"flagged"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// LiveChatMessage is a message exchanged during a live counseling session.
type LiveChatMessage struct {
	gorm.Model
	AppointmentID uint   `gorm:"column:appointment_id;not null;index" json:"appointment_id"`
	SenderID      uint   `gorm:"column:sender_id;not null" json:"sender_id"`
	Content       string `gorm:"column:content;type:text;not null" json:"content"`

	Appointment *Appointment `gorm:"foreignKey:AppointmentID" json:"-"`
	Sender      *User        `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (LiveChatMessage) TableName() string {
	return "live_chat_messages"
}
