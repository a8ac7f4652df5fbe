package models

import "gorm.io/gorm"

type JournalEntry struct {
	gorm.Model
	UserID  uint   `gorm:"column:user_id;not null;index" json:"user_id"`
	Title   string `gorm:"column:title;size:255" json:"title"`
	Content string `gorm:"column:content;type:text;not null" json:"content"`
	Mood    string `gorm:"column:mood;size:50" json:"mood,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (JournalEntry) TableName() string {
	return "journal_entries"
}
