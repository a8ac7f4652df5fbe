package models

import "gorm.io/gorm"

type ForumPost struct {
	gorm.Model
	UserID  uint   `gorm:"column:user_id;not null;index" json:"user_id"`
	Title   string `gorm:"column:title;size:255;not null" json:"title"`
	Content string `gorm:"column:content;type:text;not null" json:"content"`

	User     *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Comments []ForumComment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
}

type ForumComment struct {
	gorm.Model
	UserID  uint   `gorm:"column:user_id;not null;index" json:"user_id"`
	PostID  uint   `gorm:"column:post_id;not null;index" json:"post_id"`
	Content string `gorm:"column:content;type:text;not null" json:"content"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
