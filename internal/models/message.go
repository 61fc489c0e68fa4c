package models

import (
	"time"
)

const MaxMessageLength = 140

type Message struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Text      string    `json:"text" gorm:"size:140;not null"`
	Timestamp time.Time `json:"timestamp" gorm:"not null;index"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Like 点赞记录，(UserID, MessageID) 唯一
type Like struct {
	UserID    uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	MessageID uint      `json:"message_id" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt time.Time `json:"created_at"`

	User    *User    `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Message *Message `json:"-" gorm:"foreignKey:MessageID;constraint:OnDelete:CASCADE"`
}

func (Message) TableName() string {
	return "messages"
}

func (Like) TableName() string {
	return "likes"
}
