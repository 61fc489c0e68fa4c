package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	DefaultProfileImage = "/static/images/default-pic.png"
	DefaultHeaderImage  = "/static/images/warbler-hero.jpg"
)

type User struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	Username       string    `json:"username" gorm:"uniqueIndex;not null"`
	Email          string    `json:"email" gorm:"uniqueIndex;not null"`
	Password       string    `json:"-" gorm:"not null"`
	ImageURL       string    `json:"image_url" gorm:"not null"`
	HeaderImageURL string    `json:"header_image_url" gorm:"not null"`
	Bio            *string   `json:"bio"`
	Location       *string   `json:"location"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Follow 关注关系，FollowerID 关注 FollowedID
type Follow struct {
	FollowerID uint      `json:"follower_id" gorm:"primaryKey;autoIncrement:false"`
	FollowedID uint      `json:"followed_id" gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt  time.Time `json:"created_at"`

	Follower *User `json:"-" gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	Followed *User `json:"-" gorm:"foreignKey:FollowedID;constraint:OnDelete:CASCADE"`
}

func (User) TableName() string {
	return "users"
}

func (Follow) TableName() string {
	return "follows"
}

func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.ImageURL == "" {
		u.ImageURL = DefaultProfileImage
	}
	if u.HeaderImageURL == "" {
		u.HeaderImageURL = DefaultHeaderImage
	}
	return nil
}

func (u *User) String() string {
	return fmt.Sprintf("<User #%d: %s, %s>", u.ID, u.Username, u.Email)
}
