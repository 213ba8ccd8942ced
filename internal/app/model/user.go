package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type UserRole string // account role

const (
	RoleUser  UserRole = "USER"  // shopper
	RoleAdmin UserRole = "ADMIN" // catalog administrator
)

// ParseRole normalizes backend role strings ("admin", "ADMIN") and falls back to USER.
func ParseRole(s string) UserRole {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// User is the account record of the embedded backend.
type User struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`            // user ID (uuid)
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`       // login email
	PasswordHash   string         `gorm:"not null" json:"-"`                       // bcrypt hash
	FullName       string         `gorm:"not null" json:"full_name"`               // display name
	Role           UserRole       `gorm:"type:varchar(20);default:'USER'" json:"role"`
	IsActive       bool           `gorm:"not null;default:false" json:"is_active"`
	EmailConfirmed bool           `gorm:"not null;default:false" json:"email_confirmed"` // false while awaiting confirmation
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// Profile is the identity returned by auth.currentUser.
type Profile struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"full_name"`
	Role        UserRole `json:"role"`
}

// Profile projects the account record onto the public identity shape.
func (u *User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.FullName,
		Role:        u.Role,
	}
}
