package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a member of the sponsor tree. SponsorID is assigned once at
// registration and never changes afterwards.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UUID      string         `gorm:"size:36;uniqueIndex;not null" json:"uuid"`
	Username  string         `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Role      string         `gorm:"size:20;not null;default:'USER'" json:"role"`
	SponsorID *uint          `gorm:"index" json:"sponsor_id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Wallet *Wallet `gorm:"foreignKey:UserID" json:"wallet,omitempty"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) HasSponsor() bool { return u.SponsorID != nil && *u.SponsorID != 0 }

// IsActive reports whether the user has not been soft-deleted.
func (u *User) IsActive() bool { return !u.DeletedAt.Valid }
