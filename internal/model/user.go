package model

import (
	"time"
)

type UserRole string

const (
	Employee UserRole = "employee"
	Manager  UserRole = "manager"
	Admin    UserRole = "admin"
)

// User is owned by the identity subsystem; only the columns the sync engine
// reads are mapped here.
// swagger:model User
type User struct {
	BaseModel
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:100;unique;not null" json:"email"`
	Password  string    `gorm:"size:100;not null" json:"-"`
	Role      UserRole  `gorm:"size:20;default:'employee'" json:"role"`
	Disabled  bool      `gorm:"default:false" json:"disabled"`
	LastLogin time.Time `json:"lastLogin"`
}

func (User) TableName() string {
	return "users"
}
