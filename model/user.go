package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User stores a customer account together with its lockout and audit
// tracking fields. Passwords are stored as bcrypt hashes only.
type User struct {
	ID          uint   `gorm:"primarykey"`
	Username    string `gorm:"uniqueIndex;size:32;not null"`
	Email       string `gorm:"uniqueIndex;size:256;not null"`
	NationalID  string `gorm:"uniqueIndex;size:13;not null"`
	FirstName   string `gorm:"size:64;not null"`
	LastName    string `gorm:"size:64;not null"`
	PhoneNumber string `gorm:"size:20"`
	DateOfBirth time.Time
	Gender      string `gorm:"size:1"` // M or F, derived from the national id
	Address     string `gorm:"size:256"`
	City        string `gorm:"size:64"`
	Province    string `gorm:"size:64"`
	PostalCode  string `gorm:"size:10"`

	PasswordHash string `gorm:"size:64;not null"`
	Roles        string `gorm:"size:256;not null;default:''"` // comma separated

	FailedLoginAttempts int `gorm:"not null;default:0"`
	LastFailedLoginTime *time.Time
	LockedUntil         *time.Time
	LastLoginTime       *time.Time
	LastLoginIP         string `gorm:"size:45"`

	IsActive        bool   `gorm:"not null;default:true"`
	IsEmailVerified bool   `gorm:"not null;default:false"`
	RegistrationIP  string `gorm:"size:45"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == 0 {
		u.ID = GenerateID()
	}
	return nil
}

// RoleList splits the stored role string into individual role names.
func (u *User) RoleList() []string {
	if u.Roles == "" {
		return nil
	}
	return strings.Split(u.Roles, ",")
}

// SetRoles stores the given role names on the user.
func (u *User) SetRoles(roles []string) {
	u.Roles = strings.Join(roles, ",")
}
