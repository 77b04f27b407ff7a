package models

import (
	"time"
)

// UserType represents the type of user
type UserType string

const (
	UserTypeAdmin    UserType = "admin"
	UserTypeCustomer UserType = "customer"
)

// User represents an admin operator or a license owner
type User struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	Username string   `gorm:"size:100;uniqueIndex;not null" json:"username"`
	Password string   `gorm:"size:255;not null" json:"-"`
	Email    string   `gorm:"size:255;uniqueIndex" json:"email"`
	FullName string   `gorm:"size:255" json:"full_name"`
	UserType UserType `gorm:"size:20;not null;default:customer;index" json:"user_type"`

	EnvatoUsername      string `gorm:"size:100" json:"envato_username"`
	IsActive            bool   `gorm:"default:true" json:"is_active"`
	ForcePasswordChange bool   `gorm:"default:false" json:"force_password_change"`

	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Product represents a sellable product that licenses are issued for
type Product struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Name         string      `gorm:"size:255;not null" json:"name"`
	Slug         string      `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Version      string      `gorm:"size:20" json:"version"`
	LicenseType  LicenseType `gorm:"size:20;default:single" json:"license_type"`
	SupportDays  int         `gorm:"default:365" json:"support_days"`
	EnvatoItemID int64       `gorm:"index" json:"envato_item_id"`
	IsActive     bool        `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (Product) TableName() string {
	return "products"
}
