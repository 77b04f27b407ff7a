package models

import (
	"time"
)

// LicenseType represents the commercial tier of a license
type LicenseType string

const (
	LicenseTypeSingle    LicenseType = "single"
	LicenseTypeMulti     LicenseType = "multi"
	LicenseTypeDeveloper LicenseType = "developer"
	LicenseTypeExtended  LicenseType = "extended"
)

// LicenseStatus represents the stored license state. Status is denormalized:
// an "active" license past its expiry date is logically expired even before
// the stored status is transitioned, so callers must check expiry separately.
type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusInactive  LicenseStatus = "inactive"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusExpired   LicenseStatus = "expired"
)

// DomainStatus represents the state of a domain binding
type DomainStatus string

const (
	DomainStatusActive   DomainStatus = "active"
	DomainStatusInactive DomainStatus = "inactive"
)

// License represents an issued license tied to a purchase code
type License struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	ProductID *uint    `gorm:"index" json:"product_id"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	UserID    *uint    `gorm:"index" json:"user_id"`
	User      *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// PurchaseCode is the marketplace or internally generated identifier.
	// LicenseKey mirrors it today but is stored separately so a key rotation
	// would not have to rewrite the purchase code.
	PurchaseCode string `gorm:"size:64;uniqueIndex;not null" json:"-"`
	LicenseKey   string `gorm:"size:64;index;not null" json:"-"`

	LicenseType LicenseType   `gorm:"size:20;not null;default:single" json:"license_type"`
	Status      LicenseStatus `gorm:"size:20;not null;default:active;index" json:"status"`
	MaxDomains  int           `gorm:"default:1" json:"max_domains"`

	LicenseExpiresAt *time.Time `json:"license_expires_at"` // nil = lifetime
	SupportExpiresAt *time.Time `json:"support_expires_at"`
	Notes            string     `gorm:"size:500" json:"notes"`

	Domains []LicenseDomain `gorm:"foreignKey:LicenseID" json:"domains,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LicenseDomain represents one consumed domain slot on a license
type LicenseDomain struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	LicenseID uint         `gorm:"not null;index;uniqueIndex:idx_license_domain" json:"license_id"`
	Domain    string       `gorm:"size:255;not null;uniqueIndex:idx_license_domain" json:"domain"`
	Status    DomainStatus `gorm:"size:20;not null;default:active;index" json:"status"`

	IsVerified bool       `gorm:"default:false" json:"is_verified"`
	VerifiedAt *time.Time `json:"verified_at"`
	AddedAt    time.Time  `json:"added_at"`
	LastUsedAt *time.Time `json:"last_used_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (License) TableName() string {
	return "licenses"
}

func (LicenseDomain) TableName() string {
	return "license_domains"
}
