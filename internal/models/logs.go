package models

import (
	"encoding/json"
	"time"
)

// Verification log statuses
const (
	VerificationStatusSuccess = "success"
	VerificationStatusFailed  = "failed"
	VerificationStatusError   = "error"
)

// Verification sources
const (
	VerificationSourceInstall = "install"
	VerificationSourceAPI     = "api"
	VerificationSourceAdmin   = "admin"
)

// LicenseVerificationLog is the append-only audit trail of verification and
// registration attempts. Rows are never updated after insert. The raw purchase
// code is never stored, only its hash.
type LicenseVerificationLog struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	RequestID          string          `gorm:"size:36;index" json:"request_id"`
	PurchaseCodeHash   string          `gorm:"size:64;not null;index" json:"purchase_code_hash"`
	Domain             string          `gorm:"size:255;index" json:"domain"`
	IPAddress          string          `gorm:"size:50;index" json:"ip_address"`
	UserAgent          string          `gorm:"size:255" json:"user_agent"`
	IsValid            bool            `gorm:"index" json:"is_valid"`
	ResponseMessage    string          `gorm:"size:500" json:"response_message"`
	ResponseData       json.RawMessage `gorm:"type:jsonb" json:"response_data"`
	VerificationSource string          `gorm:"size:20;not null;default:install" json:"verification_source"`
	Status             string          `gorm:"size:20;not null;index" json:"status"`
	ErrorDetails       string          `gorm:"size:500" json:"error_details"`
	VerifiedAt         *time.Time      `json:"verified_at"`
	CreatedAt          time.Time       `gorm:"index" json:"created_at"`
}

// MaskedPurchaseCode is a display transform for the stored hash: first and
// last four characters with a fixed mask between. Hashes of eight characters
// or fewer render as the mask alone.
func (l *LicenseVerificationLog) MaskedPurchaseCode() string {
	if len(l.PurchaseCodeHash) <= 8 {
		return "****"
	}
	return l.PurchaseCodeHash[:4] + "****" + l.PurchaseCodeHash[len(l.PurchaseCodeHash)-4:]
}

// LicenseLog is the lower-level per-license API activity log used for
// timelines and aggregate analytics.
type LicenseLog struct {
	ID        uint     `gorm:"primaryKey" json:"id"`
	LicenseID uint     `gorm:"not null;index" json:"license_id"`
	License   *License `gorm:"foreignKey:LicenseID" json:"license,omitempty"`

	Domain       string          `gorm:"size:255" json:"domain"`
	IPAddress    string          `gorm:"size:50" json:"ip_address"`
	Serial       string          `gorm:"size:64" json:"serial"`
	Status       string          `gorm:"size:20;index" json:"status"`
	UserAgent    string          `gorm:"size:255" json:"user_agent"`
	RequestData  json.RawMessage `gorm:"type:jsonb" json:"request_data"`
	ResponseData json.RawMessage `gorm:"type:jsonb" json:"response_data"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Action reads the derived action from the request payload
func (l *LicenseLog) Action() string {
	return l.payloadField(l.RequestData, "action")
}

// Message reads the derived message from the response payload
func (l *LicenseLog) Message() string {
	return l.payloadField(l.ResponseData, "message")
}

func (l *LicenseLog) payloadField(raw json.RawMessage, field string) string {
	if len(raw) == 0 {
		return ""
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	if v, ok := payload[field].(string); ok {
		return v
	}
	return ""
}

func (LicenseVerificationLog) TableName() string {
	return "license_verification_logs"
}

func (LicenseLog) TableName() string {
	return "license_logs"
}
