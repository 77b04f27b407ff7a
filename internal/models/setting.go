package models

import (
	"time"
)

// Setting represents a single policy/configuration value. The unique index on
// Key makes duplicate rows impossible at the schema level, so no runtime
// deduplication is needed.
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"size:100;uniqueIndex;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	ValueType string    `gorm:"size:20;default:string" json:"value_type"` // string, bool, int, float, json
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}
