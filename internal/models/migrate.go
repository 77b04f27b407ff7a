package models

import (
	"log"

	"gorm.io/gorm"
)

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	return db.AutoMigrate(
		&User{},
		&Product{},
		&License{},
		&LicenseDomain{},
		&LicenseVerificationLog{},
		&LicenseLog{},
		&Setting{},
	)
}
