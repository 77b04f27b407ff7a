package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/licensegate/backend/internal/models"
)

// GormLicenseStore is the gorm/Postgres implementation of LicenseStore
type GormLicenseStore struct {
	db *gorm.DB
}

func NewGormLicenseStore(db *gorm.DB) *GormLicenseStore {
	return &GormLicenseStore{db: db}
}

func (s *GormLicenseStore) FindByKey(key string) (*models.License, error) {
	var license models.License
	err := s.db.Where("license_key = ? OR purchase_code = ?", key, key).First(&license).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &license, nil
}

func (s *GormLicenseStore) FindByPurchaseCode(code string) (*models.License, error) {
	var license models.License
	err := s.db.Where("purchase_code = ?", code).First(&license).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &license, nil
}

func (s *GormLicenseStore) PurchaseCodeExists(code string) (bool, error) {
	var count int64
	err := s.db.Model(&models.License{}).Where("purchase_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (s *GormLicenseStore) Create(license *models.License) error {
	return s.db.Create(license).Error
}

func (s *GormLicenseStore) Save(license *models.License) error {
	return s.db.Save(license).Error
}

func (s *GormLicenseStore) UpdateStatus(licenseID uint, status models.LicenseStatus) error {
	return s.db.Model(&models.License{}).Where("id = ?", licenseID).Update("status", status).Error
}

func (s *GormLicenseStore) CountActiveDomains(licenseID uint) (int, error) {
	var count int64
	err := s.db.Model(&models.LicenseDomain{}).
		Where("license_id = ? AND status = ?", licenseID, models.DomainStatusActive).
		Count(&count).Error
	return int(count), err
}

func (s *GormLicenseStore) ActiveDomains(licenseID uint) ([]models.LicenseDomain, error) {
	var domains []models.LicenseDomain
	err := s.db.Where("license_id = ? AND status = ?", licenseID, models.DomainStatusActive).
		Order("added_at").
		Find(&domains).Error
	return domains, err
}

func (s *GormLicenseStore) FindDomain(licenseID uint, domain string) (*models.LicenseDomain, error) {
	var bound models.LicenseDomain
	err := s.db.Where("license_id = ? AND domain = ?", licenseID, domain).First(&bound).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &bound, nil
}

func (s *GormLicenseStore) TouchDomain(domainID uint, usedAt time.Time) error {
	return s.db.Model(&models.LicenseDomain{}).
		Where("id = ?", domainID).
		Update("last_used_at", usedAt).Error
}

func (s *GormLicenseStore) LastDomainAddedAt(licenseID uint) (*time.Time, error) {
	var bound models.LicenseDomain
	err := s.db.Where("license_id = ?", licenseID).
		Order("added_at DESC").
		First(&bound).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	addedAt := bound.AddedAt
	return &addedAt, nil
}

// InsertDomainAtomic takes a row lock on the license before re-checking the
// active domain count, so two registrations racing for the last slot cannot
// both commit.
func (s *GormLicenseStore) InsertDomainAtomic(licenseID uint, domain *models.LicenseDomain, maxDomains int) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var license models.License
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&license, licenseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var active int64
		if err := tx.Model(&models.LicenseDomain{}).
			Where("license_id = ? AND status = ?", licenseID, models.DomainStatusActive).
			Count(&active).Error; err != nil {
			return err
		}
		if int(active) >= maxDomains {
			return ErrDomainLimitReached
		}

		domain.LicenseID = licenseID
		return tx.Create(domain).Error
	})
}
