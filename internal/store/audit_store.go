package store

import (
	"time"

	"gorm.io/gorm"

	"github.com/licensegate/backend/internal/models"
)

// GormAuditStore is the gorm/Postgres implementation of AuditStore
type GormAuditStore struct {
	db *gorm.DB
}

func NewGormAuditStore(db *gorm.DB) *GormAuditStore {
	return &GormAuditStore{db: db}
}

func (s *GormAuditStore) InsertVerificationLog(entry *models.LicenseVerificationLog) error {
	return s.db.Create(entry).Error
}

func (s *GormAuditStore) InsertLicenseLog(entry *models.LicenseLog) error {
	return s.db.Create(entry).Error
}

func (s *GormAuditStore) CountFailuresSince(ip string, since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&models.LicenseVerificationLog{}).
		Where("ip_address = ? AND is_valid = ? AND created_at >= ?", ip, false, since).
		Count(&count).Error
	return count, err
}

func (s *GormAuditStore) RecentAttempts(limit int) ([]models.LicenseVerificationLog, error) {
	var entries []models.LicenseVerificationLog
	err := s.db.Order("created_at DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

func (s *GormAuditStore) Stats(days int) (VerificationStats, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	recentSince := time.Now().UTC().Add(-24 * time.Hour)
	base := func() *gorm.DB {
		return s.db.Model(&models.LicenseVerificationLog{}).Where("created_at >= ?", since)
	}

	var stats VerificationStats
	if err := base().Count(&stats.TotalAttempts).Error; err != nil {
		return stats, err
	}
	if err := base().Where("is_valid = ?", true).Count(&stats.SuccessfulAttempts).Error; err != nil {
		return stats, err
	}
	if err := base().Where("is_valid = ?", false).Count(&stats.FailedAttempts).Error; err != nil {
		return stats, err
	}
	if err := base().Distinct("domain").Count(&stats.UniqueDomains).Error; err != nil {
		return stats, err
	}
	if err := base().Distinct("ip_address").Count(&stats.UniqueIPs).Error; err != nil {
		return stats, err
	}
	err := s.db.Model(&models.LicenseVerificationLog{}).
		Where("is_valid = ? AND created_at >= ?", false, recentSince).
		Count(&stats.RecentFailedAttempts).Error
	return stats, err
}

func (s *GormAuditStore) CallsByDate(days int) ([]DateCount, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	var results []DateCount
	err := s.db.Model(&models.LicenseVerificationLog{}).
		Select("DATE(created_at) as date, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("DATE(created_at)").
		Order("date").
		Scan(&results).Error
	return results, err
}

func (s *GormAuditStore) StatusDistribution(days int) (map[string]int64, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.db.Model(&models.LicenseVerificationLog{}).
		Select("status, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	distribution := make(map[string]int64, len(rows))
	for _, row := range rows {
		distribution[row.Status] = row.Count
	}
	return distribution, nil
}

func (s *GormAuditStore) TopDomains(days, limit int) ([]DomainCount, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	var results []DomainCount
	err := s.db.Model(&models.LicenseVerificationLog{}).
		Select("domain, COUNT(*) as count").
		Where("created_at >= ? AND domain != ''", since).
		Group("domain").
		Order("count DESC").
		Limit(limit).
		Scan(&results).Error
	return results, err
}

func (s *GormAuditStore) HourlyDistribution(day time.Time) ([]HourCount, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var results []HourCount
	err := s.db.Model(&models.LicenseVerificationLog{}).
		Select("EXTRACT(HOUR FROM created_at)::int as hour, COUNT(*) as count").
		Where("created_at >= ? AND created_at < ?", dayStart, dayStart.AddDate(0, 0, 1)).
		Group("hour").
		Order("hour").
		Scan(&results).Error
	return results, err
}

func (s *GormAuditStore) SuspiciousIPs(since time.Time, minAttempts int) ([]IPActivity, error) {
	var results []IPActivity
	err := s.db.Model(&models.LicenseVerificationLog{}).
		Select("ip_address, COUNT(*) as attempt_count, MAX(created_at) as last_attempt").
		Where("is_valid = ? AND created_at >= ?", false, since).
		Group("ip_address").
		Having("COUNT(*) >= ?", minAttempts).
		Order("attempt_count DESC").
		Scan(&results).Error
	return results, err
}

func (s *GormAuditStore) PurgeOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.LicenseVerificationLog{})
	return result.RowsAffected, result.Error
}
