package store

import (
	"errors"
	"time"

	"github.com/licensegate/backend/internal/models"
)

// ErrNotFound is returned when a requested row does not exist. Callers use it
// to distinguish "license invalid" from "storage broken".
var ErrNotFound = errors.New("record not found")

// ErrDomainLimitReached is returned by InsertDomainAtomic when the license has
// no free domain slots at commit time.
var ErrDomainLimitReached = errors.New("domain limit reached")

// LicenseStore abstracts license and domain persistence so the verification
// state machine stays independent of the storage engine.
type LicenseStore interface {
	// FindByKey resolves a license by license key or purchase code.
	FindByKey(key string) (*models.License, error)
	FindByPurchaseCode(code string) (*models.License, error)
	PurchaseCodeExists(code string) (bool, error)
	Create(license *models.License) error
	Save(license *models.License) error
	UpdateStatus(licenseID uint, status models.LicenseStatus) error

	CountActiveDomains(licenseID uint) (int, error)
	ActiveDomains(licenseID uint) ([]models.LicenseDomain, error)
	FindDomain(licenseID uint, domain string) (*models.LicenseDomain, error)
	TouchDomain(domainID uint, usedAt time.Time) error
	LastDomainAddedAt(licenseID uint) (*time.Time, error)

	// InsertDomainAtomic re-checks the active domain count and inserts the
	// binding as a single atomic unit per license, so concurrent
	// registrations at the quota boundary cannot overshoot maxDomains.
	InsertDomainAtomic(licenseID uint, domain *models.LicenseDomain, maxDomains int) error
}

// SettingStore abstracts the persisted policy key/value space.
type SettingStore interface {
	Value(key string) (string, error)
	Values(keys []string) (map[string]string, error)
	Upsert(key, value, valueType string) error
	Delete(key string) error
	All() ([]models.Setting, error)
}

// DateCount is one day bucket of an aggregate query
type DateCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// DomainCount is one domain bucket of an aggregate query
type DomainCount struct {
	Domain string `json:"domain"`
	Count  int64  `json:"count"`
}

// HourCount is one hour bucket of an aggregate query
type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// IPActivity is one suspicious-source row
type IPActivity struct {
	IPAddress    string    `json:"ip_address"`
	AttemptCount int64     `json:"attempt_count"`
	LastAttempt  time.Time `json:"last_attempt"`
}

// VerificationStats is the summary block consumed by reporting
type VerificationStats struct {
	TotalAttempts        int64 `json:"total_attempts"`
	SuccessfulAttempts   int64 `json:"successful_attempts"`
	FailedAttempts       int64 `json:"failed_attempts"`
	UniqueDomains        int64 `json:"unique_domains"`
	UniqueIPs            int64 `json:"unique_ips"`
	RecentFailedAttempts int64 `json:"recent_failed_attempts"`
}

// AuditStore persists and aggregates the verification audit trail.
type AuditStore interface {
	InsertVerificationLog(entry *models.LicenseVerificationLog) error
	InsertLicenseLog(entry *models.LicenseLog) error

	CountFailuresSince(ip string, since time.Time) (int64, error)
	RecentAttempts(limit int) ([]models.LicenseVerificationLog, error)
	Stats(days int) (VerificationStats, error)
	CallsByDate(days int) ([]DateCount, error)
	StatusDistribution(days int) (map[string]int64, error)
	TopDomains(days, limit int) ([]DomainCount, error)
	HourlyDistribution(day time.Time) ([]HourCount, error)
	SuspiciousIPs(since time.Time, minAttempts int) ([]IPActivity, error)
	PurgeOlderThan(cutoff time.Time) (int64, error)
}

// Cache is the cache port used by the policy resolver, Envato client and
// verification result cache. Implementations must treat a miss as an error.
type Cache interface {
	Get(key string, dest interface{}) error
	Set(key string, value interface{}, ttl time.Duration) error
	Delete(keys ...string) error
	DeletePattern(pattern string) error
}
