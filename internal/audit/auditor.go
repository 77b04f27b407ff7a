package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/licensegate/backend/internal/models"
	"github.com/licensegate/backend/internal/store"
)

// Attempt describes one verification or registration attempt to record
type Attempt struct {
	PurchaseCode string
	Domain       string
	IPAddress    string
	UserAgent    string
	Valid        bool
	Message      string
	ResponseData map[string]interface{}
	Source       string
	ErrorDetails string

	// LicenseID, when known, also produces a per-license activity row
	LicenseID   *uint
	RequestData map[string]interface{}
}

// Auditor records every verification attempt and serves the read-side
// aggregations. Recording is best-effort: a logging failure must never fail
// the parent verification call.
type Auditor struct {
	store store.AuditStore
	now   func() time.Time
}

func NewAuditor(auditStore store.AuditStore) *Auditor {
	return &Auditor{store: auditStore, now: time.Now}
}

// NewAuditorWithClock injects a time source for deterministic tests
func NewAuditorWithClock(auditStore store.AuditStore, now func() time.Time) *Auditor {
	return &Auditor{store: auditStore, now: now}
}

// HashPurchaseCode is the one stable hash used everywhere a purchase code is
// stored or compared: sha256, lowercase hex.
func HashPurchaseCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// MaskHash renders a stored hash for display: first and last four characters
// around a fixed mask, or the mask alone for short hashes.
func MaskHash(hash string) string {
	if len(hash) <= 8 {
		return "****"
	}
	return hash[:4] + "****" + hash[len(hash)-4:]
}

// Record writes the audit row for an attempt. Always returns an entry; on a
// storage failure the unsaved entry is returned and the failure goes to the
// operational log.
func (a *Auditor) Record(attempt Attempt) *models.LicenseVerificationLog {
	now := a.now().UTC()

	status := models.VerificationStatusFailed
	if attempt.ErrorDetails != "" {
		status = models.VerificationStatusError
	} else if attempt.Valid {
		status = models.VerificationStatusSuccess
	}

	var verifiedAt *time.Time
	if attempt.Valid {
		verifiedAt = &now
	}

	entry := &models.LicenseVerificationLog{
		RequestID:          uuid.NewString(),
		PurchaseCodeHash:   HashPurchaseCode(attempt.PurchaseCode),
		Domain:             attempt.Domain,
		IPAddress:          orUnknown(attempt.IPAddress),
		UserAgent:          orUnknown(attempt.UserAgent),
		IsValid:            attempt.Valid,
		ResponseMessage:    attempt.Message,
		ResponseData:       marshalPayload(attempt.ResponseData),
		VerificationSource: validSource(attempt.Source),
		Status:             status,
		ErrorDetails:       attempt.ErrorDetails,
		VerifiedAt:         verifiedAt,
		CreatedAt:          now,
	}

	if err := a.store.InsertVerificationLog(entry); err != nil {
		log.Printf("audit: failed to record verification attempt for %s: %v", entry.Domain, err)
	}

	if attempt.LicenseID != nil {
		licenseLog := &models.LicenseLog{
			LicenseID:    *attempt.LicenseID,
			Domain:       attempt.Domain,
			IPAddress:    entry.IPAddress,
			Serial:       entry.RequestID,
			Status:       status,
			UserAgent:    entry.UserAgent,
			RequestData:  marshalPayload(attempt.RequestData),
			ResponseData: entry.ResponseData,
			CreatedAt:    now,
		}
		if err := a.store.InsertLicenseLog(licenseLog); err != nil {
			log.Printf("audit: failed to record license activity for license %d: %v", *attempt.LicenseID, err)
		}
	}

	return entry
}

// RecentFailures counts failed attempts from an IP within the window.
// Degrades to zero on storage errors so abuse checks fail open.
func (a *Auditor) RecentFailures(ip string, window time.Duration) int64 {
	count, err := a.store.CountFailuresSince(ip, a.now().UTC().Add(-window))
	if err != nil {
		log.Printf("audit: failure count unavailable for %s: %v", ip, err)
		return 0
	}
	return count
}

// Stats returns the verification summary for the last days. Degrades to a
// zero-valued summary on storage errors.
func (a *Auditor) Stats(days int) store.VerificationStats {
	stats, err := a.store.Stats(days)
	if err != nil {
		log.Printf("audit: stats unavailable: %v", err)
		return store.VerificationStats{}
	}
	return stats
}

// CallsByDate returns per-day attempt counts
func (a *Auditor) CallsByDate(days int) []store.DateCount {
	results, err := a.store.CallsByDate(days)
	if err != nil {
		log.Printf("audit: calls-by-date unavailable: %v", err)
		return nil
	}
	return results
}

// StatusDistribution returns attempt counts grouped by status
func (a *Auditor) StatusDistribution(days int) map[string]int64 {
	results, err := a.store.StatusDistribution(days)
	if err != nil {
		log.Printf("audit: status distribution unavailable: %v", err)
		return map[string]int64{}
	}
	return results
}

// TopDomains returns the highest-volume domains
func (a *Auditor) TopDomains(days, limit int) []store.DomainCount {
	results, err := a.store.TopDomains(days, limit)
	if err != nil {
		log.Printf("audit: top domains unavailable: %v", err)
		return nil
	}
	return results
}

// HourlyToday returns today's attempts bucketed by hour in the verifier's
// local timezone
func (a *Auditor) HourlyToday() []store.HourCount {
	results, err := a.store.HourlyDistribution(a.now())
	if err != nil {
		log.Printf("audit: hourly distribution unavailable: %v", err)
		return nil
	}
	return results
}

// SuspiciousActivity lists IPs with at least minAttempts failures in the
// last hours
func (a *Auditor) SuspiciousActivity(hours, minAttempts int) []store.IPActivity {
	since := a.now().UTC().Add(-time.Duration(hours) * time.Hour)
	results, err := a.store.SuspiciousIPs(since, minAttempts)
	if err != nil {
		log.Printf("audit: suspicious activity unavailable: %v", err)
		return nil
	}
	return results
}

// RecentAttempts returns the newest audit rows
func (a *Auditor) RecentAttempts(limit int) []models.LicenseVerificationLog {
	entries, err := a.store.RecentAttempts(limit)
	if err != nil {
		log.Printf("audit: recent attempts unavailable: %v", err)
		return nil
	}
	return entries
}

// CleanOldLogs removes audit rows older than the retention window
func (a *Auditor) CleanOldLogs(days int) int64 {
	deleted, err := a.store.PurgeOlderThan(a.now().UTC().AddDate(0, 0, -days))
	if err != nil {
		log.Printf("audit: log cleanup failed: %v", err)
		return 0
	}
	return deleted
}

func marshalPayload(payload map[string]interface{}) json.RawMessage {
	if len(payload) == 0 {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

func validSource(source string) string {
	switch source {
	case models.VerificationSourceInstall, models.VerificationSourceAPI, models.VerificationSourceAdmin:
		return source
	}
	return models.VerificationSourceInstall
}

func orUnknown(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
