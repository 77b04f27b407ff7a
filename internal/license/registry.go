package license

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/licensegate/backend/internal/models"
	"github.com/licensegate/backend/internal/policy"
	"github.com/licensegate/backend/internal/store"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 16
	// Collision probability per roll is tiny but non-zero; the cap turns a
	// broken uniqueness check into an error instead of a spin.
	maxCodeAttempts = 20
)

// defaultMaxDomains maps license types to their default domain quota
var defaultMaxDomains = map[models.LicenseType]int{
	models.LicenseTypeSingle:    1,
	models.LicenseTypeMulti:     5,
	models.LicenseTypeDeveloper: 10,
	models.LicenseTypeExtended:  3,
}

// Registry owns license identity: purchase code generation, creation,
// renewal and the derived temporal attributes.
type Registry struct {
	store  store.LicenseStore
	policy *policy.Resolver
	now    func() time.Time
}

func NewRegistry(licenseStore store.LicenseStore, resolver *policy.Resolver) *Registry {
	return &Registry{store: licenseStore, policy: resolver, now: time.Now}
}

// NewRegistryWithClock injects a time source for deterministic tests
func NewRegistryWithClock(licenseStore store.LicenseStore, resolver *policy.Resolver, now func() time.Time) *Registry {
	return &Registry{store: licenseStore, policy: resolver, now: now}
}

// GeneratePurchaseCode produces a unique XXXX-XXXX-XXXX-XXXX code, re-rolling
// on collision against persisted licenses.
func (r *Registry) GeneratePurchaseCode() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate purchase code: %w", err)
		}
		exists, err := r.store.PurchaseCodeExists(code)
		if err != nil {
			return "", fmt.Errorf("failed to check purchase code uniqueness: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique purchase code after %d attempts", maxCodeAttempts)
}

func randomCode() (string, error) {
	raw := make([]byte, codeLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	code := make([]byte, 0, codeLength+3)
	for i, b := range raw {
		if i > 0 && i%4 == 0 {
			code = append(code, '-')
		}
		code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return string(code), nil
}

// CreateLicenseInput carries the caller-supplied license attributes.
// Zero-valued fields fall back to type and policy defaults.
type CreateLicenseInput struct {
	ProductID        *uint
	UserID           *uint
	PurchaseCode     string
	LicenseType      models.LicenseType
	MaxDomains       int
	LicenseExpiresAt *time.Time
	SupportExpiresAt *time.Time
	Notes            string
}

// CreateLicense creates a license. A missing purchase code is generated; the
// license key always mirrors the purchase code afterwards, including for
// codes supplied by a marketplace import.
func (r *Registry) CreateLicense(input CreateLicenseInput) (*models.License, error) {
	licenseType := input.LicenseType
	if licenseType == "" {
		licenseType = models.LicenseTypeSingle
	}

	code := input.PurchaseCode
	if code == "" {
		generated, err := r.GeneratePurchaseCode()
		if err != nil {
			return nil, err
		}
		code = generated
	}

	maxDomains := input.MaxDomains
	if maxDomains < 1 {
		maxDomains = defaultMaxDomains[licenseType]
		if maxDomains < 1 {
			maxDomains = r.policy.GetInt(policy.KeyMaxDomains, 1)
		}
	}

	now := r.now().UTC()

	licenseExpiresAt := input.LicenseExpiresAt
	if licenseExpiresAt == nil && licenseType == models.LicenseTypeExtended {
		expiry := now.AddDate(0, 0, r.policy.GetInt(policy.KeyDefaultDuration, 365))
		licenseExpiresAt = &expiry
	}

	supportExpiresAt := input.SupportExpiresAt
	if supportExpiresAt == nil {
		support := now.AddDate(0, 0, r.policy.GetInt(policy.KeySupportDuration, 365))
		supportExpiresAt = &support
	}

	license := &models.License{
		ProductID:        input.ProductID,
		UserID:           input.UserID,
		PurchaseCode:     code,
		LicenseKey:       code,
		LicenseType:      licenseType,
		Status:           models.LicenseStatusActive,
		MaxDomains:       maxDomains,
		LicenseExpiresAt: licenseExpiresAt,
		SupportExpiresAt: supportExpiresAt,
		Notes:            input.Notes,
	}

	if err := r.store.Create(license); err != nil {
		return nil, fmt.Errorf("failed to create license: %w", err)
	}
	return license, nil
}

// IsExpired reports whether the license expiry is strictly in the past.
// A nil expiry means a lifetime license and is never expired.
func (r *Registry) IsExpired(license *models.License, now time.Time) bool {
	return license.LicenseExpiresAt != nil && license.LicenseExpiresAt.Before(now)
}

// IsSupportActive reports whether the support window extends past now
func (r *Registry) IsSupportActive(license *models.License, now time.Time) bool {
	return license.SupportExpiresAt != nil && license.SupportExpiresAt.After(now)
}

// DaysRemaining returns whole days until license expiry, zero for lifetime
// licenses and for licenses already expired.
func (r *Registry) DaysRemaining(license *models.License, now time.Time) int {
	if license.LicenseExpiresAt == nil {
		return 0
	}
	remaining := license.LicenseExpiresAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Hours() / 24)
}

// MaxDomains returns the effective quota; an unset value defaults to one
func (r *Registry) MaxDomains(license *models.License) int {
	if license.MaxDomains < 1 {
		return 1
	}
	return license.MaxDomains
}

// RemainingDomainSlots returns how many more domains can be bound
func (r *Registry) RemainingDomainSlots(license *models.License) (int, error) {
	active, err := r.store.CountActiveDomains(license.ID)
	if err != nil {
		return 0, err
	}
	remaining := r.MaxDomains(license) - active
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// HasReachedDomainLimit reports whether the active domain count has consumed
// the quota
func (r *Registry) HasReachedDomainLimit(license *models.License) (bool, error) {
	active, err := r.store.CountActiveDomains(license.ID)
	if err != nil {
		return false, err
	}
	return active >= r.MaxDomains(license), nil
}

// Renew extends the license and support windows by the given number of days,
// reactivating an expired license.
func (r *Registry) Renew(license *models.License, days int) error {
	now := r.now().UTC()

	if license.LicenseExpiresAt != nil {
		base := *license.LicenseExpiresAt
		if base.Before(now) {
			base = now
		}
		extended := base.AddDate(0, 0, days)
		license.LicenseExpiresAt = &extended
	}

	supportBase := now
	if license.SupportExpiresAt != nil && license.SupportExpiresAt.After(now) {
		supportBase = *license.SupportExpiresAt
	}
	support := supportBase.AddDate(0, 0, days)
	license.SupportExpiresAt = &support

	if license.Status == models.LicenseStatusExpired {
		license.Status = models.LicenseStatusActive
	}
	return r.store.Save(license)
}

// Suspend marks the license suspended; bindings are preserved but inert
func (r *Registry) Suspend(license *models.License) error {
	license.Status = models.LicenseStatusSuspended
	return r.store.Save(license)
}

// Reactivate returns a suspended or inactive license to active
func (r *Registry) Reactivate(license *models.License) error {
	license.Status = models.LicenseStatusActive
	return r.store.Save(license)
}
