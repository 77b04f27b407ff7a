package license

import (
	"fmt"
	"log"
	"time"

	"github.com/licensegate/backend/internal/audit"
	"github.com/licensegate/backend/internal/envato"
	"github.com/licensegate/backend/internal/models"
	"github.com/licensegate/backend/internal/policy"
	"github.com/licensegate/backend/internal/store"
)

// Reason identifies why a verification outcome was reached. Presentation
// layers key localization off these values, so they are part of the contract.
type Reason string

const (
	ReasonOK             Reason = "ok"
	ReasonGracePeriod    Reason = "grace_period"
	ReasonNotFound       Reason = "license_not_found"
	ReasonExpired        Reason = "license_expired"
	ReasonSuspended      Reason = "license_suspended"
	ReasonInactive       Reason = "license_inactive"
	ReasonDomainRejected Reason = "domain_rejected"
	ReasonDomainUnbound  Reason = "domain_not_registered"
	ReasonDomainLimit    Reason = "domain_limit_reached"
	ReasonCooldown       Reason = "cooldown_active"
	ReasonRateLimited    Reason = "too_many_attempts"
	ReasonReconciliation Reason = "reconciliation_failed"
	ReasonStorageError   Reason = "storage_error"
)

// Request is one inbound verification/registration call
type Request struct {
	LicenseKey string
	Domain     string
	IPAddress  string
	UserAgent  string
	Source     string
	// ViaProxy is set by the transport layer when the request arrived
	// through a forwarding chain; used by the VPN blocking policy.
	ViaProxy bool
}

// Outcome is the structured result returned to callers. Callers never see a
// raw error for an expected negative result.
type Outcome struct {
	Valid   bool   `json:"valid"`
	Reason  Reason `json:"reason"`
	Message string `json:"message"`

	Status        models.LicenseStatus `json:"status,omitempty"`
	LicenseType   models.LicenseType   `json:"license_type,omitempty"`
	DaysRemaining int                  `json:"days_remaining"`
	UsedDomains   int                  `json:"used_domains"`
	MaxDomains    int                  `json:"max_domains"`
	Domains       []string             `json:"domains,omitempty"`

	Domain         string `json:"domain,omitempty"`
	SlotUsed       bool   `json:"slot_used"`
	SlotsRemaining int    `json:"slots_remaining"`
	Grace          bool   `json:"grace_period"`
}

const verifyCachePrefix = "licensegate:verify:"

// Verifier runs the verification/registration state machine for one
// (license, domain) request. Every path, success or failure, writes exactly
// one audit row before returning.
type Verifier struct {
	store    store.LicenseStore
	registry *Registry
	policy   *policy.Resolver
	envato   *envato.Client
	auditor  *audit.Auditor
	cache    store.Cache
	now      func() time.Time
}

func NewVerifier(
	licenseStore store.LicenseStore,
	registry *Registry,
	resolver *policy.Resolver,
	envatoClient *envato.Client,
	auditor *audit.Auditor,
	cache store.Cache,
) *Verifier {
	return &Verifier{
		store:    licenseStore,
		registry: registry,
		policy:   resolver,
		envato:   envatoClient,
		auditor:  auditor,
		cache:    cache,
		now:      time.Now,
	}
}

// WithClock injects a time source for deterministic tests
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify evaluates a verification request. An unseen domain on a license
// with free slots is registered as a side effect.
func (v *Verifier) Verify(req Request) Outcome {
	return v.run(req, false)
}

// Register evaluates a registration request; same state machine as Verify,
// callers read the slot fields of the outcome.
func (v *Verifier) Register(req Request) Outcome {
	return v.run(req, false)
}

// Status evaluates the request read-only: no binding is created, no
// last-used timestamp updated, no cooldown consumed.
func (v *Verifier) Status(req Request) Outcome {
	return v.run(req, true)
}

func (v *Verifier) run(req Request, readOnly bool) Outcome {
	now := v.now().UTC()

	// Abuse lockout runs before any license lookup
	if v.policy.GetBool(policy.KeyDetectSuspicious, true) {
		window := v.policy.GetDuration(policy.KeyLockoutMinutes, 15, time.Minute)
		maxAttempts := v.policy.GetInt(policy.KeyMaxAttempts, 5)
		if failures := v.auditor.RecentFailures(req.IPAddress, window); failures >= int64(maxAttempts) {
			return v.finish(req, nil, Outcome{
				Valid:   false,
				Reason:  ReasonRateLimited,
				Message: "Too many failed attempts, try again later",
			})
		}
	}

	if v.policy.GetBool(policy.KeyBlockVPN, false) && req.ViaProxy {
		return v.finish(req, nil, Outcome{
			Valid:   false,
			Reason:  ReasonDomainRejected,
			Message: "Verification through proxies or VPNs is not permitted",
		})
	}

	// Resolve license
	lic, err := v.store.FindByKey(req.LicenseKey)
	if err != nil {
		if err == store.ErrNotFound {
			return v.finish(req, nil, Outcome{
				Valid:   false,
				Reason:  ReasonNotFound,
				Message: "License not found",
			})
		}
		return v.finish(req, nil, Outcome{
			Valid:   false,
			Reason:  ReasonStorageError,
			Message: "Verification is temporarily unavailable",
		})
	}

	switch lic.Status {
	case models.LicenseStatusSuspended:
		return v.finish(req, lic, v.withLicense(lic, now, Outcome{
			Valid:   false,
			Reason:  ReasonSuspended,
			Message: "License is suspended",
		}))
	case models.LicenseStatusInactive:
		return v.finish(req, lic, v.withLicense(lic, now, Outcome{
			Valid:   false,
			Reason:  ReasonInactive,
			Message: "License is not active",
		}))
	}

	// Temporal state. Stored status is a hint only: an active license past
	// its expiry is treated as expired here regardless of the column.
	grace := false
	if v.registry.IsExpired(lic, now) && lic.Status != models.LicenseStatusExpired {
		if !v.policy.GetBool(policy.KeyAllowExpiredVerification, false) {
			grace = v.inGracePeriod(lic, now)
			if !grace {
				if v.policy.GetBool(policy.KeyAutoSuspend, true) {
					if err := v.store.UpdateStatus(lic.ID, models.LicenseStatusExpired); err != nil {
						log.Printf("license: auto-suspend failed for license %d: %v", lic.ID, err)
					}
				}
				return v.finish(req, lic, v.withLicense(lic, now, Outcome{
					Valid:   false,
					Reason:  ReasonExpired,
					Message: "License has expired",
				}))
			}
		}
	} else if lic.Status == models.LicenseStatusExpired {
		return v.finish(req, lic, v.withLicense(lic, now, Outcome{
			Valid:   false,
			Reason:  ReasonExpired,
			Message: "License has expired",
		}))
	}

	// Domain shape policy
	domain := NormalizeDomain(req.Domain)
	if rejected, message := v.rejectDomain(req.Domain, domain); rejected {
		return v.finish(req, lic, v.withLicense(lic, now, Outcome{
			Valid:   false,
			Reason:  ReasonDomainRejected,
			Message: message,
			Domain:  domain,
		}))
	}

	// Cached verification results short-circuit repeat lookups. The binding
	// still gets its last_used_at refreshed on every successful verification.
	if out, ok := v.cachedOutcome(req.LicenseKey, domain); ok && !readOnly {
		if bound, err := v.store.FindDomain(lic.ID, domain); err == nil && bound.Status == models.DomainStatusActive {
			if err := v.store.TouchDomain(bound.ID, now); err != nil {
				log.Printf("license: failed to update last_used_at for domain %d: %v", bound.ID, err)
			}
		}
		out.Grace = out.Grace || grace
		return v.finish(req, lic, out)
	}

	// Existing binding?
	bound, err := v.store.FindDomain(lic.ID, domain)
	if err != nil && err != store.ErrNotFound {
		return v.finish(req, lic, v.withLicense(lic, now, Outcome{
			Valid:   false,
			Reason:  ReasonStorageError,
			Message: "Verification is temporarily unavailable",
			Domain:  domain,
		}))
	}

	if bound != nil {
		if bound.Status != models.DomainStatusActive {
			return v.finish(req, lic, v.withLicense(lic, now, Outcome{
				Valid:   false,
				Reason:  ReasonDomainRejected,
				Message: "Domain has been disabled for this license",
				Domain:  domain,
			}))
		}
		// Re-verifying an active binding never consumes a slot or
		// triggers cooldown.
		if !readOnly {
			if err := v.store.TouchDomain(bound.ID, now); err != nil {
				log.Printf("license: failed to update last_used_at for domain %d: %v", bound.ID, err)
			}
		}
		out := v.success(lic, now, domain, false, grace)
		v.cacheOutcome(req.LicenseKey, domain, out)
		return v.finish(req, lic, out)
	}

	// Wildcard and parent-domain coverage by already-bound domains
	if matched := v.matchBoundDomain(lic, domain); matched != nil {
		if !readOnly {
			if err := v.store.TouchDomain(matched.ID, now); err != nil {
				log.Printf("license: failed to update last_used_at for domain %d: %v", matched.ID, err)
			}
		}
		out := v.success(lic, now, domain, false, grace)
		return v.finish(req, lic, out)
	}

	// Unseen domain: this is a registration
	if readOnly {
		return v.finish(req, lic, v.withLicense(lic, now, Outcome{
			Valid:   false,
			Reason:  ReasonDomainUnbound,
			Message: "Domain is not registered for this license",
			Domain:  domain,
		}))
	}
	if grace {
		// Grace keeps existing installs alive; it does not open new slots.
		return v.finish(req, lic, v.withLicense(lic, now, Outcome{
			Valid:   false,
			Reason:  ReasonExpired,
			Message: "License has expired, new domains cannot be registered",
			Domain:  domain,
		}))
	}

	return v.finish(req, lic, v.register(req, lic, now, domain))
}

// register runs the quota/cooldown/reconciliation sequence for an unseen
// domain and inserts the binding atomically.
func (v *Verifier) register(req Request, lic *models.License, now time.Time, domain string) Outcome {
	reached, err := v.registry.HasReachedDomainLimit(lic)
	if err != nil {
		return v.withLicense(lic, now, Outcome{
			Valid:   false,
			Reason:  ReasonStorageError,
			Message: "Verification is temporarily unavailable",
			Domain:  domain,
		})
	}
	if reached {
		return v.withLicense(lic, now, Outcome{
			Valid:   false,
			Reason:  ReasonDomainLimit,
			Message: fmt.Sprintf("License has reached its domain limit (%d)", v.registry.MaxDomains(lic)),
			Domain:  domain,
		})
	}

	cooldown := v.policy.GetDuration(policy.KeyDomainCooldown, 24, time.Hour)
	if cooldown > 0 {
		lastAdded, err := v.store.LastDomainAddedAt(lic.ID)
		if err != nil {
			log.Printf("license: cooldown lookup failed for license %d: %v", lic.ID, err)
		} else if lastAdded != nil && now.Sub(*lastAdded) < cooldown {
			return v.withLicense(lic, now, Outcome{
				Valid:   false,
				Reason:  ReasonCooldown,
				Message: "A domain was added too recently, try again later",
				Domain:  domain,
			})
		}
	}

	verified := true
	if v.policy.GetBool(policy.KeyVerifyEnvato, true) {
		confirmed, out := v.reconcile(req.LicenseKey, lic, now, domain)
		if out != nil {
			return *out
		}
		verified = confirmed
	}

	binding := &models.LicenseDomain{
		Domain:     domain,
		Status:     models.DomainStatusActive,
		IsVerified: verified,
		AddedAt:    now,
		LastUsedAt: &now,
	}
	if verified {
		binding.VerifiedAt = &now
	}

	if err := v.store.InsertDomainAtomic(lic.ID, binding, v.registry.MaxDomains(lic)); err != nil {
		if err == store.ErrDomainLimitReached {
			return v.withLicense(lic, now, Outcome{
				Valid:   false,
				Reason:  ReasonDomainLimit,
				Message: fmt.Sprintf("License has reached its domain limit (%d)", v.registry.MaxDomains(lic)),
				Domain:  domain,
			})
		}
		return v.withLicense(lic, now, Outcome{
			Valid:   false,
			Reason:  ReasonStorageError,
			Message: "Verification is temporarily unavailable",
			Domain:  domain,
		})
	}

	out := v.success(lic, now, domain, true, false)
	v.cacheOutcome(req.LicenseKey, domain, out)
	return out
}

// reconcile cross-checks the purchase against the marketplace. Returns the
// confirmation flag, or a terminal outcome when policy says the failure is
// authoritative.
func (v *Verifier) reconcile(purchaseCode string, lic *models.License, now time.Time, domain string) (bool, *Outcome) {
	fallbackInternal := v.policy.GetBool(policy.KeyFallbackInternal, true)
	allowOffline := v.policy.GetBool(policy.KeyAllowOffline, false)

	_, err := v.envato.VerifyPurchase(purchaseCode)
	if err == nil {
		return true, nil
	}

	if err == envato.ErrPurchaseNotFound {
		if fallbackInternal {
			// Internal record is authoritative; the binding stays
			// unverified until the marketplace confirms it.
			return false, nil
		}
		out := v.withLicense(lic, now, Outcome{
			Valid:   false,
			Reason:  ReasonReconciliation,
			Message: "Purchase code could not be confirmed with the marketplace",
			Domain:  domain,
		})
		return false, &out
	}

	// Unreachable or misconfigured marketplace
	log.Printf("license: marketplace reconciliation unavailable: %v", err)
	if allowOffline || fallbackInternal {
		return false, nil
	}
	out := v.withLicense(lic, now, Outcome{
		Valid:   false,
		Reason:  ReasonReconciliation,
		Message: "Marketplace verification is unavailable",
		Domain:  domain,
	})
	return false, &out
}

// inGracePeriod reports whether an expired license is still within the
// offline grace window.
func (v *Verifier) inGracePeriod(lic *models.License, now time.Time) bool {
	if !v.policy.GetBool(policy.KeyAllowOffline, false) {
		return false
	}
	graceDays := v.policy.GetInt(policy.KeyGracePeriod, 7)
	if graceDays <= 0 || lic.LicenseExpiresAt == nil {
		return false
	}
	return now.Before(lic.LicenseExpiresAt.AddDate(0, 0, graceDays))
}

// rejectDomain applies the domain shape policy. The raw value is inspected
// for scheme enforcement, the normalized one for everything else.
func (v *Verifier) rejectDomain(raw, domain string) (bool, string) {
	if domain == "" {
		return true, "Domain is required"
	}
	if v.policy.GetBool(policy.KeyRequireHTTPS, true) && HasHTTPScheme(raw) && !IsLocalhost(domain) {
		return true, "Domains must be served over HTTPS"
	}
	if IsLocalhost(domain) {
		if !v.policy.GetBool(policy.KeyAllowLocalhost, true) {
			return true, "Localhost domains are not permitted"
		}
		return false, ""
	}
	if IsIPLiteral(domain) && !v.policy.GetBool(policy.KeyAllowIPAddresses, false) {
		return true, "IP addresses are not permitted"
	}
	if IsWildcard(domain) && !v.policy.GetBool(policy.KeyAllowWildcards, true) {
		return true, "Wildcard domains are not permitted"
	}
	return false, ""
}

// matchBoundDomain looks for an active binding that covers the requested
// domain: a wildcard pattern, or a parent domain when subdomain
// auto-approval is enabled.
func (v *Verifier) matchBoundDomain(lic *models.License, domain string) *models.LicenseDomain {
	bound, err := v.store.ActiveDomains(lic.ID)
	if err != nil {
		log.Printf("license: active domain lookup failed for license %d: %v", lic.ID, err)
		return nil
	}
	autoApprove := v.policy.GetBool(policy.KeyAutoApproveSubdomains, false)
	for i := range bound {
		if WildcardMatches(bound[i].Domain, domain) {
			return &bound[i]
		}
		if autoApprove && IsSubdomainOf(domain, bound[i].Domain) {
			return &bound[i]
		}
	}
	return nil
}

// withLicense fills the license summary fields on a terminal outcome
func (v *Verifier) withLicense(lic *models.License, now time.Time, out Outcome) Outcome {
	out.Status = lic.Status
	out.LicenseType = lic.LicenseType
	out.DaysRemaining = v.registry.DaysRemaining(lic, now)
	out.MaxDomains = v.registry.MaxDomains(lic)
	if used, err := v.store.CountActiveDomains(lic.ID); err == nil {
		out.UsedDomains = used
		out.SlotsRemaining = out.MaxDomains - used
		if out.SlotsRemaining < 0 {
			out.SlotsRemaining = 0
		}
	}
	return out
}

// success assembles a positive outcome with the current binding summary
func (v *Verifier) success(lic *models.License, now time.Time, domain string, slotUsed, grace bool) Outcome {
	out := Outcome{
		Valid:    true,
		Reason:   ReasonOK,
		Message:  "License verified successfully",
		Domain:   domain,
		SlotUsed: slotUsed,
		Grace:    grace,
	}
	if grace {
		out.Reason = ReasonGracePeriod
		out.Message = "License verified within the grace period"
	}
	out = v.withLicense(lic, now, out)

	if bound, err := v.store.ActiveDomains(lic.ID); err == nil {
		domains := make([]string, 0, len(bound))
		for _, b := range bound {
			domains = append(domains, b.Domain)
		}
		out.Domains = domains
	}
	return out
}

// finish writes the audit trail for the final outcome and returns it.
// Every code path of run funnels through here exactly once.
func (v *Verifier) finish(req Request, lic *models.License, out Outcome) Outcome {
	attempt := audit.Attempt{
		PurchaseCode: req.LicenseKey,
		Domain:       out.Domain,
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
		Valid:        out.Valid,
		Message:      out.Message,
		Source:       req.Source,
		ResponseData: map[string]interface{}{
			"reason":          string(out.Reason),
			"message":         out.Message,
			"slot_used":       out.SlotUsed,
			"slots_remaining": out.SlotsRemaining,
			"grace_period":    out.Grace,
		},
	}
	if attempt.Domain == "" {
		attempt.Domain = NormalizeDomain(req.Domain)
	}
	if out.Reason == ReasonStorageError {
		attempt.ErrorDetails = "verification storage unavailable"
	}
	if lic != nil {
		attempt.LicenseID = &lic.ID
		attempt.RequestData = map[string]interface{}{
			"action": "verify",
			"domain": attempt.Domain,
			"source": req.Source,
		}
	}
	v.auditor.Record(attempt)
	return out
}

// cachedOutcome returns a previously cached successful outcome
func (v *Verifier) cachedOutcome(licenseKey, domain string) (Outcome, bool) {
	if !v.policy.GetBool(policy.KeyCacheVerification, true) {
		return Outcome{}, false
	}
	var out Outcome
	if err := v.cache.Get(v.verifyCacheKey(licenseKey, domain), &out); err != nil {
		return Outcome{}, false
	}
	return out, true
}

// cacheOutcome stores a successful outcome for the configured duration
func (v *Verifier) cacheOutcome(licenseKey, domain string, out Outcome) {
	if !out.Valid || !v.policy.GetBool(policy.KeyCacheVerification, true) {
		return
	}
	ttl := v.policy.GetDuration(policy.KeyCacheDuration, 60, time.Minute)
	if ttl <= 0 {
		return
	}
	if err := v.cache.Set(v.verifyCacheKey(licenseKey, domain), out, ttl); err != nil {
		log.Printf("license: verification cache write failed: %v", err)
	}
}

func (v *Verifier) verifyCacheKey(licenseKey, domain string) string {
	return verifyCachePrefix + audit.HashPurchaseCode(licenseKey+"|"+domain)
}
