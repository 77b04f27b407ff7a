package policy

// Policy key names. The names are part of the external contract: admin
// tooling writes these rows and the verifier reads them.
const (
	KeyAPIToken                 = "license_api_token"
	KeyMaxAttempts              = "license_max_attempts"
	KeyLockoutMinutes           = "license_lockout_minutes"
	KeyVerifyEnvato             = "license_verify_envato"
	KeyFallbackInternal         = "license_fallback_internal"
	KeyCacheVerification        = "license_cache_verification"
	KeyCacheDuration            = "license_cache_duration"
	KeyAllowOffline             = "license_allow_offline"
	KeyGracePeriod              = "license_grace_period"
	KeyAllowLocalhost           = "license_allow_localhost"
	KeyAllowIPAddresses         = "license_allow_ip_addresses"
	KeyAllowWildcards           = "license_allow_wildcards"
	KeyAutoApproveSubdomains    = "license_auto_approve_subdomains"
	KeyMaxDomains               = "license_max_domains"
	KeyDomainCooldown           = "license_domain_cooldown"
	KeyDefaultDuration          = "license_default_duration"
	KeySupportDuration          = "license_support_duration"
	KeyExpirationGrace          = "license_expiration_grace"
	KeyAutoSuspend              = "license_auto_suspend"
	KeyAllowExpiredVerification = "license_allow_expired_verification"
	KeyDetectSuspicious         = "license_detect_suspicious"
	KeyBlockVPN                 = "license_block_vpn"
	KeyRequireHTTPS             = "license_require_https"

	KeyEnvatoPersonalToken = "envato_personal_token"
	KeyEnvatoClientID      = "envato_client_id"
	KeyEnvatoClientSecret  = "envato_client_secret"
)

// Defaults are the static fallbacks used when a key has no persisted value
// and no caller-provided default applies. Values mirror the shipped
// configuration: attempts/lockout for abuse control, durations in days,
// cooldown in hours, cache duration in minutes.
var Defaults = map[string]string{
	KeyMaxAttempts:              "5",
	KeyLockoutMinutes:           "15",
	KeyVerifyEnvato:             "true",
	KeyFallbackInternal:         "true",
	KeyCacheVerification:        "true",
	KeyCacheDuration:            "60",
	KeyAllowOffline:             "false",
	KeyGracePeriod:              "7",
	KeyAllowLocalhost:           "true",
	KeyAllowIPAddresses:         "false",
	KeyAllowWildcards:           "true",
	KeyAutoApproveSubdomains:    "false",
	KeyMaxDomains:               "5",
	KeyDomainCooldown:           "24",
	KeyDefaultDuration:          "365",
	KeySupportDuration:          "365",
	KeyExpirationGrace:          "7",
	KeyAutoSuspend:              "true",
	KeyAllowExpiredVerification: "false",
	KeyDetectSuspicious:         "true",
	KeyBlockVPN:                 "false",
	KeyRequireHTTPS:             "true",
}
