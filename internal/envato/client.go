package envato

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/licensegate/backend/internal/policy"
	"github.com/licensegate/backend/internal/store"
)

const (
	cacheKeyConfigured = "licensegate:envato:configured"
	cacheTTLConfigured = time.Minute
)

var (
	// ErrNotConfigured means the marketplace credentials are absent or
	// incomplete; the caller decides whether to degrade or fail.
	ErrNotConfigured = errors.New("envato api not configured")
	// ErrUnavailable covers transport failures, timeouts and 5xx responses
	ErrUnavailable = errors.New("envato api unavailable")
	// ErrPurchaseNotFound means the marketplace has no record of the code
	ErrPurchaseNotFound = errors.New("purchase code not found on envato")
)

// Settings holds the marketplace credentials read from the settings store.
// Values are HTML-escaped before being handed to callers that render them.
type Settings struct {
	PersonalToken string `json:"personal_token"`
	ClientID      string `json:"client_id"`
	ClientSecret  string `json:"client_secret"`
}

// Sale is the marketplace's record of a purchase
type Sale struct {
	AmountUSD      string     `json:"amount"`
	SoldAt         *time.Time `json:"sold_at"`
	License        string     `json:"license"`
	SupportedUntil *time.Time `json:"supported_until"`
	Buyer          string     `json:"buyer"`
	PurchaseCount  int        `json:"purchase_count"`
	Item           SaleItem   `json:"item"`
}

// SaleItem identifies the purchased product on the marketplace
type SaleItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Client is the fallback verification path against the Envato marketplace.
// All outbound calls carry a bounded timeout; a slow or unavailable
// marketplace surfaces as ErrUnavailable, never as a hang.
type Client struct {
	settings   store.SettingStore
	cache      store.Cache
	httpClient *http.Client
	baseURL    string
}

func NewClient(settings store.SettingStore, cache store.Cache, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.envato.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		settings:   settings,
		cache:      cache,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// IsConfigured reports whether all three marketplace credentials are present
// and non-empty. The result is cached briefly; InvalidateCache must be called
// whenever credentials change. Any lookup failure reads as "not configured".
func (c *Client) IsConfigured() bool {
	var cached bool
	if err := c.cache.Get(cacheKeyConfigured, &cached); err == nil {
		return cached
	}

	configured := c.fetchSettings() != nil
	if err := c.cache.Set(cacheKeyConfigured, configured, cacheTTLConfigured); err != nil {
		log.Printf("envato: cache write failed: %v", err)
	}
	return configured
}

// FetchSettings returns the validated, HTML-escaped credentials, or nil when
// the marketplace is not configured
func (c *Client) FetchSettings() *Settings {
	settings := c.fetchSettings()
	if settings == nil {
		return nil
	}
	return &Settings{
		PersonalToken: html.EscapeString(settings.PersonalToken),
		ClientID:      html.EscapeString(settings.ClientID),
		ClientSecret:  html.EscapeString(settings.ClientSecret),
	}
}

// ValidateSettingsShape checks presence and non-blankness of the three
// required credential keys
func ValidateSettingsShape(values map[string]string) bool {
	for _, key := range []string{
		policy.KeyEnvatoPersonalToken,
		policy.KeyEnvatoClientID,
		policy.KeyEnvatoClientSecret,
	} {
		if values[key] == "" {
			return false
		}
	}
	return true
}

// InvalidateCache drops the cached configuration state
func (c *Client) InvalidateCache() {
	if err := c.cache.Delete(cacheKeyConfigured); err != nil {
		log.Printf("envato: cache invalidation failed: %v", err)
	}
}

// VerifyPurchase looks up a purchase code via the author/sale endpoint.
// Returns ErrPurchaseNotFound for codes the marketplace does not know, and
// ErrUnavailable for anything that prevents a definitive answer.
func (c *Client) VerifyPurchase(code string) (*Sale, error) {
	settings := c.fetchSettings()
	if settings == nil {
		return nil, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/v3/market/author/sale?code=%s", c.baseURL, url.QueryEscape(code))
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+settings.PersonalToken)
	req.Header.Set("User-Agent", "licensegate-verification")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPurchaseNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		log.Printf("envato: credentials rejected (status %d)", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var sale Sale
	if err := json.Unmarshal(body, &sale); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrUnavailable, err)
	}
	return &sale, nil
}

// fetchSettings reads and validates raw credentials. Any error is caught,
// logged and treated as "not configured" rather than propagated.
func (c *Client) fetchSettings() *Settings {
	values, err := c.settings.Values([]string{
		policy.KeyEnvatoPersonalToken,
		policy.KeyEnvatoClientID,
		policy.KeyEnvatoClientSecret,
	})
	if err != nil {
		log.Printf("envato: configuration lookup failed: %v", err)
		return nil
	}
	if !ValidateSettingsShape(values) {
		return nil
	}
	return &Settings{
		PersonalToken: values[policy.KeyEnvatoPersonalToken],
		ClientID:      values[policy.KeyEnvatoClientID],
		ClientSecret:  values[policy.KeyEnvatoClientSecret],
	}
}
