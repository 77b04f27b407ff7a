package envato

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licensegate/backend/internal/models"
	"github.com/licensegate/backend/internal/policy"
	"github.com/licensegate/backend/internal/store"
)

type memSettings struct {
	values map[string]string
}

func (m *memSettings) Value(key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (m *memSettings) Values(keys []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memSettings) Upsert(key, value, valueType string) error {
	m.values[key] = value
	return nil
}

func (m *memSettings) Delete(key string) error {
	delete(m.values, key)
	return nil
}

func (m *memSettings) All() ([]models.Setting, error) { return nil, nil }

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memCache) Delete(keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *memCache) DeletePattern(pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	return nil
}

func configuredSettings() *memSettings {
	return &memSettings{values: map[string]string{
		policy.KeyEnvatoPersonalToken: "personal-token",
		policy.KeyEnvatoClientID:      "client-id",
		policy.KeyEnvatoClientSecret:  "client-secret",
	}}
}

func TestIsConfigured(t *testing.T) {
	c := NewClient(configuredSettings(), newMemCache(), "", time.Second)
	assert.True(t, c.IsConfigured())

	empty := NewClient(&memSettings{values: map[string]string{}}, newMemCache(), "", time.Second)
	assert.False(t, empty.IsConfigured())
}

func TestIsConfiguredCachesResult(t *testing.T) {
	settings := configuredSettings()
	c := NewClient(settings, newMemCache(), "", time.Second)

	require.True(t, c.IsConfigured())

	// credentials removed, cached answer still serves until invalidated
	settings.values = map[string]string{}
	assert.True(t, c.IsConfigured())

	c.InvalidateCache()
	assert.False(t, c.IsConfigured())
}

func TestValidateSettingsShape(t *testing.T) {
	assert.True(t, ValidateSettingsShape(map[string]string{
		policy.KeyEnvatoPersonalToken: "a",
		policy.KeyEnvatoClientID:      "b",
		policy.KeyEnvatoClientSecret:  "c",
	}))
	assert.False(t, ValidateSettingsShape(map[string]string{
		policy.KeyEnvatoPersonalToken: "a",
		policy.KeyEnvatoClientID:      "",
		policy.KeyEnvatoClientSecret:  "c",
	}))
	assert.False(t, ValidateSettingsShape(map[string]string{}))
}

func TestVerifyPurchaseSuccess(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("code")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"amount":          "59.00",
			"license":         "Regular License",
			"buyer":           "somebuyer",
			"purchase_count":  1,
			"supported_until": "2027-01-01T00:00:00+00:00",
		})
	}))
	defer server.Close()

	c := NewClient(configuredSettings(), newMemCache(), server.URL, time.Second)

	sale, err := c.VerifyPurchase("ABCD-EFGH-IJKL-MNOP")
	require.NoError(t, err)

	assert.Equal(t, "Bearer personal-token", gotAuth)
	assert.Equal(t, "/v3/market/author/sale", gotPath)
	assert.Equal(t, "ABCD-EFGH-IJKL-MNOP", gotQuery)
	assert.Equal(t, "Regular License", sale.License)
	assert.Equal(t, "somebuyer", sale.Buyer)
}

func TestVerifyPurchaseNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(configuredSettings(), newMemCache(), server.URL, time.Second)

	_, err := c.VerifyPurchase("UNKNOWN-CODE")
	assert.ErrorIs(t, err, ErrPurchaseNotFound)
}

func TestVerifyPurchaseRejectedCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewClient(configuredSettings(), newMemCache(), server.URL, time.Second)

	_, err := c.VerifyPurchase("ABCD")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestVerifyPurchaseServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(configuredSettings(), newMemCache(), server.URL, time.Second)

	_, err := c.VerifyPurchase("ABCD")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestVerifyPurchaseNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	c := NewClient(configuredSettings(), newMemCache(), server.URL, time.Second)

	_, err := c.VerifyPurchase("ABCD")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestVerifyPurchaseMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	c := NewClient(configuredSettings(), newMemCache(), server.URL, time.Second)

	_, err := c.VerifyPurchase("ABCD")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestVerifyPurchaseUnconfigured(t *testing.T) {
	c := NewClient(&memSettings{values: map[string]string{}}, newMemCache(), "", time.Second)

	_, err := c.VerifyPurchase("ABCD")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestFetchSettingsEscapesHTML(t *testing.T) {
	settings := configuredSettings()
	settings.values[policy.KeyEnvatoPersonalToken] = `tok<script>"x"</script>`

	c := NewClient(settings, newMemCache(), "", time.Second)

	fetched := c.FetchSettings()
	require.NotNil(t, fetched)
	assert.NotContains(t, fetched.PersonalToken, "<script>")
}
