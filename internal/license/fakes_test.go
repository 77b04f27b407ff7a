package license

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/licensegate/backend/internal/models"
	"github.com/licensegate/backend/internal/store"
)

// fakeLicenseStore is an in-memory LicenseStore. All methods are guarded by
// one mutex so the concurrency tests exercise the same atomicity contract
// the gorm implementation provides with row locks.
type fakeLicenseStore struct {
	mu       sync.Mutex
	nextID   uint
	licenses map[uint]*models.License
	domains  map[uint]*models.LicenseDomain

	failFind    error
	failDomains error
}

func newFakeLicenseStore() *fakeLicenseStore {
	return &fakeLicenseStore{
		nextID:   1,
		licenses: make(map[uint]*models.License),
		domains:  make(map[uint]*models.LicenseDomain),
	}
}

func (s *fakeLicenseStore) add(lic *models.License) *models.License {
	s.mu.Lock()
	defer s.mu.Unlock()
	lic.ID = s.nextID
	s.nextID++
	s.licenses[lic.ID] = lic
	return lic
}

func (s *fakeLicenseStore) addDomain(licenseID uint, d *models.LicenseDomain) *models.LicenseDomain {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.nextID
	s.nextID++
	d.LicenseID = licenseID
	s.domains[d.ID] = d
	return d
}

func (s *fakeLicenseStore) FindByKey(key string) (*models.License, error) {
	if s.failFind != nil {
		return nil, s.failFind
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lic := range s.licenses {
		if lic.LicenseKey == key || lic.PurchaseCode == key {
			copied := *lic
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeLicenseStore) FindByPurchaseCode(code string) (*models.License, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lic := range s.licenses {
		if lic.PurchaseCode == code {
			copied := *lic
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeLicenseStore) PurchaseCodeExists(code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lic := range s.licenses {
		if lic.PurchaseCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeLicenseStore) Create(lic *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lic.ID = s.nextID
	s.nextID++
	copied := *lic
	s.licenses[lic.ID] = &copied
	return nil
}

func (s *fakeLicenseStore) Save(lic *models.License) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *lic
	s.licenses[lic.ID] = &copied
	return nil
}

func (s *fakeLicenseStore) UpdateStatus(licenseID uint, status models.LicenseStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[licenseID]
	if !ok {
		return store.ErrNotFound
	}
	lic.Status = status
	return nil
}

func (s *fakeLicenseStore) CountActiveDomains(licenseID uint) (int, error) {
	if s.failDomains != nil {
		return 0, s.failDomains
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActiveLocked(licenseID), nil
}

func (s *fakeLicenseStore) countActiveLocked(licenseID uint) int {
	count := 0
	for _, d := range s.domains {
		if d.LicenseID == licenseID && d.Status == models.DomainStatusActive {
			count++
		}
	}
	return count
}

func (s *fakeLicenseStore) ActiveDomains(licenseID uint) ([]models.LicenseDomain, error) {
	if s.failDomains != nil {
		return nil, s.failDomains
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LicenseDomain
	for _, d := range s.domains {
		if d.LicenseID == licenseID && d.Status == models.DomainStatusActive {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *fakeLicenseStore) FindDomain(licenseID uint, domain string) (*models.LicenseDomain, error) {
	if s.failDomains != nil {
		return nil, s.failDomains
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.domains {
		if d.LicenseID == licenseID && d.Domain == domain {
			copied := *d
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeLicenseStore) TouchDomain(domainID uint, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[domainID]
	if !ok {
		return store.ErrNotFound
	}
	d.LastUsedAt = &usedAt
	return nil
}

func (s *fakeLicenseStore) LastDomainAddedAt(licenseID uint) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *time.Time
	for _, d := range s.domains {
		if d.LicenseID != licenseID {
			continue
		}
		added := d.AddedAt
		if latest == nil || added.After(*latest) {
			latest = &added
		}
	}
	return latest, nil
}

func (s *fakeLicenseStore) InsertDomainAtomic(licenseID uint, domain *models.LicenseDomain, maxDomains int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countActiveLocked(licenseID) >= maxDomains {
		return store.ErrDomainLimitReached
	}
	domain.ID = s.nextID
	s.nextID++
	domain.LicenseID = licenseID
	copied := *domain
	s.domains[domain.ID] = &copied
	return nil
}

// fakeAuditStore records inserted rows for assertions
type fakeAuditStore struct {
	mu       sync.Mutex
	entries  []models.LicenseVerificationLog
	activity []models.LicenseLog
	failures map[string]int64
}

func newFakeAuditStore() *fakeAuditStore {
	return &fakeAuditStore{failures: make(map[string]int64)}
}

func (s *fakeAuditStore) InsertVerificationLog(entry *models.LicenseVerificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *fakeAuditStore) InsertLicenseLog(entry *models.LicenseLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, *entry)
	return nil
}

func (s *fakeAuditStore) CountFailuresSince(ip string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[ip], nil
}

func (s *fakeAuditStore) RecentAttempts(limit int) ([]models.LicenseVerificationLog, error) {
	return nil, nil
}

func (s *fakeAuditStore) Stats(days int) (store.VerificationStats, error) {
	return store.VerificationStats{}, nil
}

func (s *fakeAuditStore) CallsByDate(days int) ([]store.DateCount, error) { return nil, nil }

func (s *fakeAuditStore) StatusDistribution(days int) (map[string]int64, error) { return nil, nil }

func (s *fakeAuditStore) TopDomains(days, limit int) ([]store.DomainCount, error) { return nil, nil }

func (s *fakeAuditStore) HourlyDistribution(day time.Time) ([]store.HourCount, error) {
	return nil, nil
}

func (s *fakeAuditStore) SuspiciousIPs(since time.Time, minAttempts int) ([]store.IPActivity, error) {
	return nil, nil
}

func (s *fakeAuditStore) PurgeOlderThan(cutoff time.Time) (int64, error) { return 0, nil }

func (s *fakeAuditStore) lastEntry() *models.LicenseVerificationLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return nil
	}
	entry := s.entries[len(s.entries)-1]
	return &entry
}

func (s *fakeAuditStore) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// memSettings is an in-memory SettingStore
type memSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemSettings(values map[string]string) *memSettings {
	if values == nil {
		values = make(map[string]string)
	}
	return &memSettings{values: values}
}

func (m *memSettings) Value(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", store.ErrNotFound
	}
	return v, nil
}

func (m *memSettings) Values(keys []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *memSettings) Upsert(key, value, valueType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memSettings) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memSettings) All() ([]models.Setting, error) { return nil, nil }

// memCache is an in-memory Cache
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
