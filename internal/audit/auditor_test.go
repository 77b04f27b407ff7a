package audit

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licensegate/backend/internal/models"
	"github.com/licensegate/backend/internal/store"
)

var testTime = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type recordingStore struct {
	mu       sync.Mutex
	entries  []models.LicenseVerificationLog
	activity []models.LicenseLog

	failInsert error
	failCounts error
	failures   int64
	purged     int64
}

func (s *recordingStore) InsertVerificationLog(entry *models.LicenseVerificationLog) error {
	if s.failInsert != nil {
		return s.failInsert
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *recordingStore) InsertLicenseLog(entry *models.LicenseLog) error {
	if s.failInsert != nil {
		return s.failInsert
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, *entry)
	return nil
}

func (s *recordingStore) CountFailuresSince(ip string, since time.Time) (int64, error) {
	if s.failCounts != nil {
		return 0, s.failCounts
	}
	return s.failures, nil
}

func (s *recordingStore) RecentAttempts(limit int) ([]models.LicenseVerificationLog, error) {
	if s.failCounts != nil {
		return nil, s.failCounts
	}
	return s.entries, nil
}

func (s *recordingStore) Stats(days int) (store.VerificationStats, error) {
	if s.failCounts != nil {
		return store.VerificationStats{}, s.failCounts
	}
	return store.VerificationStats{TotalAttempts: 42}, nil
}

func (s *recordingStore) CallsByDate(days int) ([]store.DateCount, error) { return nil, nil }

func (s *recordingStore) StatusDistribution(days int) (map[string]int64, error) { return nil, nil }

func (s *recordingStore) TopDomains(days, limit int) ([]store.DomainCount, error) { return nil, nil }

func (s *recordingStore) HourlyDistribution(day time.Time) ([]store.HourCount, error) {
	return nil, nil
}

func (s *recordingStore) SuspiciousIPs(since time.Time, minAttempts int) ([]store.IPActivity, error) {
	return nil, nil
}

func (s *recordingStore) PurgeOlderThan(cutoff time.Time) (int64, error) {
	if s.failCounts != nil {
		return 0, s.failCounts
	}
	return s.purged, nil
}

func newTestAuditor() (*Auditor, *recordingStore) {
	st := &recordingStore{}
	return NewAuditorWithClock(st, func() time.Time { return testTime }), st
}

func TestHashPurchaseCodeIsStableHex(t *testing.T) {
	first := HashPurchaseCode("ABCD-EFGH-IJKL-MNOP")
	second := HashPurchaseCode("ABCD-EFGH-IJKL-MNOP")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.NotEqual(t, first, HashPurchaseCode("ABCD-EFGH-IJKL-MNOQ"))
}

func TestMaskHash(t *testing.T) {
	assert.Equal(t, "abcd****mnop", MaskHash("abcdefghijklmnop"))
	assert.Equal(t, "****", MaskHash("abcdefgh"))
	assert.Equal(t, "****", MaskHash(""))
}

func TestRecordSuccessfulAttempt(t *testing.T) {
	a, st := newTestAuditor()

	entry := a.Record(Attempt{
		PurchaseCode: "ABCD-EFGH-IJKL-MNOP",
		Domain:       "example.com",
		IPAddress:    "203.0.113.10",
		UserAgent:    "agent",
		Valid:        true,
		Message:      "License verified successfully",
		Source:       "api",
	})

	require.Len(t, st.entries, 1)
	assert.Equal(t, models.VerificationStatusSuccess, entry.Status)
	assert.True(t, entry.IsValid)
	assert.Equal(t, HashPurchaseCode("ABCD-EFGH-IJKL-MNOP"), entry.PurchaseCodeHash)
	assert.NotEmpty(t, entry.RequestID)
	require.NotNil(t, entry.VerifiedAt)
	assert.Equal(t, testTime, *entry.VerifiedAt)
}

func TestRecordFailedAttempt(t *testing.T) {
	a, st := newTestAuditor()

	entry := a.Record(Attempt{
		PurchaseCode: "ABCD-EFGH-IJKL-MNOP",
		Domain:       "example.com",
		Valid:        false,
		Message:      "License not found",
	})

	require.Len(t, st.entries, 1)
	assert.Equal(t, models.VerificationStatusFailed, entry.Status)
	assert.Nil(t, entry.VerifiedAt)
}

func TestRecordStorageFaultBecomesErrorStatus(t *testing.T) {
	a, _ := newTestAuditor()

	entry := a.Record(Attempt{
		PurchaseCode: "ABCD-EFGH-IJKL-MNOP",
		Domain:       "example.com",
		Valid:        false,
		ErrorDetails: "verification storage unavailable",
	})

	assert.Equal(t, models.VerificationStatusError, entry.Status)
}

func TestRecordIsBestEffort(t *testing.T) {
	a, st := newTestAuditor()
	st.failInsert = errors.New("disk full")

	entry := a.Record(Attempt{
		PurchaseCode: "ABCD-EFGH-IJKL-MNOP",
		Domain:       "example.com",
		Valid:        true,
	})

	// the insert failed but the caller still gets the entry back
	require.NotNil(t, entry)
	assert.True(t, entry.IsValid)
}

func TestRecordWithLicenseIDWritesActivityRow(t *testing.T) {
	a, st := newTestAuditor()
	licenseID := uint(7)

	a.Record(Attempt{
		PurchaseCode: "ABCD-EFGH-IJKL-MNOP",
		Domain:       "example.com",
		Valid:        true,
		LicenseID:    &licenseID,
		RequestData:  map[string]interface{}{"action": "verify"},
	})

	require.Len(t, st.activity, 1)
	assert.Equal(t, uint(7), st.activity[0].LicenseID)
	assert.Equal(t, "verify", st.activity[0].Action())
}

func TestRecordFillsUnknownFields(t *testing.T) {
	a, st := newTestAuditor()

	a.Record(Attempt{PurchaseCode: "X", Domain: "example.com"})

	require.Len(t, st.entries, 1)
	assert.Equal(t, "unknown", st.entries[0].IPAddress)
	assert.Equal(t, "unknown", st.entries[0].UserAgent)
}

func TestRecentFailuresFailsOpen(t *testing.T) {
	a, st := newTestAuditor()
	st.failures = 3

	assert.Equal(t, int64(3), a.RecentFailures("203.0.113.10", 15*time.Minute))

	st.failCounts = errors.New("timeout")
	assert.Zero(t, a.RecentFailures("203.0.113.10", 15*time.Minute))
}

func TestStatsDegradeToZeroValue(t *testing.T) {
	a, st := newTestAuditor()

	assert.Equal(t, int64(42), a.Stats(30).TotalAttempts)

	st.failCounts = errors.New("timeout")
	assert.Zero(t, a.Stats(30).TotalAttempts)
}

func TestCleanOldLogs(t *testing.T) {
	a, st := newTestAuditor()
	st.purged = 12

	assert.Equal(t, int64(12), a.CleanOldLogs(90))

	st.failCounts = errors.New("timeout")
	assert.Zero(t, a.CleanOldLogs(90))
}
