package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/north-identity/reconvalidator/internal/directory"
	"github.com/north-identity/reconvalidator/internal/profile"
)

const (
	dashedID = "01234567-89ab-cdef-0123-456789abcdef"
	rawID    = "0123456789abcdef0123456789abcdef"
)

func boolPtr(b bool) *bool { return &b }

// matchingPair returns a record/profile pair that produces zero findings.
func matchingPair() (*directory.Record, *profile.Record) {
	rec := &directory.Record{
		ID:            dashedID,
		Username:      "ada@example.com",
		Email:         "ada@example.com",
		GivenName:     "Ada",
		Surname:       "Lovelace",
		AccountStatus: "active",
		ExternalID:    rawID,
	}
	prof := &profile.Record{
		ExternalID: rawID,
		Email:      "ada@example.com",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		IsActive:   boolPtr(true),
	}
	return rec, prof
}

func TestToDashed(t *testing.T) {
	assert.Equal(t, dashedID, ToDashed(rawID))
	assert.Equal(t, dashedID, ToDashed(dashedID), "already dashed is unchanged")
	assert.Equal(t, "short", ToDashed("short"), "wrong length is unchanged")
	assert.Equal(t, "zz34567890abcdef0123456789abcdef", ToDashed("zz34567890abcdef0123456789abcdef"), "non-hex is unchanged")
}

func TestStripDashes(t *testing.T) {
	assert.Equal(t, rawID, StripDashes(dashedID))
	assert.Equal(t, rawID, StripDashes(rawID))
}

func TestRawID_FallsBackToUndashedRecordID(t *testing.T) {
	rec := &directory.Record{ID: dashedID}
	assert.Equal(t, rawID, RawID(rec))

	rec.ExternalID = "stored-raw"
	assert.Equal(t, "stored-raw", RawID(rec))
}

func TestCompare_CleanMatch(t *testing.T) {
	rec, prof := matchingPair()
	assert.Empty(t, Compare(rec, prof))
}

func TestCompare_MissingExternalID(t *testing.T) {
	rec, prof := matchingPair()
	rec.ExternalID = ""

	findings := Compare(rec, prof)
	require.Len(t, findings, 1, "remaining checks still pass via the derived id")
	assert.Equal(t, KindMissingExternalID, findings[0].Kind)
}

func TestCompare_NilProfileStops(t *testing.T) {
	rec, _ := matchingPair()
	rec.ExternalID = ""

	findings := Compare(rec, nil)
	require.Len(t, findings, 2)
	assert.Equal(t, KindMissingExternalID, findings[0].Kind)
	assert.Equal(t, KindProfileError, findings[1].Kind)
}

func TestCompare_OrphanedRecordStops(t *testing.T) {
	rec, _ := matchingPair()
	prof := &profile.Record{ErrorCode: 1, ErrorMessage: "not found"}

	findings := Compare(rec, prof)
	require.Len(t, findings, 1, "no field checks after a not-found profile")
	assert.Equal(t, KindOrphanedRecord, findings[0].Kind)
	assert.Contains(t, findings[0].TargetValue, "not found")
}

func TestCompare_UUIDMismatch(t *testing.T) {
	rec, prof := matchingPair()
	prof.ExternalID = "ffffffffffffffffffffffffffffffff"
	rec.ExternalID = prof.ExternalID

	findings := Compare(rec, prof)
	require.Len(t, findings, 1)
	assert.Equal(t, KindUUIDMismatch, findings[0].Kind)
	assert.Equal(t, "ffffffff-ffff-ffff-ffff-ffffffffffff", findings[0].TargetValue)
}

func TestCompare_UUIDComparisonIsCaseInsensitive(t *testing.T) {
	rec, prof := matchingPair()
	prof.ExternalID = "0123456789ABCDEF0123456789ABCDEF"
	rec.ExternalID = prof.ExternalID

	assert.Empty(t, Compare(rec, prof))
}

func TestCompare_RawIDMismatch(t *testing.T) {
	rec, prof := matchingPair()
	rec.ExternalID = "somethingelse"

	findings := Compare(rec, prof)
	require.Len(t, findings, 1)
	assert.Equal(t, KindRawIDMismatch, findings[0].Kind)
}

func TestCompare_EmailMatchesEitherField(t *testing.T) {
	rec, prof := matchingPair()
	rec.Username = "login-name"
	rec.Email = "ADA@example.com"

	assert.Empty(t, Compare(rec, prof), "profile email matching the mail field suffices")

	rec.Email = "other@example.com"
	findings := Compare(rec, prof)
	require.Len(t, findings, 1)
	assert.Equal(t, KindEmailMismatch, findings[0].Kind)
}

func TestCompare_EmailSkippedWhenEitherSideEmpty(t *testing.T) {
	rec, prof := matchingPair()
	prof.Email = ""
	assert.Empty(t, Compare(rec, prof))
}

func TestCompare_StatusMismatch(t *testing.T) {
	rec, prof := matchingPair()
	prof.IsActive = boolPtr(false)

	findings := Compare(rec, prof)
	require.Len(t, findings, 1)
	assert.Equal(t, KindStatusMismatch, findings[0].Kind)
	assert.Equal(t, "inactive", findings[0].TargetValue)
}

func TestCompare_StatusSkippedWhenUndefined(t *testing.T) {
	rec, prof := matchingPair()
	prof.IsActive = nil
	assert.Empty(t, Compare(rec, prof))

	prof.IsActive = boolPtr(false)
	rec.AccountStatus = ""
	assert.Empty(t, Compare(rec, prof))
}

func TestCompare_NameMismatch(t *testing.T) {
	rec, prof := matchingPair()
	rec.GivenName = "Augusta"

	findings := Compare(rec, prof)
	require.Len(t, findings, 1)
	assert.Equal(t, KindNameMismatch, findings[0].Kind)
	assert.Equal(t, "Augusta Lovelace", findings[0].SourceValue)
	assert.Equal(t, "Ada Lovelace", findings[0].TargetValue)
}

func TestCompare_NameSentinelNeverMismatches(t *testing.T) {
	rec, prof := matchingPair()
	rec.GivenName = "unknown"
	assert.Empty(t, Compare(rec, prof))
}

func TestCompare_AccumulatesIndependentFindingsInOrder(t *testing.T) {
	rec, prof := matchingPair()
	prof.Email = "someone-else@example.com"
	prof.IsActive = boolPtr(false)
	prof.FirstName = "Grace"

	findings := Compare(rec, prof)
	require.Len(t, findings, 3)
	assert.Equal(t, KindEmailMismatch, findings[0].Kind)
	assert.Equal(t, KindStatusMismatch, findings[1].Kind)
	assert.Equal(t, KindNameMismatch, findings[2].Kind)
}

func TestCompare_Idempotent(t *testing.T) {
	rec, prof := matchingPair()
	rec.ExternalID = ""
	prof.IsActive = boolPtr(false)

	first := Compare(rec, prof)
	second := Compare(rec, prof)
	assert.Equal(t, first, second)
}
