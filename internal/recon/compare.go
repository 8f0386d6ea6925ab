package recon

import (
	"fmt"
	"strings"

	"github.com/north-identity/reconvalidator/internal/directory"
	"github.com/north-identity/reconvalidator/internal/profile"
)

// nameSentinel is the placeholder the upstream sync writes into directory
// given names it could not map. It makes no claim and never mismatches.
const nameSentinel = "unknown"

// ToDashed inserts separators into a 32-hex-character identifier at the
// 8-4-4-4-12 offsets. Already-dashed or oddly shaped input is returned
// unchanged.
func ToDashed(id string) string {
	if strings.Contains(id, "-") || len(id) != 32 {
		return id
	}
	for _, r := range id {
		if !isHex(r) {
			return id
		}
	}
	return id[0:8] + "-" + id[8:12] + "-" + id[12:16] + "-" + id[16:20] + "-" + id[20:32]
}

// StripDashes removes all separators from an identifier.
func StripDashes(id string) string {
	return strings.ReplaceAll(id, "-", "")
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// RawID returns the identifier used to resolve a directory record against
// the profile store: the stored raw id, or the undashed record id when the
// raw id is absent.
func RawID(rec *directory.Record) string {
	if rec.ExternalID != "" {
		return rec.ExternalID
	}
	return StripDashes(rec.ID)
}

// recordEmail returns the best email claim a directory record makes.
func recordEmail(rec *directory.Record) string {
	if rec.Username != "" {
		return rec.Username
	}
	return rec.Email
}

// Compare classifies the discrepancies between one directory record and its
// resolved profile account. A nil prof means the lookup never returned
// anything; a prof with nonzero ErrorCode means the store answered
// not-found. It is a pure function: fixed inputs always yield the same
// ordered findings.
func Compare(rec *directory.Record, prof *profile.Record) []Finding {
	var findings []Finding
	rawID := RawID(rec)

	if rec.ExternalID == "" {
		findings = append(findings, Finding{
			Kind:        KindMissingExternalID,
			SourceValue: "externalId: (empty)",
			TargetValue: "N/A",
			Details:     "directory record has no stored raw identifier, falling back to the undashed record id",
		})
	}

	if prof == nil {
		return append(findings, Finding{
			Kind:        KindProfileError,
			SourceValue: rec.ID,
			TargetValue: "retrieval failed",
			Details:     fmt.Sprintf("could not retrieve profile account for id %s", rawID),
		})
	}

	if prof.ErrorCode != 0 {
		return append(findings, Finding{
			Kind:        KindOrphanedRecord,
			SourceValue: rec.ID,
			TargetValue: fmt.Sprintf("%d: %s", prof.ErrorCode, prof.ErrorMessage),
			Details:     fmt.Sprintf("no profile account found for id %s: %s", rawID, prof.ErrorMessage),
		})
	}

	dashed := ToDashed(prof.ExternalID)
	if !strings.EqualFold(dashed, rec.ID) {
		findings = append(findings, Finding{
			Kind:        KindUUIDMismatch,
			SourceValue: rec.ID,
			TargetValue: dashed,
			Details:     fmt.Sprintf("record id %q does not match dashed profile identifier %q (raw: %s)", rec.ID, dashed, prof.ExternalID),
		})
	}

	if rec.ExternalID != "" && !strings.EqualFold(rec.ExternalID, prof.ExternalID) {
		findings = append(findings, Finding{
			Kind:        KindRawIDMismatch,
			SourceValue: rec.ExternalID,
			TargetValue: prof.ExternalID,
			Details:     fmt.Sprintf("stored raw id %q does not match profile identifier %q", rec.ExternalID, prof.ExternalID),
		})
	}

	if prof.Email != "" && recordEmail(rec) != "" {
		emailMatches := strings.EqualFold(prof.Email, rec.Username) ||
			strings.EqualFold(prof.Email, rec.Email)
		if !emailMatches {
			findings = append(findings, Finding{
				Kind:        KindEmailMismatch,
				SourceValue: fmt.Sprintf("userName: %s, mail: %s", rec.Username, rec.Email),
				TargetValue: prof.Email,
				Details:     fmt.Sprintf("directory email fields do not match profile email %q", prof.Email),
			})
		}
	}

	if rec.AccountStatus != "" && prof.IsActive != nil {
		expected := "inactive"
		if *prof.IsActive {
			expected = "active"
		}
		if !strings.EqualFold(rec.AccountStatus, expected) {
			findings = append(findings, Finding{
				Kind:        KindStatusMismatch,
				SourceValue: rec.AccountStatus,
				TargetValue: expected,
				Details:     fmt.Sprintf("directory status %q does not match expected %q from profile isActive=%t", rec.AccountStatus, expected, *prof.IsActive),
			})
		}
	}

	if prof.FirstName != "" && rec.GivenName != "" &&
		!strings.EqualFold(rec.GivenName, prof.FirstName) &&
		rec.GivenName != nameSentinel {
		findings = append(findings, Finding{
			Kind:        KindNameMismatch,
			SourceValue: strings.TrimSpace(rec.GivenName + " " + rec.Surname),
			TargetValue: strings.TrimSpace(prof.FirstName + " " + prof.LastName),
			Details: fmt.Sprintf("directory name %q does not match profile name %q",
				strings.TrimSpace(rec.GivenName+" "+rec.Surname),
				strings.TrimSpace(prof.FirstName+" "+prof.LastName)),
		})
	}

	return findings
}
