// Package recon drives cross-system reconciliation runs: it pages through
// the directory, resolves each record against the profile store, classifies
// discrepancies, and streams results to the caller.
package recon

import (
	"github.com/north-identity/reconvalidator/internal/auth"
)

// MismatchKind is one of the fixed discrepancy classes a comparison can emit.
type MismatchKind string

const (
	// KindMissingExternalID flags a directory record with no stored raw
	// cross-system identifier. Other checks still run on a derived id.
	KindMissingExternalID MismatchKind = "missing_external_id"
	// KindProfileError means the profile lookup never returned anything,
	// batch and fallback both failing. Counted as an error, not a mismatch.
	KindProfileError MismatchKind = "profile_error"
	// KindOrphanedRecord means the profile store answered but reported the
	// account as not found.
	KindOrphanedRecord MismatchKind = "orphaned_record"
	// KindUUIDMismatch means the dashed form of the profile identifier does
	// not equal the directory record id.
	KindUUIDMismatch MismatchKind = "uuid_mismatch"
	// KindRawIDMismatch means the stored raw identifier differs from the
	// profile store's primary key.
	KindRawIDMismatch MismatchKind = "raw_id_mismatch"
	KindEmailMismatch  MismatchKind = "email_mismatch"
	KindStatusMismatch MismatchKind = "status_mismatch"
	KindNameMismatch   MismatchKind = "name_mismatch"
)

// Finding is one classified discrepancy as produced by the comparison
// engine. It carries no run-scoped identity; the orchestrator stamps the id
// and timestamp when it turns a Finding into a Mismatch.
type Finding struct {
	Kind        MismatchKind
	SourceValue string
	TargetValue string
	Details     string
}

// Mismatch is one streamed, run-scoped discrepancy record.
type Mismatch struct {
	ID                string       `json:"id"`
	DirectoryRecordID string       `json:"directoryRecordId"`
	Email             string       `json:"email"`
	ExternalID        string       `json:"externalId"`
	Kind              MismatchKind `json:"mismatchType"`
	SourceValue       string       `json:"sourceValue"`
	TargetValue       string       `json:"targetValue"`
	Timestamp         string       `json:"timestamp"`
	Details           string       `json:"details,omitempty"`
}

// Progress holds the run counters emitted after every page. Each processed
// record lands in exactly one of Matches, the has-a-mismatch bucket, or
// Errors.
type Progress struct {
	TotalProcessed int   `json:"totalProcessed"`
	Matches        int   `json:"matches"`
	Mismatches     int   `json:"mismatches"`
	Errors         int   `json:"errors"`
	IsRunning      bool  `json:"isRunning"`
	StartTime      int64 `json:"startTime"`
	LastUpdateTime int64 `json:"lastUpdateTime"`
	Rate           int   `json:"rate"`
}

// Checkpoint is the resumption state emitted after every page.
// LastProcessedDate is the most recent profile-store timestamp seen, usable
// as a heuristic starting bound for a fresh run if the cursor has expired.
type Checkpoint struct {
	Cursor            string   `json:"cursor"`
	Progress          Progress `json:"progress"`
	LastProcessedDate string   `json:"lastProcessedDate,omitempty"`
	Timestamp         string   `json:"timestamp"`
}

// SpotCheckConfig selects randomized spot-check mode: sample a bounded
// subset per page instead of processing every record.
type SpotCheckConfig struct {
	SampleSize int      `json:"sampleSize"`
	ExcludeIDs []string `json:"excludeUids"`
}

// RunConfig is everything one validation run needs.
type RunConfig struct {
	TenantURL   string
	Credentials auth.Credentials

	Concurrency int
	PageSize    int
	MaxRecords  int

	// Resume state from a previously emitted Checkpoint.
	ResumeCursor            string
	ResumeProgress          *Progress
	ResumeLastProcessedDate string

	SpotCheck *SpotCheckConfig

	// SampleRatio is the per-page spot-check sampling ratio; zero selects
	// the default.
	SampleRatio float64
}
