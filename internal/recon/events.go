package recon

import (
	"time"

	"github.com/north-identity/reconvalidator/internal/sse"
)

// Event types streamed to the client over the run's SSE connection.
const (
	EventTypeProgress   = "progress"
	EventTypeMismatch   = "mismatch"
	EventTypeCheckpoint = "checkpoint"
	EventTypeComplete   = "complete"
	EventTypeError      = "error"
)

// ProgressData is the payload for progress events. Message is set on the
// first emission of a run to describe the start or resume.
type ProgressData struct {
	Progress
	Message string `json:"message,omitempty"`
}

// CompleteData is the payload for the final complete event. SampledIDs is
// present only for spot-check runs.
type CompleteData struct {
	JobID      string   `json:"jobId"`
	Summary    Progress `json:"summary"`
	SampledIDs []string `json:"sampledUserIds,omitempty"`
}

// ErrorData is the payload for error events, including the abort notice.
type ErrorData struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewProgressEvent creates a progress event.
func NewProgressEvent(p Progress, message string) sse.Event {
	return sse.Event{Type: EventTypeProgress, Data: ProgressData{Progress: p, Message: message}}
}

// NewMismatchEvent creates a mismatch event.
func NewMismatchEvent(m Mismatch) sse.Event {
	return sse.Event{Type: EventTypeMismatch, Data: m}
}

// NewCheckpointEvent creates a checkpoint event.
func NewCheckpointEvent(cursor string, p Progress, lastProcessedDate string) sse.Event {
	return sse.Event{Type: EventTypeCheckpoint, Data: Checkpoint{
		Cursor:            cursor,
		Progress:          p,
		LastProcessedDate: lastProcessedDate,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}}
}

// NewCompleteEvent creates the terminal complete event.
func NewCompleteEvent(jobID string, summary Progress, sampledIDs []string) sse.Event {
	return sse.Event{Type: EventTypeComplete, Data: CompleteData{
		JobID:      jobID,
		Summary:    summary,
		SampledIDs: sampledIDs,
	}}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(message, details string) sse.Event {
	return sse.Event{Type: EventTypeError, Data: ErrorData{Message: message, Details: details}}
}
