package artifact

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_TTL(t *testing.T) {
	now := time.Unix(10_000, 0)
	store := NewMemoryStore(time.Hour)
	store.now = func() time.Time { return now }

	store.Put("job-1", "a,b,c")

	got, ok := store.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, "a,b,c", got.Content)

	// Still downloadable just inside the TTL.
	now = now.Add(59 * time.Minute)
	_, ok = store.Get("job-1")
	assert.True(t, ok)

	// Gone once past it.
	now = now.Add(2 * time.Minute)
	_, ok = store.Get("job-1")
	assert.False(t, ok)
}

func TestMemoryStore_PutSweepsExpired(t *testing.T) {
	now := time.Unix(10_000, 0)
	store := NewMemoryStore(time.Hour)
	store.now = func() time.Time { return now }

	store.Put("old", "stale")
	now = now.Add(2 * time.Hour)
	store.Put("new", "fresh")

	_, ok := store.Get("old")
	assert.False(t, ok)
	_, ok = store.Get("new")
	assert.True(t, ok)
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	store := NewMemoryStore(0)
	_, ok := store.Get("nope")
	assert.False(t, ok)
}

func TestNewJobID(t *testing.T) {
	id := NewJobID()
	assert.True(t, strings.HasPrefix(id, "recon-"))
	assert.NotEqual(t, id, NewJobID())
}

func TestCSVBuilder_EscapesFields(t *testing.T) {
	b := NewCSVBuilder()
	b.Append("dir-1", "ext-1", "a@example.com", "email_mismatch",
		`value with "quotes"`, "b@example.com, c@example.com", "2026-01-02T03:04:05Z", "line\nbreak")

	out := b.String()
	lines := strings.SplitN(out, "\n", 2)
	assert.Equal(t, "DirectoryID,ExternalID,Email,MismatchType,SourceValue,TargetValue,Timestamp,Details", lines[0])
	assert.Contains(t, out, `"value with ""quotes"""`)
	assert.Contains(t, out, `"b@example.com, c@example.com"`)
	assert.Equal(t, 1, b.Rows())
}
