package sse

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}

func TestWriteEvent_FrameShape(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteEvent(rec, Event{Type: "progress", Data: map[string]int{"totalProcessed": 7}})
	require.NoError(t, err)

	assert.Equal(t, "data: {\"type\":\"progress\",\"data\":{\"totalProcessed\":7}}\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)
}
