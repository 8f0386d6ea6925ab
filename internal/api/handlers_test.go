package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/north-identity/reconvalidator/internal/artifact"
	"github.com/north-identity/reconvalidator/internal/config"
	"github.com/north-identity/reconvalidator/internal/logger"
	"github.com/north-identity/reconvalidator/internal/recon"
	"github.com/north-identity/reconvalidator/internal/sse"
)

// stubRunner replays canned events and records the config it was given.
type stubRunner struct {
	events []sse.Event
	gotCfg recon.RunConfig
}

func (s *stubRunner) Run(_ context.Context, cfg recon.RunConfig) <-chan sse.Event {
	s.gotCfg = cfg
	ch := make(chan sse.Event, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch
}

func testDefaults() config.ValidationConfig {
	return config.ValidationConfig{
		Concurrency: 30,
		PageSize:    100,
		SampleRatio: 0.3,
		ArtifactTTL: time.Hour,
	}
}

func newTestRouter(runner Runner, store artifact.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(runner, store, testDefaults(), logger.NewNop(), nil)
}

const validBody = `{
	"tenantUrl": "https://tenant.example.com",
	"clientId": "client-1",
	"clientSecret": "s3cret",
	"tokenEndpoint": "https://tenant.example.com/oauth2/token"
}`

func TestValidate_StreamsEvents(t *testing.T) {
	runner := &stubRunner{events: []sse.Event{
		recon.NewProgressEvent(recon.Progress{TotalProcessed: 1, IsRunning: true}, "Starting"),
		recon.NewCompleteEvent("recon-1-abc", recon.Progress{TotalProcessed: 1, Matches: 1}, nil),
	}}
	router := newTestRouter(runner, artifact.NewMemoryStore(0))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/recon-validation/validate", strings.NewReader(validBody))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	frames := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 2)
	assert.Contains(t, frames[0], `"type":"progress"`)
	assert.Contains(t, frames[0], `"message":"Starting"`)
	assert.Contains(t, frames[1], `"type":"complete"`)
	assert.Contains(t, frames[1], `"jobId":"recon-1-abc"`)
}

func TestValidate_AppliesDefaultsAndOverrides(t *testing.T) {
	runner := &stubRunner{}
	router := newTestRouter(runner, artifact.NewMemoryStore(0))

	body := strings.Replace(validBody, "}", `, "pageSize": 25, "maxUsers": 500}`, 1)
	req := httptest.NewRequest(http.MethodPost, "/api/recon-validation/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 25, runner.gotCfg.PageSize)
	assert.Equal(t, 500, runner.gotCfg.MaxRecords)
	assert.Equal(t, 30, runner.gotCfg.Concurrency, "default when unspecified")
	assert.Equal(t, "fr:idm:*", runner.gotCfg.Credentials.Scopes, "default scopes")
	assert.Equal(t, 0.3, runner.gotCfg.SampleRatio)
}

func TestValidate_MissingConnectionParams(t *testing.T) {
	router := newTestRouter(&stubRunner{}, artifact.NewMemoryStore(0))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/recon-validation/validate",
		strings.NewReader(`{"tenantUrl": "https://tenant.example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing required connection parameters")
}

func TestDownload(t *testing.T) {
	store := artifact.NewMemoryStore(0)
	store.Put("recon-1-abc", "DirectoryID,ExternalID\nrec-1,ext-1\n")
	router := newTestRouter(&stubRunner{}, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recon-validation/download/recon-1-abc", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=recon-validation-recon-1-abc.csv", rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), "rec-1,ext-1")
}

func TestDownload_UnknownJob(t *testing.T) {
	router := newTestRouter(&stubRunner{}, artifact.NewMemoryStore(0))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recon-validation/download/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&stubRunner{}, artifact.NewMemoryStore(0))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
