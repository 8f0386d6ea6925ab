package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/north-identity/reconvalidator/internal/artifact"
	"github.com/north-identity/reconvalidator/internal/auth"
	"github.com/north-identity/reconvalidator/internal/config"
	"github.com/north-identity/reconvalidator/internal/logger"
	"github.com/north-identity/reconvalidator/internal/recon"
	"github.com/north-identity/reconvalidator/internal/sse"
)

const defaultScopes = "fr:idm:*"

// ValidateRequest is the body of a start-validation call. Directory tenant
// and OAuth credentials are supplied per run; resume and spot-check blocks
// are optional.
type ValidateRequest struct {
	TenantURL     string `json:"tenantUrl"`
	ClientID      string `json:"clientId"`
	ClientSecret  string `json:"clientSecret"`
	TokenEndpoint string `json:"tokenEndpoint"`
	Scopes        string `json:"scopes"`

	Concurrency int `json:"concurrency"`
	PageSize    int `json:"pageSize"`
	MaxUsers    int `json:"maxUsers"`

	ResumeFromCookie        string          `json:"resumeFromCookie"`
	ResumeProgress          *recon.Progress `json:"resumeProgress"`
	ResumeLastProcessedDate string          `json:"resumeLastProcessedDate"`

	SpotCheck *recon.SpotCheckConfig `json:"spotCheck"`
}

type handlers struct {
	runner   Runner
	store    artifact.Store
	defaults config.ValidationConfig
	logger   logger.Logger
}

// validate starts a run and streams its events over SSE until the run
// reaches a terminal state or the client disconnects.
func (h *handlers) validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.TenantURL == "" || req.ClientID == "" || req.ClientSecret == "" || req.TokenEndpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required connection parameters"})
		return
	}

	cfg := h.runConfig(&req)

	sse.SetHeaders(c.Writer)
	c.Writer.Flush()

	// A client disconnect cancels the request context, which aborts the
	// run at its next page boundary. Keep draining so the run can emit its
	// terminal events and store the artifact.
	events := h.runner.Run(c.Request.Context(), cfg)
	clientGone := false
	for event := range events {
		if clientGone {
			continue
		}
		if err := sse.WriteEvent(c.Writer, event); err != nil {
			h.logger.Debug("client disconnected mid-stream", logger.Error(err))
			clientGone = true
		}
	}
}

func (h *handlers) runConfig(req *ValidateRequest) recon.RunConfig {
	scopes := req.Scopes
	if scopes == "" {
		scopes = defaultScopes
	}
	concurrency := req.Concurrency
	if concurrency == 0 {
		concurrency = h.defaults.Concurrency
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = h.defaults.PageSize
	}

	return recon.RunConfig{
		TenantURL: req.TenantURL,
		Credentials: auth.Credentials{
			TokenEndpoint: req.TokenEndpoint,
			ClientID:      req.ClientID,
			ClientSecret:  req.ClientSecret,
			Scopes:        scopes,
		},
		Concurrency:             concurrency,
		PageSize:                pageSize,
		MaxRecords:              req.MaxUsers,
		ResumeCursor:            req.ResumeFromCookie,
		ResumeProgress:          req.ResumeProgress,
		ResumeLastProcessedDate: req.ResumeLastProcessedDate,
		SpotCheck:               req.SpotCheck,
		SampleRatio:             h.defaults.SampleRatio,
	}
}

// download serves a finished run's mismatch table as a CSV attachment.
func (h *handlers) download(c *gin.Context) {
	jobID := c.Param("jobId")
	art, ok := h.store.Get(jobID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found or expired"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=recon-validation-%s.csv", jobID))
	c.Data(http.StatusOK, "text/csv", []byte(art.Content))
}
