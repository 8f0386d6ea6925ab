package recon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/north-identity/reconvalidator/internal/artifact"
	"github.com/north-identity/reconvalidator/internal/auth"
	"github.com/north-identity/reconvalidator/internal/directory"
	"github.com/north-identity/reconvalidator/internal/logger"
	"github.com/north-identity/reconvalidator/internal/metrics"
	"github.com/north-identity/reconvalidator/internal/profile"
	"github.com/north-identity/reconvalidator/internal/retry"
	"github.com/north-identity/reconvalidator/internal/sse"
	"github.com/north-identity/reconvalidator/internal/worker"
)

const (
	// DefaultConcurrency bounds in-flight fallback lookups when the caller
	// does not choose a value. Adjustable within [5, 100].
	DefaultConcurrency = 30
	MinConcurrency     = 5
	MaxConcurrency     = 100

	// DefaultPageSize is the directory page size.
	DefaultPageSize = 100

	// fallbackTimeout bounds each individual profile lookup so abandoned
	// lookups cannot outlive a run indefinitely after cancellation.
	fallbackTimeout = 30 * time.Second

	eventBuffer = 64
)

// Run outcomes, used as the completion metric label.
const (
	outcomeComplete = "complete"
	outcomeAborted  = "aborted"
	outcomeFailed   = "failed"
)

// Orchestrator wires the upstream clients together and executes validation
// runs. One orchestrator serves the whole process; each run gets its own
// state, limiter, and token source.
type Orchestrator struct {
	auth      *auth.Client
	directory *directory.Client
	profile   *profile.Client
	artifacts artifact.Store
	metrics   *metrics.Metrics
	logger    logger.Logger

	// Retry policies per upstream operation.
	searchRetry   retry.Config
	fallbackRetry retry.Config
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(
	authClient *auth.Client,
	dir *directory.Client,
	prof *profile.Client,
	store artifact.Store,
	m *metrics.Metrics,
	log logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		auth:      authClient,
		directory: dir,
		profile:   prof,
		artifacts: store,
		metrics:   m,
		logger:    log,

		searchRetry:   retry.Config{MaxRetries: 3, BaseDelay: 2 * time.Second},
		fallbackRetry: retry.Config{MaxRetries: 2, BaseDelay: time.Second},
	}
}

// Run starts a validation run and returns its event stream. The channel is
// closed when the run reaches a terminal state. Cancelling ctx aborts the
// run cooperatively at the next page boundary.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) <-chan sse.Event {
	events := make(chan sse.Event, eventBuffer)
	go o.execute(ctx, cfg, events)
	return events
}

func (cfg *RunConfig) normalize() {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Concurrency < MinConcurrency {
		cfg.Concurrency = MinConcurrency
	}
	if cfg.Concurrency > MaxConcurrency {
		cfg.Concurrency = MaxConcurrency
	}
}

// run is the state owned by a single validation run.
type run struct {
	o      *Orchestrator
	cfg    RunConfig
	ctx    context.Context
	events chan<- sse.Event

	jobID    string
	progress Progress
	counter  int
	csv      *artifact.CSVBuilder
	tokens   *auth.TokenSource
	limiter  *worker.Limiter
	sampler  *sampler

	lastProcessedDate string
}

type pageResult struct {
	page *directory.Page
	err  error
}

func (o *Orchestrator) execute(ctx context.Context, cfg RunConfig, events chan sse.Event) {
	defer close(events)

	cfg.normalize()

	limiter, err := worker.NewLimiter(cfg.Concurrency)
	if err != nil {
		events <- NewErrorEvent("invalid run configuration", err.Error())
		return
	}

	r := &run{
		o:       o,
		cfg:     cfg,
		ctx:     ctx,
		events:  events,
		jobID:   artifact.NewJobID(),
		csv:     artifact.NewCSVBuilder(),
		tokens:  auth.NewTokenSource(o.auth, cfg.Credentials),
		limiter: limiter,
	}
	if cfg.SpotCheck != nil {
		r.sampler = newSampler(cfg.SpotCheck, cfg.SampleRatio)
	}

	r.seedProgress()

	o.metrics.RunsStarted.Inc()
	o.metrics.ActiveRuns.Inc()
	defer o.metrics.ActiveRuns.Dec()

	o.logger.Info("validation run starting",
		logger.String("job_id", r.jobID),
		logger.Int("page_size", cfg.PageSize),
		logger.Int("concurrency", cfg.Concurrency),
		logger.Bool("resuming", cfg.ResumeCursor != ""),
		logger.Bool("spot_check", cfg.SpotCheck != nil),
	)

	if _, err := r.tokens.Token(ctx); err != nil {
		r.emit(NewErrorEvent("authentication failed", err.Error()))
		o.metrics.RunsCompleted.WithLabelValues(outcomeFailed).Inc()
		return
	}

	message := "Authenticated. Starting validation..."
	if cfg.ResumeCursor != "" {
		message = fmt.Sprintf("Resuming validation from checkpoint (%d already processed)...", r.progress.TotalProcessed)
	}
	r.emit(NewProgressEvent(r.progress, message))

	outcome := r.loop()

	r.progress.IsRunning = false
	r.progress.LastUpdateTime = time.Now().UnixMilli()

	// Partial results stay downloadable after an abort or failure.
	o.artifacts.Put(r.jobID, r.csv.String())

	if outcome == outcomeComplete {
		var sampledIDs []string
		if r.sampler != nil {
			sampledIDs = r.sampler.picked
		}
		r.emit(NewCompleteEvent(r.jobID, r.progress, sampledIDs))
	}

	o.metrics.RunsCompleted.WithLabelValues(outcome).Inc()
	o.logger.Info("validation run finished",
		logger.String("job_id", r.jobID),
		logger.String("outcome", outcome),
		logger.Int("processed", r.progress.TotalProcessed),
		logger.Int("mismatches", r.progress.Mismatches),
		logger.Int("errors", r.progress.Errors),
	)
}

// seedProgress initializes counters, from the resume checkpoint if present.
// The mismatch id counter continues from the checkpoint so resumed runs
// never reuse ids.
func (r *run) seedProgress() {
	now := time.Now().UnixMilli()
	r.progress = Progress{IsRunning: true, StartTime: now, LastUpdateTime: now}

	if prev := r.cfg.ResumeProgress; prev != nil {
		r.progress.TotalProcessed = prev.TotalProcessed
		r.progress.Matches = prev.Matches
		r.progress.Mismatches = prev.Mismatches
		r.progress.Errors = prev.Errors
		if prev.StartTime > 0 {
			r.progress.StartTime = prev.StartTime
		}
		r.counter = prev.Mismatches + prev.Errors
	}
	r.lastProcessedDate = r.cfg.ResumeLastProcessedDate
}

// loop runs the fetcher and comparer halves of the pipeline. The unbuffered
// channel between them yields exactly one page of lookahead: the fetcher
// blocks on the next send until the comparer takes the page.
func (r *run) loop() string {
	fctx, cancelFetch := context.WithCancel(r.ctx)
	defer cancelFetch()

	pages := make(chan pageResult)
	go r.fetchPages(fctx, pages)

	for {
		// Cancellation is polled once per page, never mid-page.
		if r.ctx.Err() != nil {
			r.emit(NewErrorEvent("validation aborted", r.ctx.Err().Error()))
			return outcomeAborted
		}

		select {
		case <-r.ctx.Done():
			r.emit(NewErrorEvent("validation aborted", r.ctx.Err().Error()))
			return outcomeAborted
		case res, ok := <-pages:
			if !ok {
				return outcomeComplete
			}
			if res.err != nil {
				r.emit(NewErrorEvent(failureMessage(res.err), res.err.Error()))
				return outcomeFailed
			}
			if stop := r.processPage(res.page); stop {
				cancelFetch()
				return outcomeComplete
			}
		}
	}
}

func failureMessage(err error) string {
	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		return "token refresh failed after retries"
	}
	return "directory search failed after retries"
}

// fetchPages drives pagination, one page ahead of the comparer at most. It
// closes the channel on end-of-pagination and sends a terminal error result
// on exhausted retries.
func (r *run) fetchPages(ctx context.Context, pages chan<- pageResult) {
	defer close(pages)

	cursor := r.cfg.ResumeCursor
	for {
		// The token source refreshes proactively inside the expiry buffer.
		token, err := r.tokens.Token(ctx)
		if err != nil {
			r.sendPage(ctx, pages, pageResult{err: err})
			return
		}

		var page *directory.Page
		err = retry.Do(ctx, r.o.searchRetry, func() error {
			var searchErr error
			page, searchErr = r.o.directory.Search(ctx, r.cfg.TenantURL, token, "true", r.cfg.PageSize, cursor)
			return searchErr
		})
		if err != nil {
			r.sendPage(ctx, pages, pageResult{err: err})
			return
		}
		r.o.metrics.PagesFetched.Inc()

		if len(page.Records) == 0 {
			return
		}
		if !r.sendPage(ctx, pages, pageResult{page: page}) {
			return
		}
		if page.NextCursor == "" {
			return
		}
		cursor = page.NextCursor
	}
}

func (r *run) sendPage(ctx context.Context, pages chan<- pageResult, res pageResult) bool {
	select {
	case pages <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

// processPage resolves and compares one page of directory records and emits
// the page's progress and checkpoint events. It returns true when the run
// should stop early (record cap reached or sample budget spent).
func (r *run) processPage(page *directory.Page) (stop bool) {
	records := page.Records
	if r.sampler != nil {
		if r.sampler.exhausted() {
			return true
		}
		records = r.sampler.samplePage(records)
	}

	if len(records) > 0 {
		rawIDs := make([]string, len(records))
		for i := range records {
			rawIDs[i] = strings.ToLower(RawID(&records[i]))
		}

		found, err := r.o.profile.BatchLookup(r.ctx, rawIDs)
		if err != nil {
			r.o.logger.Warn("batch lookup failed, all ids fall through to fallback", logger.Error(err))
			found = make(map[string]*profile.Record)
		}
		r.resolveFallbacks(found, rawIDs)

		for i := range records {
			if r.cfg.MaxRecords > 0 && r.progress.TotalProcessed >= r.cfg.MaxRecords {
				break
			}
			r.processRecord(&records[i], found[rawIDs[i]])
		}
	}

	if r.cfg.MaxRecords > 0 && r.progress.TotalProcessed >= r.cfg.MaxRecords {
		stop = true
	}
	if r.sampler != nil && r.sampler.exhausted() {
		stop = true
	}

	now := time.Now().UnixMilli()
	if elapsed := float64(now-r.progress.StartTime) / 1000; elapsed > 0 {
		r.progress.Rate = int(math.Round(float64(r.progress.TotalProcessed) / elapsed))
	}
	r.progress.LastUpdateTime = now
	r.emit(NewProgressEvent(r.progress, ""))

	if page.NextCursor != "" {
		r.emit(NewCheckpointEvent(page.NextCursor, r.progress, r.lastProcessedDate))
	}
	return stop
}

// resolveFallbacks issues bounded individual lookups for ids the batch did
// not resolve. Lookups run on a detached context so an abort lets in-flight
// calls finish instead of tearing them down mid-page; each call still has
// its own timeout. A failed fallback leaves the id unresolved.
func (r *run) resolveFallbacks(found map[string]*profile.Record, rawIDs []string) {
	var missing []string
	seen := make(map[string]struct{}, len(rawIDs))
	for _, id := range rawIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}

	r.o.logger.Debug("resolving batch misses individually",
		logger.Int("count", len(missing)),
	)

	lctx := context.WithoutCancel(r.ctx)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range missing {
		if err := r.limiter.Acquire(lctx); err != nil {
			break
		}
		r.o.metrics.FallbackLookups.Inc()

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer r.limiter.Release()

			var rec *profile.Record
			err := retry.Do(lctx, r.o.fallbackRetry, func() error {
				callCtx, cancel := context.WithTimeout(lctx, fallbackTimeout)
				defer cancel()
				var lookupErr error
				rec, lookupErr = r.o.profile.Lookup(callCtx, id)
				return lookupErr
			})
			if err != nil {
				r.o.logger.Warn("fallback lookup failed",
					logger.String("id", truncateID(id)),
					logger.Error(err),
				)
				return
			}

			mu.Lock()
			found[id] = rec
			mu.Unlock()
		}(id)
	}
	wg.Wait()
}

// processRecord classifies one record and routes it into exactly one of the
// match, mismatch, or error buckets.
func (r *run) processRecord(rec *directory.Record, prof *profile.Record) {
	r.progress.TotalProcessed++
	r.o.metrics.RecordsProcessed.Inc()

	email := recordEmail(rec)
	rawID := RawID(rec)

	hasError := false
	hasMismatch := false
	for _, f := range Compare(rec, prof) {
		r.counter++
		externalID := rawID
		if f.Kind == KindMissingExternalID {
			externalID = ""
		}

		m := Mismatch{
			ID:                fmt.Sprintf("m-%d", r.counter),
			DirectoryRecordID: rec.ID,
			Email:             email,
			ExternalID:        externalID,
			Kind:              f.Kind,
			SourceValue:       f.SourceValue,
			TargetValue:       f.TargetValue,
			Timestamp:         time.Now().UTC().Format(time.RFC3339),
			Details:           f.Details,
		}

		if f.Kind == KindProfileError {
			r.progress.Errors++
			hasError = true
		} else {
			r.progress.Mismatches++
			hasMismatch = true
		}

		r.o.metrics.Mismatches.WithLabelValues(string(f.Kind)).Inc()
		r.emit(NewMismatchEvent(m))
		r.csv.Append(rec.ID, externalID, email, string(f.Kind), f.SourceValue, f.TargetValue, m.Timestamp, f.Details)
	}

	if !hasError && !hasMismatch {
		r.progress.Matches++
	}

	if prof != nil && prof.ErrorCode == 0 {
		r.trackProcessedDate(prof)
	}
}

// trackProcessedDate keeps the most recent profile-store timestamp seen, the
// fallback resume anchor when a pagination cursor has expired.
func (r *run) trackProcessedDate(prof *profile.Record) {
	date := prof.UpdatedAt
	if date == "" {
		date = prof.LastLoginAt
	}
	if date == "" {
		date = prof.CreatedAt
	}
	if date != "" && date > r.lastProcessedDate {
		r.lastProcessedDate = date
	}
}

// emit delivers one event. Consumers must drain the stream until it closes,
// so the abort notice is delivered even after cancellation.
func (r *run) emit(event sse.Event) {
	r.events <- event
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
