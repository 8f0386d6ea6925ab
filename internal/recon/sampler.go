package recon

import (
	"math"
	"math/rand"
	"strings"

	"github.com/north-identity/reconvalidator/internal/directory"
)

// DefaultSampleRatio is the fraction of eligible records sampled per page in
// spot-check mode. A heuristic, not a contract; tunable per run.
const DefaultSampleRatio = 0.3

// sampler picks a bounded random subset of each page for spot-check runs.
// Records sampled in prior runs are excluded before the draw.
type sampler struct {
	ratio   float64
	budget  int
	exclude map[string]struct{}
	picked  []string

	shuffle func(n int, swap func(i, j int))
}

func newSampler(cfg *SpotCheckConfig, ratio float64) *sampler {
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultSampleRatio
	}
	exclude := make(map[string]struct{}, len(cfg.ExcludeIDs))
	for _, id := range cfg.ExcludeIDs {
		exclude[strings.ToLower(id)] = struct{}{}
	}
	return &sampler{
		ratio:   ratio,
		budget:  cfg.SampleSize,
		exclude: exclude,
		shuffle: rand.Shuffle,
	}
}

// exhausted reports whether the sample budget has been spent.
func (s *sampler) exhausted() bool {
	return len(s.picked) >= s.budget
}

// samplePage returns the subset of records to process from one page: a
// random draw of roughly ratio x eligible, at least one, capped by the
// remaining budget. The drawn ids are recorded for the complete event.
func (s *sampler) samplePage(records []directory.Record) []directory.Record {
	remaining := s.budget - len(s.picked)
	if remaining <= 0 {
		return nil
	}

	eligible := make([]directory.Record, 0, len(records))
	for _, rec := range records {
		if _, skip := s.exclude[strings.ToLower(rec.ID)]; !skip {
			eligible = append(eligible, rec)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	count := int(math.Ceil(float64(len(eligible)) * s.ratio))
	if count < 1 {
		count = 1
	}
	if count > remaining {
		count = remaining
	}

	s.shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	sampled := eligible[:count]

	for _, rec := range sampled {
		s.picked = append(s.picked, rec.ID)
	}
	return sampled
}
