package retrieval

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// Summary aggregates the results of several sources
type Summary struct {
	Sources      int           `json:"sources"`
	Failed       int           `json:"failed"`
	Aborted      int           `json:"aborted"`
	Materialized uint64        `json:"materialized"`
	Duplicates   uint64        `json:"duplicates"`
	Failures     uint64        `json:"failures"`
	Bytes        int64         `json:"bytes"`
	Elapsed      time.Duration `json:"elapsed"`
	Results      []Result      `json:"-"`
}

// NewSummary totals results
func NewSummary(results []Result) Summary {
	var s Summary
	for _, r := range results {
		s.Add(r)
	}
	return s
}

// Add folds one result into the summary
func (s *Summary) Add(r Result) {
	s.Sources++
	switch r.State {
	case StateFailed:
		s.Failed++
	case StateAborted:
		s.Aborted++
	}
	s.Materialized += r.Materialized
	s.Duplicates += r.Duplicates
	s.Failures += r.Failures
	s.Bytes += r.Bytes
	s.Results = append(s.Results, r)
}

// HumanBytes returns the materialized volume in human readable form
func (s Summary) HumanBytes() string {
	if s.Bytes <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(s.Bytes))
}

func (s Summary) String() string {
	return fmt.Sprintf("%d sources (%d failed): %s new items (%s), %s duplicates, %s item failures in %s",
		s.Sources, s.Failed,
		humanize.Comma(int64(s.Materialized)), s.HumanBytes(),
		humanize.Comma(int64(s.Duplicates)),
		humanize.Comma(int64(s.Failures)),
		s.Elapsed.Round(time.Second))
}
