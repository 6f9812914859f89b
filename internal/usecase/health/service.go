// Package health aggregates component probes into one readiness report.
package health

import (
	"context"

	"github.com/semdex-io/semdex/internal/domain"
)

// Status is the aggregated verdict.
type Status string

const (
	Healthy  Status = "ok"
	Degraded Status = "degraded"
)

// CheckResult is a single component's verdict.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Report lists per-component results next to the overall status.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service probes the index engine plus any optional backends it was
// given at construction.
type Service struct {
	engine StatusReporter
	corpus CorpusPinger
	embed  EmbeddingChecker
}

// New creates a Service. corpus and embed may be nil; absent components
// are simply left out of the report.
func New(engine StatusReporter, corpus CorpusPinger, embed EmbeddingChecker) *Service {
	return &Service{engine: engine, corpus: corpus, embed: embed}
}

// Check probes every configured component. Any single failure degrades
// the overall status. A rebuilding index keeps serving queries against
// the previous structure, so only StatusUnready counts as a failure.
func (s *Service) Check(ctx context.Context) Report {
	type probe struct {
		name string
		run  func() error
	}

	probes := []probe{
		{"index", func() error {
			if s.engine.Status() == domain.StatusUnready {
				return domain.ErrIndexNotReady
			}
			return nil
		}},
	}
	if s.corpus != nil {
		probes = append(probes, probe{"corpus", func() error { return s.corpus.Ping(ctx) }})
	}
	if s.embed != nil {
		probes = append(probes, probe{"embedder", func() error { return s.embed.HealthCheck(ctx) }})
	}

	report := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(probes))}
	for _, p := range probes {
		if p.run() != nil {
			report.Checks[p.name] = CheckError
			report.Status = Degraded
			continue
		}
		report.Checks[p.name] = CheckOK
	}
	return report
}
