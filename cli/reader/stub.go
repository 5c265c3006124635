package reader

import (
	"context"
	"fmt"
	"sync"

	"github.com/pithecene-io/uproot/lode"
	"github.com/pithecene-io/uproot/types"
)

// StubReader serves reports from memory for tests.
type StubReader struct {
	mu      sync.Mutex
	reports []*types.TelemetryReport
	// Err, when set, is returned from every call.
	Err error
}

// NewStubReader creates a stub holding reports.
func NewStubReader(reports ...*types.TelemetryReport) *StubReader {
	return &StubReader{reports: reports}
}

// Add appends a report.
func (s *StubReader) Add(report *types.TelemetryReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, report)
}

// ListReports implements Reader.
func (s *StubReader) ListReports(_ context.Context, target string) ([]lode.ReportRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var refs []lode.ReportRef
	for _, r := range s.reports {
		if target != "" && r.Target != target {
			continue
		}
		refs = append(refs, lode.ReportRef{
			Target: r.Target,
			Day:    lode.DeriveDay(r.GeneratedAt),
			RunID:  r.RunID,
		})
	}
	return refs, nil
}

// ReadReport implements Reader.
func (s *StubReader) ReadReport(_ context.Context, ref lode.ReportRef) (*types.TelemetryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, r := range s.reports {
		if r.Target == ref.Target && r.RunID == ref.RunID {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", lode.ErrReportNotFound, ref.RunID)
}

var _ Reader = (*StubReader)(nil)
