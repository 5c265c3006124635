package lode

import (
	"context"
	"sync"

	"github.com/pithecene-io/uproot/types"
)

// StubTelemetryWriter records WriteReport calls for testing.
type StubTelemetryWriter struct {
	mu      sync.Mutex
	Reports []*types.TelemetryReport
	// Err, when set, is returned from every WriteReport call.
	Err error
}

// NewStubTelemetryWriter creates a new stub writer.
func NewStubTelemetryWriter() *StubTelemetryWriter {
	return &StubTelemetryWriter{}
}

// WriteReport implements TelemetryWriter by recording the report.
func (w *StubTelemetryWriter) WriteReport(_ context.Context, report *types.TelemetryReport) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.Reports = append(w.Reports, report)
	return nil
}

// Count returns the number of recorded reports.
func (w *StubTelemetryWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.Reports)
}

// Last returns the most recent report, or nil.
func (w *StubTelemetryWriter) Last() *types.TelemetryReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.Reports) == 0 {
		return nil
	}
	return w.Reports[len(w.Reports)-1]
}

var _ TelemetryWriter = (*StubTelemetryWriter)(nil)
