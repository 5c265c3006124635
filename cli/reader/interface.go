package reader

import (
	"context"

	"github.com/pithecene-io/uproot/lode"
	"github.com/pithecene-io/uproot/types"
)

// Reader abstracts read-only access to persisted telemetry reports.
// *lode.Client satisfies it; StubReader serves tests.
type Reader interface {
	// ListReports returns report refs for target, newest day first.
	// An empty target lists every target.
	ListReports(ctx context.Context, target string) ([]lode.ReportRef, error)
	// ReadReport loads one report.
	ReadReport(ctx context.Context, ref lode.ReportRef) (*types.TelemetryReport, error)
}

var _ Reader = (*lode.Client)(nil)
