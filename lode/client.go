// Package lode persists run telemetry through Lode.
//
// Each run produces two artifacts under a Hive layout keyed by
// target/day/run_id/record_kind:
//   - a sidecar report.json holding the full telemetry document, and
//   - JSONL dataset records (one run record, one record per stage and one
//     per logged event) for querying across runs.
package lode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/uproot/types"
)

// DefaultDataset is the Lode dataset ID used for telemetry.
const DefaultDataset = "uproot"

// ReportFilename is the sidecar file name of the telemetry document.
const ReportFilename = "report.json"

// Record kinds written to the dataset.
const (
	RecordKindRun   = "run"
	RecordKindStage = "stage"
	RecordKindEvent = "event"
)

// hiveKeys is the partition layout shared by the write and read paths.
var hiveKeys = []string{"target", "day", "run_id", "record_kind"}

// ErrReportNotFound is returned when no telemetry document matches.
var ErrReportNotFound = errors.New("telemetry report not found")

// DeriveDay computes the partition day (YYYY-MM-DD, UTC).
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// TelemetryWriter persists telemetry documents.
type TelemetryWriter interface {
	WriteReport(ctx context.Context, report *types.TelemetryReport) error
}

// ReportRef locates a persisted telemetry document.
type ReportRef struct {
	Target string `json:"target" yaml:"target"`
	Day    string `json:"day" yaml:"day"`
	RunID  string `json:"run_id" yaml:"run_id"`
	Path   string `json:"path" yaml:"path"`
}

// Client is a Lode-backed TelemetryWriter that can also read reports back.
type Client struct {
	dataset   lode.Dataset
	datasetID string

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewClient creates a telemetry client over the given store factory.
// Use lode.NewMemoryFactory() for testing.
func NewClient(dataset string, factory lode.StoreFactory) (*Client, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(hiveKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return &Client{
		dataset:      ds,
		datasetID:    dataset,
		storeFactory: factory,
	}, nil
}

// NewFSClient creates a telemetry client with filesystem storage rooted at root.
func NewFSClient(dataset, root string) (*Client, error) {
	return NewClient(dataset, lode.NewFSFactory(root))
}

// Dataset returns the underlying Lode dataset for queries.
func (c *Client) Dataset() lode.Dataset {
	return c.dataset
}

func (c *Client) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

// partitionValue escapes a value for use as a single path segment.
func partitionValue(s string) string {
	if s == "" {
		return "_"
	}
	return url.PathEscape(s)
}

func (c *Client) partitionPrefix(target string) string {
	return fmt.Sprintf("datasets/%s/partitions/target=%s/", c.datasetID, partitionValue(target))
}

// reportPath computes the sidecar path:
// datasets/<dataset>/partitions/target=<t>/day=<d>/run_id=<r>/files/report.json
func (c *Client) reportPath(target, day, runID string) string {
	return fmt.Sprintf("%sday=%s/run_id=%s/files/%s",
		c.partitionPrefix(target), partitionValue(day), partitionValue(runID), ReportFilename)
}

// WriteReport persists the document sidecar, then the queryable records.
func (c *Client) WriteReport(ctx context.Context, report *types.TelemetryReport) error {
	if report == nil {
		return errors.New("nil telemetry report")
	}
	day := DeriveDay(report.GeneratedAt)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode telemetry report: %w", err)
	}

	store, err := c.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, c.datasetID)
	}
	path := c.reportPath(report.Target, day, report.RunID)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}

	if _, err := c.dataset.Write(ctx, toRecords(report, day), lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.datasetID)
	}
	return nil
}

// ReadReport loads a persisted telemetry document.
func (c *Client) ReadReport(ctx context.Context, ref ReportRef) (*types.TelemetryReport, error) {
	path := ref.Path
	if path == "" {
		path = c.reportPath(ref.Target, ref.Day, ref.RunID)
	}
	store, err := c.getOrCreateStore()
	if err != nil {
		return nil, WrapInitError(err, c.datasetID)
	}
	rc, err := store.Get(ctx, path)
	if err != nil {
		if errors.Is(WrapReadError(err, path), ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, path)
		}
		return nil, WrapReadError(err, path)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, WrapReadError(err, path)
	}
	var report types.TelemetryReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode telemetry report %s: %w", path, err)
	}
	return &report, nil
}

// ListReports returns the persisted reports for target, newest day first.
// An empty target lists every target.
func (c *Client) ListReports(ctx context.Context, target string) ([]ReportRef, error) {
	store, err := c.getOrCreateStore()
	if err != nil {
		return nil, WrapInitError(err, c.datasetID)
	}
	prefix := fmt.Sprintf("datasets/%s/partitions/", c.datasetID)
	if target != "" {
		prefix = c.partitionPrefix(target)
	}
	paths, err := store.List(ctx, prefix)
	if err != nil {
		return nil, WrapReadError(err, prefix)
	}

	var refs []ReportRef
	for _, p := range paths {
		if !strings.HasSuffix(p, "/files/"+ReportFilename) {
			continue
		}
		refs = append(refs, ReportRef{
			Target: partitionFromPath(p, "target"),
			Day:    partitionFromPath(p, "day"),
			RunID:  partitionFromPath(p, "run_id"),
			Path:   p,
		})
	}
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].Day != refs[j].Day {
			return refs[i].Day > refs[j].Day
		}
		return refs[i].RunID < refs[j].RunID
	})
	return refs, nil
}

// LatestReport returns the most recent report for target.
func (c *Client) LatestReport(ctx context.Context, target string) (*types.TelemetryReport, error) {
	refs, err := c.ListReports(ctx, target)
	if err != nil {
		return nil, err
	}
	var latest *types.TelemetryReport
	for _, ref := range refs {
		report, err := c.ReadReport(ctx, ref)
		if err != nil {
			return nil, err
		}
		if latest == nil || report.GeneratedAt.After(latest.GeneratedAt) {
			latest = report
		}
	}
	if latest == nil {
		return nil, ErrReportNotFound
	}
	return latest, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	return nil
}

// partitionFromPath extracts an exact key=value segment from a Hive path.
func partitionFromPath(path, key string) string {
	for _, part := range strings.Split(path, "/") {
		if v, ok := strings.CutPrefix(part, key+"="); ok {
			if unescaped, err := url.PathUnescape(v); err == nil {
				return unescaped
			}
			return v
		}
	}
	return ""
}

var _ TelemetryWriter = (*Client)(nil)
