// Package render provides centralized output rendering for the uproot CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// Color handling:
//   - --no-color affects table output only
//   - TUI mode is unaffected by --no-color (uses its own styling)
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/uproot/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// Table is implemented by values that lay out their own table rows.
// JSON and YAML output ignore it.
type Table interface {
	TableHeader() []string
	TableRows() [][]string
}

// NewRenderer creates a renderer from CLI context.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	formatStr := c.String("format")
	format, err := ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	// Apply default format based on TTY detection
	if format == "" {
		if IsTerminal(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     os.Stdout,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// Format returns the resolved output format.
func (r *Renderer) Format() Format {
	return r.format
}

// RenderTUI initiates TUI mode for the given view type.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	return enc.Encode(data)
}

func (r *Renderer) renderTable(data any) error {
	if t, ok := data.(Table); ok {
		return r.renderRows(t.TableHeader(), t.TableRows())
	}

	// Handle slice of items
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice {
		return r.renderSliceTable(v)
	}

	// Handle single struct/map
	return r.renderStructTable(data)
}

func (r *Renderer) renderSliceTable(v reflect.Value) error {
	if v.Len() == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	// Get headers from first element
	first := v.Index(0)
	headers := r.getHeaders(first)

	// Print header row
	fmt.Fprintln(w, strings.Join(headers, "\t"))

	// Print data rows
	for i := 0; i < v.Len(); i++ {
		row := r.getRowValues(v.Index(i), headers)
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	return nil
}

func (r *Renderer) renderRows(header []string, rows [][]string) error {
	if len(rows) == 0 {
		fmt.Fprintln(r.out, "(no results)")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return nil
}

func (r *Renderer) renderStructTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			field := t.Field(i)
			name := r.getFieldName(field)
			val := r.formatValue(v.Field(i))
			fmt.Fprintf(w, "%s:\t%s\n", name, val)
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprintf("%v", iter.Key().Interface())
			val := r.formatValue(iter.Value())
			fmt.Fprintf(w, "%s:\t%s\n", key, val)
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}

	return nil
}

func (r *Renderer) getHeaders(v reflect.Value) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	var headers []string
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			headers = append(headers, r.getFieldName(t.Field(i)))
		}
	case reflect.Map:
		// For maps, use keys as headers
		for _, key := range v.MapKeys() {
			headers = append(headers, fmt.Sprintf("%v", key.Interface()))
		}
	}
	return headers
}

func (r *Renderer) getRowValues(v reflect.Value, headers []string) []string {
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	var values []string
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			values = append(values, r.formatValue(v.Field(i)))
		}
	case reflect.Map:
		for _, h := range headers {
			val := v.MapIndex(reflect.ValueOf(h))
			if val.IsValid() {
				values = append(values, r.formatValue(val))
			} else {
				values = append(values, "")
			}
		}
	}
	return values
}

func (r *Renderer) getFieldName(f reflect.StructField) string {
	// Prefer json tag name
	if tag := f.Tag.Get("json"); tag != "" {
		parts := strings.Split(tag, ",")
		if parts[0] != "" && parts[0] != "-" {
			return parts[0]
		}
	}
	return strings.ToLower(f.Name)
}

func (r *Renderer) formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}

	// Handle pointers
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	if !v.CanInterface() {
		return ""
	}
	switch x := v.Interface().(type) {
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.Format(time.RFC3339)
	case time.Duration:
		return x.Round(time.Millisecond).String()
	case fmt.Stringer:
		return x.String()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// IsTerminal reports whether f is a terminal, including Cygwin ptys.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Bytes formats a byte count for table output.
func Bytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(n))
}
