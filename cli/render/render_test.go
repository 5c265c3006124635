package render

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{"json lowercase", "json", FormatJSON, false},
		{"json uppercase", "JSON", FormatJSON, false},
		{"table", "table", FormatTable, false},
		{"yaml", "yaml", FormatYAML, false},
		{"empty", "", "", false},
		{"invalid", "xml", "", true},
		{"invalid with message", "csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat_InvalidErrorMessage(t *testing.T) {
	_, err := ParseFormat("xml")
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
	if !strings.Contains(err.Error(), "json, table, or yaml") {
		t.Errorf("error message should mention valid formats, got: %v", err)
	}
}

func TestRenderer_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)

	data := map[string]string{"key": "value"}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, `"key"`) || !strings.Contains(got, `"value"`) {
		t.Errorf("JSON output missing expected content: %s", got)
	}
}

func TestRenderer_YAML(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatYAML, false, &buf)

	data := map[string]string{"key": "value"}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "key:") || !strings.Contains(got, "value") {
		t.Errorf("YAML output missing expected content: %s", got)
	}
}

func TestRenderer_Table_Struct(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	type TestStruct struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	data := TestStruct{Name: "test", Value: 42}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "name:") || !strings.Contains(got, "test") {
		t.Errorf("Table output missing name field: %s", got)
	}
	if !strings.Contains(got, "value:") || !strings.Contains(got, "42") {
		t.Errorf("Table output missing value field: %s", got)
	}
}

func TestRenderer_Table_Slice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	type Item struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	data := []Item{
		{ID: "1", Name: "first"},
		{ID: "2", Name: "second"},
	}

	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	// Should have header row
	if !strings.Contains(got, "id") || !strings.Contains(got, "name") {
		t.Errorf("Table output missing headers: %s", got)
	}
	// Should have data rows
	if !strings.Contains(got, "first") || !strings.Contains(got, "second") {
		t.Errorf("Table output missing data: %s", got)
	}
}

func TestRenderer_Table_EmptySlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	data := []string{}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "(no results)") {
		t.Errorf("Empty slice should show '(no results)', got: %s", got)
	}
}

func TestRenderer_NoColor_DoesNotAffectJSON(t *testing.T) {
	// --no-color should not change JSON output
	var bufColor, bufNoColor bytes.Buffer

	rColor := NewRendererWithWriter(FormatJSON, false, &bufColor)
	rNoColor := NewRendererWithWriter(FormatJSON, true, &bufNoColor)

	data := map[string]string{"key": "value"}

	if err := rColor.Render(data); err != nil {
		t.Fatalf("Render with color failed: %v", err)
	}
	if err := rNoColor.Render(data); err != nil {
		t.Fatalf("Render without color failed: %v", err)
	}

	if bufColor.String() != bufNoColor.String() {
		t.Errorf("--no-color should not affect JSON output")
	}
}

type stubTable struct {
	rows [][]string
}

func (s stubTable) TableHeader() []string { return []string{"ID", "SIZE"} }
func (s stubTable) TableRows() [][]string { return s.rows }

func TestRenderer_Table_CustomRows(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	data := stubTable{rows: [][]string{{"cache", Bytes(2048)}}}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "ID") || !strings.Contains(got, "SIZE") {
		t.Errorf("Table output missing custom header: %s", got)
	}
	if !strings.Contains(got, "cache") || !strings.Contains(got, "2.0 kB") {
		t.Errorf("Table output missing custom row: %s", got)
	}
}

func TestRenderer_Table_CustomRowsEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	if err := r.Render(stubTable{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("empty table should show '(no results)', got: %s", buf.String())
	}
}

func TestRenderer_JSON_IgnoresTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)

	if err := r.Render(stubTable{rows: [][]string{{"a", "b"}}}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(buf.String(), "SIZE") {
		t.Errorf("JSON output should not use table header: %s", buf.String())
	}
}

func TestRenderer_Table_TimeAndDuration(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	type row struct {
		At   time.Time     `json:"at"`
		Took time.Duration `json:"took"`
	}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := r.Render(row{At: at, Took: 1500 * time.Millisecond}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "2026-03-01T12:00:00Z") {
		t.Errorf("time should render as RFC3339, got: %s", got)
	}
	if !strings.Contains(got, "1.5s") {
		t.Errorf("duration should render rounded, got: %s", got)
	}
}

func TestBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{512, "512 B"},
		{1_500_000, "1.5 MB"},
	}
	for _, tt := range tests {
		if got := Bytes(tt.in); got != tt.want {
			t.Errorf("Bytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
