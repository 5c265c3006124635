package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleYAML = `
apps:
  - id: acme-sync
    name: Acme Sync
    publisher: Acme Corp
    uninstaller: /opt/acme/uninstall.sh
    processes: [acme-sync, acme-helper]
    paths: [/opt/acme, ~/.acme]
  - id: zeta-notes
    name: Zeta Notes
    publisher: Zeta
  - id: beta-tool
    requires_elevation: true
`

func TestParse_YAML(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}

	app, ok := c.Lookup("ACME-SYNC")
	if !ok {
		t.Fatal("lookup should ignore case")
	}
	if app.Publisher != "Acme Corp" || len(app.Processes) != 2 || len(app.Paths) != 2 {
		t.Errorf("app = %+v", app)
	}

	apps := c.Apps()
	var order []string
	for _, a := range apps {
		order = append(order, a.DisplayName())
	}
	if strings.Join(order, ",") != "Acme Sync,beta-tool,Zeta Notes" {
		t.Errorf("order = %v", order)
	}
}

func TestParse_JSON(t *testing.T) {
	c, err := Parse([]byte(`{"apps":[{"id":"acme","name":"Acme","requires_elevation":true}]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	app, ok := c.Lookup("acme")
	if !ok || !app.RequiresElevation {
		t.Errorf("app = %+v, ok = %v", app, ok)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"missing id", "apps:\n  - name: Nameless\n", "id is required"},
		{"duplicate id", "apps:\n  - id: a\n  - id: A\n", "duplicate id"},
		{"not yaml", "apps: [", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := c.Require("zeta-notes"); err != nil {
		t.Errorf("Require: %v", err)
	}

	_, err = c.Require("acme")
	if !errors.Is(err, ErrUnknownApp) {
		t.Fatalf("err = %v, want ErrUnknownApp", err)
	}
	if !strings.Contains(err.Error(), "did you mean: acme-sync") {
		t.Errorf("err = %v, want a suggestion", err)
	}

	_, err = c.Require("nothing-like-it")
	if !errors.Is(err, ErrUnknownApp) || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("err = %v", err)
	}
}

func TestSearch(t *testing.T) {
	c, _ := Parse([]byte(sampleYAML))
	if got := c.Search("zeta"); len(got) != 1 || got[0].ID != "zeta-notes" {
		t.Errorf("Search(zeta) = %+v", got)
	}
	if got := c.Search("corp"); len(got) != 1 || got[0].ID != "acme-sync" {
		t.Errorf("Search(corp) = %+v", got)
	}
	if got := c.Search(""); len(got) != 3 {
		t.Errorf("Search(\"\") = %d apps", len(got))
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d", c.Len())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing file error = %v", err)
	}
}
