// Package catalog loads the inventory of removable applications.
//
// The inventory is a YAML (or JSON) document listing the applications the
// worker knows how to remove. The orchestrator uses it to list targets and
// to reject unknown targets before a worker is spawned; the worker receives
// the same file path and reads it independently.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownApp is returned by Require for an id not in the inventory.
var ErrUnknownApp = errors.New("unknown application")

// App is one removable application.
type App struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	Publisher string `yaml:"publisher,omitempty" json:"publisher,omitempty"`
	Version   string `yaml:"version,omitempty" json:"version,omitempty"`
	// Uninstaller is the vendor uninstall command run in DefaultUninstall.
	Uninstaller string `yaml:"uninstaller,omitempty" json:"uninstaller,omitempty"`
	// Processes are process names stopped in ProcessSweep.
	Processes []string `yaml:"processes,omitempty" json:"processes,omitempty"`
	// Paths are locations searched in ArtifactDiscovery.
	Paths []string `yaml:"paths,omitempty" json:"paths,omitempty"`
	// RequiresElevation marks apps that need elevated privilege to remove.
	RequiresElevation bool `yaml:"requires_elevation,omitempty" json:"requires_elevation,omitempty"`
}

// DisplayName returns Name, or ID when Name is empty.
func (a App) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// document is the on-disk shape.
type document struct {
	Apps []App `yaml:"apps"`
}

// Catalog is a validated, immutable inventory.
type Catalog struct {
	apps []App
	byID map[string]int
}

// Load reads and parses an inventory file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("inventory file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read inventory file %q: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid inventory %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes an inventory document. JSON is accepted as a YAML subset.
// Ids are matched case-insensitively and must be unique.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	c := &Catalog{byID: make(map[string]int, len(doc.Apps))}
	for i, app := range doc.Apps {
		app.ID = strings.TrimSpace(app.ID)
		if app.ID == "" {
			return nil, fmt.Errorf("apps[%d]: id is required", i)
		}
		key := strings.ToLower(app.ID)
		if prev, dup := c.byID[key]; dup {
			return nil, fmt.Errorf("apps[%d]: duplicate id %q (first at apps[%d])", i, app.ID, prev)
		}
		c.byID[key] = len(c.apps)
		c.apps = append(c.apps, app)
	}
	return c, nil
}

// Len returns the number of apps.
func (c *Catalog) Len() int {
	return len(c.apps)
}

// Lookup finds an app by id, ignoring case.
func (c *Catalog) Lookup(id string) (App, bool) {
	i, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return App{}, false
	}
	return c.apps[i], true
}

// Require is Lookup returning ErrUnknownApp with suggestions.
func (c *Catalog) Require(id string) (App, error) {
	if app, ok := c.Lookup(id); ok {
		return app, nil
	}
	if similar := c.Search(id); len(similar) > 0 {
		ids := make([]string, 0, len(similar))
		for _, a := range similar {
			ids = append(ids, a.ID)
		}
		return App{}, fmt.Errorf("%w %q (did you mean: %s)", ErrUnknownApp, id, strings.Join(ids, ", "))
	}
	return App{}, fmt.Errorf("%w %q", ErrUnknownApp, id)
}

// Apps returns every app sorted by display name.
func (c *Catalog) Apps() []App {
	out := append([]App(nil), c.apps...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].DisplayName()) < strings.ToLower(out[j].DisplayName())
	})
	return out
}

// Search returns apps whose id, name or publisher contains query, ignoring
// case, sorted by display name. An empty query matches everything.
func (c *Catalog) Search(query string) []App {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []App
	for _, app := range c.Apps() {
		if q == "" ||
			strings.Contains(strings.ToLower(app.ID), q) ||
			strings.Contains(strings.ToLower(app.Name), q) ||
			strings.Contains(strings.ToLower(app.Publisher), q) {
			out = append(out, app)
		}
	}
	return out
}
