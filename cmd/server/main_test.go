package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/simp-lee/layover/internal/module/console"
)

func writeConfig(t *testing.T, addonRoute string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`server:
  host: "127.0.0.1"
  port: 8080
  mode: "test"
database:
  driver: "sqlite"
  auto_migrate: true
  sqlite:
    path: %q
log:
  level: "error"
  format: "text"
addons:
  items:
    - name: "browse"
      sections:
        - route: %q
          template_href: "browse/list.html"
          controller: "BrowseCtl"
`, filepath.Join(dir, "layover.db"), addonRoute)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoutesCmd_Text(t *testing.T) {
	out, err := runRoot(t, "routes", "--config", writeConfig(t, "/browse"))
	if err != nil {
		t.Fatalf("routes error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 15 {
		t.Fatalf("got %d lines, want header, 13 rules and fallback:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "SOURCE") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "addon:browse") || !strings.Contains(lines[1], "cp/layover/browse/list.html") {
		t.Errorf("first rule = %q, want the addon rule", lines[1])
	}
	if !strings.HasPrefix(lines[14], "otherwise") || !strings.Contains(lines[14], "-> /remote") {
		t.Errorf("last line = %q, want the fallback", lines[14])
	}
}

func TestRoutesCmd_JSON(t *testing.T) {
	out, err := runRoot(t, "routes", "-c", writeConfig(t, "/browse"), "--format", "json")
	if err != nil {
		t.Fatalf("routes error = %v", err)
	}

	var listing console.Listing
	if err := json.Unmarshal([]byte(out), &listing); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if len(listing.Rules) != 13 {
		t.Fatalf("len(rules) = %d, want 13", len(listing.Rules))
	}
	if got := listing.Rules[0]; got.Path != "/browse" || got.ControllerRef != "BrowseCtl" {
		t.Errorf("rules[0] = %+v", got)
	}
	if listing.Fallback == nil || listing.Fallback.RedirectTo != "/remote" {
		t.Errorf("fallback = %+v", listing.Fallback)
	}
}

func TestRoutesCmd_YAML(t *testing.T) {
	out, err := runRoot(t, "routes", "-c", writeConfig(t, "/browse"), "-f", "yaml")
	if err != nil {
		t.Fatalf("routes error = %v", err)
	}

	var doc struct {
		Rules []struct {
			Path   string `yaml:"path"`
			Source string `yaml:"source"`
		} `yaml:"rules"`
		Fallback struct {
			RedirectTo string `yaml:"redirect_to"`
		} `yaml:"fallback"`
	}
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, out)
	}
	if len(doc.Rules) != 13 || doc.Rules[12].Path != "/group/edit/:name" || doc.Rules[12].Source != "builtin" {
		t.Errorf("rules = %+v", doc.Rules)
	}
	if doc.Fallback.RedirectTo != "/remote" {
		t.Errorf("fallback = %+v", doc.Fallback)
	}
}

func TestRoutesCmd_ReportsCollisions(t *testing.T) {
	out, err := runRoot(t, "routes", "-c", writeConfig(t, "/hosted/new"))
	if err == nil {
		t.Fatal("expected a collision error")
	}
	if !strings.Contains(err.Error(), "collides") {
		t.Errorf("error = %v, want collision", err)
	}
	if !strings.Contains(out, "addon:browse") {
		t.Errorf("table should still be printed, got:\n%s", out)
	}
}

func TestRoutesCmd_ReportsReservedPrefix(t *testing.T) {
	_, err := runRoot(t, "routes", "-c", writeConfig(t, "/static/browse"))
	if err == nil || !strings.Contains(err.Error(), "reserved prefix") {
		t.Fatalf("error = %v, want reserved prefix", err)
	}
}

func TestRoutesCmd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown format", []string{"routes", "-c", writeConfig(t, "/browse"), "-f", "xml"}, "unknown format"},
		{"missing config", []string{"routes", "-c", filepath.Join(t.TempDir(), "missing.yaml")}, "failed to load config"},
		{"extra args", []string{"routes", "extra"}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runRoot(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestServe_ConfigError(t *testing.T) {
	_, err := runRoot(t, "serve", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Fatalf("error = %v, want config load failure", err)
	}
}
