package app

import (
	"fmt"
	"html/template"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/layover/internal/module/console"
	"github.com/simp-lee/layover/web"
)

// testFS mirrors the web/templates layout with one console page and one
// error page.
func testFS() fstest.MapFS {
	return fstest.MapFS{
		"templates/layouts/base.html": &fstest.MapFile{
			Data: []byte(
				`{{ define "base" }}<!DOCTYPE html><html>` +
					`<head><title>{{ block "title" . }}Default{{ end }}</title></head>` +
					`<body>{{ block "navbar" . }}{{ end }}{{ block "content" . }}{{ end }}</body>` +
					`</html>{{ end }}`),
		},
		"templates/partials/nav.html": &fstest.MapFile{
			Data: []byte(`{{ define "nav" }}<nav>{{ if active . "/remote" }}remote{{ else }}other{{ end }}</nav>{{ end }}`),
		},
		"templates/console/view.html": &fstest.MapFile{
			Data: []byte(
				`{{ template "base" . }}` +
					`{{ define "title" }}{{ .Title }}{{ end }}` +
					`{{ define "navbar" }}{{ template "nav" .Path }}{{ end }}` +
					`{{ define "content" }}<section data-template="{{ .TemplateURL }}">{{ sourceLabel .Source }}</section>{{ end }}`),
		},
		"templates/errors/404.html": &fstest.MapFile{
			Data: []byte(
				`{{ template "base" . }}` +
					`{{ define "title" }}Not Found{{ end }}` +
					`{{ define "content" }}<h1>404 Not Found</h1>{{ end }}`),
		},
	}
}

func TestTemplateFuncMap(t *testing.T) {
	funcs := templateFuncMap()

	t.Run("json", func(t *testing.T) {
		fn := funcs["json"].(func(any) template.JS)
		if got := fn(map[string]string{"name": "npm-proxy"}); got != `{"name":"npm-proxy"}` {
			t.Errorf("json() = %q", got)
		}
		if got := fn(make(chan int)); got != "null" {
			t.Errorf("json(unmarshalable) = %q, want null", got)
		}
	})

	t.Run("active", func(t *testing.T) {
		fn := funcs["active"].(func(string, string) bool)
		tests := []struct {
			path, section string
			want          bool
		}{
			{"/remote", "/remote", true},
			{"/remote/view/:name", "/remote", true},
			{"/remotes", "/remote", false},
			{"", "/remote", false},
		}
		for _, tt := range tests {
			if got := fn(tt.path, tt.section); got != tt.want {
				t.Errorf("active(%q, %q) = %v, want %v", tt.path, tt.section, got, tt.want)
			}
		}
	})

	t.Run("sourceLabel", func(t *testing.T) {
		fn := funcs["sourceLabel"].(func(string) string)
		for in, want := range map[string]string{
			"builtin":      "builtin",
			"addon:browse": "browse",
			"addon":        "addon",
			"addon:":       "",
		} {
			if got := fn(in); got != want {
				t.Errorf("sourceLabel(%q) = %q, want %q", in, got, want)
			}
		}
	})
}

func TestNewTemplateRenderer_Release(t *testing.T) {
	r, err := NewTemplateRenderer(testFS(), false)
	if err != nil {
		t.Fatalf("NewTemplateRenderer() error: %v", err)
	}
	if r.reload {
		t.Error("expected reload=false")
	}
	for _, name := range []string{"console/view.html", "errors/404.html"} {
		if _, ok := r.pages[name]; !ok {
			t.Errorf("expected template %q to be loaded", name)
		}
	}
}

func TestNewTemplateRenderer_Debug(t *testing.T) {
	r, err := NewTemplateRenderer(testFS(), true)
	if err != nil {
		t.Fatalf("NewTemplateRenderer() error: %v", err)
	}
	if r.pages != nil {
		t.Error("pages should not be parsed up front in debug mode")
	}
}

func TestNewTemplateRenderer_InvalidTemplate(t *testing.T) {
	badFS := fstest.MapFS{
		"templates/layouts/base.html": &fstest.MapFile{Data: []byte(`{{ define "base" }}{{ end }}`)},
		"templates/bad/page.html":     &fstest.MapFile{Data: []byte(`{{ invalid_syntax `)},
	}
	if _, err := NewTemplateRenderer(badFS, false); err == nil {
		t.Fatal("expected error for invalid template syntax")
	}
}

func TestTemplateRenderer_RendersConsoleView(t *testing.T) {
	for _, debug := range []bool{false, true} {
		t.Run(fmt.Sprintf("debug=%v", debug), func(t *testing.T) {
			r, err := NewTemplateRenderer(testFS(), debug)
			if err != nil {
				t.Fatalf("NewTemplateRenderer() error: %v", err)
			}

			inst := r.Instance("console/view.html", console.ViewData{
				Title:       "Layover",
				Path:        "/remote/view/:name",
				TemplateURL: "/partials/remote-detail.html",
				Source:      "builtin",
			})
			w := httptest.NewRecorder()
			if err := inst.Render(w); err != nil {
				t.Fatalf("Render() error: %v", err)
			}

			body := w.Body.String()
			for _, want := range []string{
				"<title>Layover</title>",
				"<nav>remote</nav>",
				`data-template="/partials/remote-detail.html"`,
				">builtin</section>",
			} {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q:\n%s", want, body)
				}
			}
		})
	}
}

func TestTemplateRenderer_Instance_NotFound(t *testing.T) {
	r, err := NewTemplateRenderer(testFS(), false)
	if err != nil {
		t.Fatalf("NewTemplateRenderer() error: %v", err)
	}
	if err := r.Instance("nonexistent.html", nil).Render(httptest.NewRecorder()); err == nil {
		t.Error("Render() should return error for nonexistent template")
	}
}

// The shipped templates must parse and render with the data each caller
// passes.
func TestEmbeddedTemplates(t *testing.T) {
	r, err := NewTemplateRenderer(web.EmbeddedFS, false)
	if err != nil {
		t.Fatalf("NewTemplateRenderer(web.EmbeddedFS) error: %v", err)
	}

	tests := []struct {
		name  string
		data  any
		wants []string
	}{
		{
			name: console.ViewTemplate,
			data: console.ViewData{
				Title:       "Layover",
				Path:        "/browse/:name",
				TemplateURL: "/cp/layover/browse/file.html",
				Controller:  "BrowseFileCtl",
				Source:      "addon:browse",
				Params:      map[string]string{"name": "readme"},
			},
			wants: []string{
				"<title>Layover</title>",
				`data-template="/cp/layover/browse/file.html"`,
				`data-controller="BrowseFileCtl"`,
				"Served by browse",
				"/static/js/console.js",
			},
		},
		{
			name:  "errors/404.html",
			data:  errorPage{Code: 404, Message: "not found", Path: "/missing"},
			wants: []string{"404", "<code>/missing</code>"},
		},
		{
			name:  "errors/400.html",
			data:  errorPage{Code: 400, Message: "bad position"},
			wants: []string{"bad position"},
		},
		{
			name:  "errors/500.html",
			data:  gin.H{},
			wants: []string{"500"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			if err := r.Instance(tt.name, tt.data).Render(w); err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			body := w.Body.String()
			for _, want := range tt.wants {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q:\n%s", want, body)
				}
			}
		})
	}
}

func TestHTMLInstance_WriteContentType(t *testing.T) {
	w := httptest.NewRecorder()
	(&HTMLInstance{}).WriteContentType(w)
	if got := w.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}

	w = httptest.NewRecorder()
	w.Header().Set("Content-Type", "application/json")
	(&HTMLInstance{}).WriteContentType(w)
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type should not be overwritten; got %q", got)
	}
}

func TestHTMLInstance_Render_ParseError(t *testing.T) {
	err := (&HTMLInstance{err: fmt.Errorf("parse error")}).Render(httptest.NewRecorder())
	if err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Fatalf("Render() error = %v, want parse error", err)
	}
}

func TestPageNames(t *testing.T) {
	names, err := pageNames(testFS())
	if err != nil {
		t.Fatalf("pageNames() error: %v", err)
	}
	want := []string{"console/view.html", "errors/404.html"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("pageNames() = %v, want %v", names, want)
	}
}
