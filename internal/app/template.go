package app

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"slices"
	"strings"

	"github.com/gin-gonic/gin/render"
)

const templateRoot = "templates"

// sharedDirs hold the layouts and partials every page is parsed on top of.
var sharedDirs = []string{"layouts", "partials"}

// pageSet maps a page name relative to templates/ (e.g. "console/view.html")
// to its compiled template.
type pageSet map[string]*template.Template

// TemplateRenderer is the gin HTML renderer for console pages. A page calls
// {{ template "base" . }} and fills the layout's blocks; each page gets its
// own clone of the shared set so block overrides do not leak between pages.
//
// With reload set, pages are parsed again on every render.
type TemplateRenderer struct {
	fsys   fs.FS
	funcs  template.FuncMap
	reload bool
	pages  pageSet
}

var _ render.HTMLRender = (*TemplateRenderer)(nil)

// NewTemplateRenderer creates a renderer over the templates/ tree of fsys.
// Outside debug mode every page is parsed up front and the first parse
// error is returned.
func NewTemplateRenderer(fsys fs.FS, debug bool) (*TemplateRenderer, error) {
	r := &TemplateRenderer{fsys: fsys, funcs: templateFuncMap(), reload: debug}
	if debug {
		return r, nil
	}

	pages, err := r.load()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.pages = pages
	return r, nil
}

// Instance implements render.HTMLRender.
func (r *TemplateRenderer) Instance(name string, data any) render.Render {
	pages := r.pages
	if r.reload {
		var err error
		if pages, err = r.load(); err != nil {
			return &HTMLInstance{Name: name, err: err}
		}
	}
	return &HTMLInstance{Template: pages[name], Name: name, Data: data}
}

func (r *TemplateRenderer) load() (pageSet, error) {
	shared, err := r.sharedSet()
	if err != nil {
		return nil, err
	}

	names, err := pageNames(r.fsys)
	if err != nil {
		return nil, fmt.Errorf("discover pages: %w", err)
	}

	pages := make(pageSet, len(names))
	for _, name := range names {
		page, err := shared.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone shared set for %s: %w", name, err)
		}
		if err := parseFile(page, r.fsys, path.Join(templateRoot, name), name); err != nil {
			return nil, err
		}
		pages[name] = page
	}
	return pages, nil
}

func (r *TemplateRenderer) sharedSet() (*template.Template, error) {
	set := template.New("").Funcs(r.funcs)
	for _, dir := range sharedDirs {
		files, err := fs.Glob(r.fsys, path.Join(templateRoot, dir, "*.html"))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", dir, err)
		}
		for _, f := range files {
			if err := parseFile(set, r.fsys, f, f); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

func parseFile(set *template.Template, fsys fs.FS, file, name string) error {
	content, err := fs.ReadFile(fsys, file)
	if err != nil {
		return fmt.Errorf("read %s: %w", file, err)
	}
	if _, err := set.New(name).Parse(string(content)); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	return nil
}

// pageNames lists the .html files under templates/ outside the shared
// directories, relative to templates/.
func pageNames(fsys fs.FS) ([]string, error) {
	var names []string
	err := fs.WalkDir(fsys, templateRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(p, templateRoot+"/")
		if d.IsDir() {
			if slices.Contains(sharedDirs, rel) {
				return fs.SkipDir
			}
			return nil
		}
		if path.Ext(p) == ".html" {
			names = append(names, rel)
		}
		return nil
	})
	return names, err
}

func templateFuncMap() template.FuncMap {
	return template.FuncMap{
		// json embeds v in a script context, e.g. a data-params attribute read
		// by the view loader.
		"json": func(v any) template.JS {
			b, err := json.Marshal(v)
			if err != nil {
				return template.JS("null")
			}
			return template.JS(b)
		},

		// active reports whether path is inside the nav section rooted at section.
		"active": func(path, section string) bool {
			return path == section || strings.HasPrefix(path, section+"/")
		},

		"sourceLabel": func(source string) string {
			if name, ok := strings.CutPrefix(source, "addon:"); ok {
				return name
			}
			return source
		},
	}
}

const htmlContentType = "text/html; charset=utf-8"

// HTMLInstance is one page execution returned by TemplateRenderer.Instance.
type HTMLInstance struct {
	Template *template.Template
	Name     string
	Data     any
	err      error
}

// Render executes the page into w. A failed reload or an unknown page name
// is reported as an error.
func (h *HTMLInstance) Render(w http.ResponseWriter) error {
	h.WriteContentType(w)
	switch {
	case h.err != nil:
		return h.err
	case h.Template == nil:
		return fmt.Errorf("template %q not found", h.Name)
	}
	return h.Template.ExecuteTemplate(w, h.Name, h.Data)
}

// WriteContentType sets an HTML content type unless one is already present.
func (h *HTMLInstance) WriteContentType(w http.ResponseWriter) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", htmlContentType)
	}
}
