package nextjs

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"sync"
)

// default filename extensions for template files
var defaultExts = []string{".html", ".gohtml", ".tpl", ".tmpl"}

// Views renders named templates. It has the shape of fiber.Views, so a
// Fiber app and a Bridge can share one engine.
type Views interface {
	Load() error
	Render(io.Writer, string, interface{}, ...string) error
}

var errNotLoaded = errors.New("templates not loaded")

// Templates is an html/template engine reading every template file of an
// fs.FS. Templates are named by their slash-separated path.
//
// A layout, when given to Render, is executed with the same data and can
// place the view with {{ embed }}.
type Templates struct {
	fsys  fs.FS
	exts  []string
	funcs template.FuncMap

	mu sync.RWMutex
	// base is never executed so it can be cloned for layouts.
	base *template.Template
	exec *template.Template
}

// NewTemplates creates an engine over fsys. exts defaults to .html, .gohtml,
// .tpl and .tmpl.
func NewTemplates(fsys fs.FS, exts ...string) *Templates {
	if len(exts) == 0 {
		exts = defaultExts
	}
	return &Templates{
		fsys: fsys,
		exts: exts,
		funcs: template.FuncMap{
			"embed": func() template.HTML { return "" },
		},
	}
}

// AddFunc registers a template function. It must be called before Load.
func (t *Templates) AddFunc(name string, fn interface{}) *Templates {
	t.funcs[name] = fn
	return t
}

// Load implements Views.
func (t *Templates) Load() error {
	base := template.New("").Funcs(t.funcs)

	err := fs.WalkDir(t.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		// skip hidden files and directories.
		if strings.HasPrefix(d.Name(), ".") && d.Name() != "." {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() || !validExt(t.exts, path.Ext(p)) {
			return nil
		}

		b, err := fs.ReadFile(t.fsys, p)
		if err != nil {
			return fmt.Errorf("error reading file: %w", err)
		}
		if _, err := base.New(p).Parse(string(b)); err != nil {
			return fmt.Errorf("error parsing template '%s': %w", p, err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error loading templates: %w", err)
	}

	exec, err := base.Clone()
	if err != nil {
		return fmt.Errorf("error loading templates: %w", err)
	}

	t.mu.Lock()
	t.base, t.exec = base, exec
	t.mu.Unlock()
	return nil
}

// Render implements Views.
func (t *Templates) Render(w io.Writer, name string, data interface{}, layout ...string) error {
	t.mu.RLock()
	base, exec := t.base, t.exec
	t.mu.RUnlock()
	if exec == nil {
		return errNotLoaded
	}

	if len(layout) == 0 || layout[0] == "" {
		if err := exec.ExecuteTemplate(w, name, data); err != nil {
			return fmt.Errorf("error rendering '%s': %w", name, err)
		}
		return nil
	}

	var buf bytes.Buffer
	if err := exec.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("error rendering '%s': %w", name, err)
	}

	l, err := base.Clone()
	if err != nil {
		return fmt.Errorf("error creating layout for view '%s': %w", name, err)
	}
	l.Funcs(template.FuncMap{
		"embed": func() template.HTML { return template.HTML(buf.String()) },
	})
	if err := l.ExecuteTemplate(w, layout[0], data); err != nil {
		return fmt.Errorf("error rendering layout '%s' with view '%s': %w", layout[0], name, err)
	}
	return nil
}

func validExt(exts []string, ext string) bool {
	for _, e := range exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
