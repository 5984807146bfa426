// Package views renders the human-readable status page.
package views

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"strings"

	"tempstation/internal/status"
)

//go:embed templates/*.html
var viewsFS embed.FS

var statusTmpl *template.Template

var funcs = template.FuncMap{"join": strings.Join}

func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	t, err := template.New("status").Funcs(funcs).ParseFS(sub, "*.html")
	if err != nil {
		return err
	}
	statusTmpl = t
	return nil
}

// LoadTemplates parses the embedded templates. Call it once before serving.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

type StatusPage struct {
	Snapshot       status.Snapshot
	RefreshSeconds int
}

func RenderStatus(w io.Writer, data *StatusPage) error {
	if statusTmpl == nil {
		return errors.New("status template not loaded: call views.LoadTemplates during startup")
	}
	return statusTmpl.ExecuteTemplate(w, "status.html", data)
}
