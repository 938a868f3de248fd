package service

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// RenderError indicates a template could not be rendered or written.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render template to %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// renderTemplate renders the named embedded template with data and writes the
// result to dest, creating parent directories as needed.
func renderTemplate(name, dest string, data any) error {
	tmpl, err := template.ParseFS(templatesFS, filepath.Join("templates", name))
	if err != nil {
		return &RenderError{Path: dest, Err: err}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return &RenderError{Path: dest, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &RenderError{Path: dest, Err: err}
	}
	if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
		return &RenderError{Path: dest, Err: err}
	}
	return nil
}

// removeFile deletes the file at path; a missing file is not an error.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
