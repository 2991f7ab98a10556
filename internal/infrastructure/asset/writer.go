package asset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quiz-report/internal/domain"
)

// FSWriter persists rendered reports under OutputDir.
type FSWriter struct {
	OutputDir string
}

func NewFSWriter(outputDir string) *FSWriter {
	return &FSWriter{OutputDir: outputDir}
}

// Write stores data under name and returns the path it was written to.
// The file appears atomically: a failed write leaves nothing behind, and a
// concurrent write of the same name replaces it whole.
func (w *FSWriter) Write(name string, data []byte) (string, error) {
	if !isPlainName(name) {
		return "", fmt.Errorf("invalid report name %q", name)
	}
	if err := os.MkdirAll(w.OutputDir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(w.OutputDir, "."+name+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	out := filepath.Join(w.OutputDir, name)
	if err := os.Rename(tmp.Name(), out); err != nil {
		return "", err
	}
	return out, nil
}

// Open resolves name inside OutputDir for serving. Names that would escape
// the directory are reported as not found.
func (w *FSWriter) Open(name string) (string, bool) {
	name = strings.TrimPrefix(name, "/")
	if !isPlainName(name) {
		return "", false
	}
	p := filepath.Join(w.OutputDir, name)
	fi, err := os.Stat(p)
	if err != nil || fi.IsDir() {
		return "", false
	}
	return p, true
}

// ArchetypeImages looks up optional archetype artwork as <key>.png under Dir.
// Every lookup hits the filesystem so newly dropped images are picked up.
type ArchetypeImages struct {
	Dir string
}

func NewArchetypeImages(dir string) *ArchetypeImages {
	return &ArchetypeImages{Dir: dir}
}

func (a *ArchetypeImages) Lookup(archetype string) (string, bool) {
	key := domain.ArchetypeKey(archetype)
	if key == "" || strings.ContainsAny(key, `/\`) || !isPlainName(key+".png") {
		return "", false
	}
	p := filepath.Join(a.Dir, key+".png")
	fi, err := os.Stat(p)
	if err != nil || fi.IsDir() {
		return "", false
	}
	return p, true
}

// isPlainName reports whether name is a single path element inside its
// directory. Dots inside a name ("J..Doe_x.pdf") are fine.
func isPlainName(name string) bool {
	return name != "" && name != "." && name != ".." && name == filepath.Base(name)
}
