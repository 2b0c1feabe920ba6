// Package project loads and saves the project JSON file. The file carries
// the function graph plus canvas positions; positions are an opaque side map
// keyed by unique ID and never reach the generation service.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
)

// FormatVersion is the on-disk format version written by this build.
const FormatVersion = 1

// Position is a canvas coordinate for one function node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// File is the on-disk envelope.
type File struct {
	Version   int                 `json:"version"`
	Project   *model.Project      `json:"project"`
	Positions map[string]Position `json:"positions,omitempty"`
}

// Load reads a project file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal project %s: %w", path, err)
	}
	if f.Version > FormatVersion {
		return nil, fmt.Errorf("project %s: format version %d is newer than supported %d", path, f.Version, FormatVersion)
	}
	if f.Project == nil {
		return nil, fmt.Errorf("project %s: missing project object", path)
	}
	if f.Positions == nil {
		f.Positions = make(map[string]Position)
	}
	return &f, nil
}

// Save writes a project file atomically: the content lands in a temp file in
// the same directory and is renamed into place, so a crash never leaves a
// half-written project.
func Save(path string, f *File) error {
	f.Version = FormatVersion

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".project-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write project: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace project %s: %w", path, err)
	}
	return nil
}

// NewFile wraps a project for saving, preserving the given positions.
func NewFile(p *model.Project, positions map[string]Position) *File {
	if positions == nil {
		positions = make(map[string]Position)
	}
	return &File{
		Version:   FormatVersion,
		Project:   p,
		Positions: positions,
	}
}
