package form

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwalitptl/telehealth-admin/internal/forms"
	"github.com/jwalitptl/telehealth-admin/internal/model"
)

// DecodeFile reads a JSON or YAML form definition into untyped values ready
// for forms.ValidateSchema.
func DecodeFile(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, filepath.Ext(path))
}

// Decode parses data as YAML for ".yaml" and ".yml" and as JSON otherwise.
func Decode(data []byte, ext string) (interface{}, error) {
	var raw interface{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}
	return raw, nil
}

// SchemaFiles lists the form definitions in dir in name order.
func SchemaFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".json", ".yaml", ".yml":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// FileResult is the outcome of checking or loading one schema file.
type FileResult struct {
	Path   string             `json:"path"`
	Result forms.SchemaResult `json:"result"`
	Form   *model.Form        `json:"form,omitempty"`
	Err    error              `json:"-"`
}

// CheckFile validates a schema file without storing it.
func (s *Service) CheckFile(path string) FileResult {
	raw, err := DecodeFile(path)
	if err != nil {
		return FileResult{Path: path, Err: err}
	}
	return FileResult{Path: path, Result: s.ValidateSchema(raw)}
}

// Seed stores every valid schema in dir as a draft form, or as a published
// one when publish is set. Invalid files are reported and skipped.
func (s *Service) Seed(ctx context.Context, dir string, publish bool) ([]FileResult, error) {
	files, err := SchemaFiles(dir)
	if err != nil {
		return nil, err
	}
	results := make([]FileResult, 0, len(files))
	for _, path := range files {
		fr := s.CheckFile(path)
		if fr.Err != nil || !fr.Result.Valid {
			results = append(results, fr)
			continue
		}
		f, err := s.Create(ctx, &model.Form{Schema: *fr.Result.Schema})
		if err == nil && publish {
			f, err = s.Publish(ctx, f.ID)
		}
		fr.Form, fr.Err = f, err
		results = append(results, fr)
	}
	return results, nil
}
