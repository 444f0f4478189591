package commands

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mraysmit/apex-sub000/internal/engine"
)

// walkYAMLFiles returns every *.yaml/*.yml path under dir, relative to
// dir, in sorted order.
func walkYAMLFiles(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			rel = path
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// loadTree loads every YAML file under configDir into e, so route/evaluate
// have every dataset/scenario/scenario-registry/rule-config file available
// without the caller having to name them individually.
func loadTree(e *engine.Engine) error {
	paths, err := walkYAMLFiles(configDir)
	if err != nil {
		return err
	}
	for _, rel := range paths {
		if _, err := e.LoadConfig(rel); err != nil {
			return fmt.Errorf("loading %s: %w", rel, err)
		}
	}
	return nil
}
