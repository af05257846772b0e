// Package seed loads entity fixtures from YAML documents into a registered
// model set.
//
// Each document seeds one model:
//
//	model: user
//	entities:
//	  - id: u1
//	    name: Kate
//	  - id: u2
//	    name: Maria
//	    partner: u1
//
// Relation values are written as target primary keys (or key lists for
// to-many relations) and routed through the engine's relation apply, so
// seeded data gets the same inverse-consistency maintenance as data created
// programmatically. Documents are loaded in order; a fixture referencing an
// entity seeded later in the same file fails, so order fixtures
// dependencies-first.
package seed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mirage"
)

// File is one YAML document: a model name and its seed entities.
type File struct {
	// Model names the registered model the entities belong to.
	Model string `yaml:"model"`

	// Entities lists property maps passed to create, in order.
	Entities []map[string]any `yaml:"entities"`
}

// Load reads YAML documents from r and creates their entities.
// A reader may hold several documents separated by ---.
func Load(db *mirage.DB, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	for docIndex := 0; ; docIndex++ {
		var f File
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("seed: document %d: %w", docIndex, err)
		}
		if err := loadDocument(db, f); err != nil {
			return fmt.Errorf("seed: document %d: %w", docIndex, err)
		}
	}
}

// LoadFile loads one YAML fixture file.
func LoadFile(db *mirage.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	defer f.Close()

	if err := Load(db, f); err != nil {
		return fmt.Errorf("%w (file %s)", err, path)
	}
	return nil
}

// LoadDir loads every .yaml and .yml file in dir, in sorted name order.
// Prefix fixture files with numbers to control dependency order.
func LoadDir(db *mirage.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := LoadFile(db, path); err != nil {
			return err
		}
	}
	return nil
}

func loadDocument(db *mirage.DB, f File) error {
	if f.Model == "" {
		return fmt.Errorf("document has no model name")
	}
	handle, err := db.Model(f.Model)
	if err != nil {
		return err
	}

	for i, values := range f.Entities {
		if _, err := handle.Create(values); err != nil {
			return fmt.Errorf("entity %d of model %s: %w", i, f.Model, err)
		}
	}
	return nil
}
