package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"promptvault/internal/access"
	"promptvault/internal/schema"
)

// promptFile is the on-disk YAML shape of one prompt library entry.
// Definition and discovery metadata live side by side in a single document.
type promptFile struct {
	ID              string                 `yaml:"id"`
	Version         string                 `yaml:"version"`
	Name            string                 `yaml:"name"`
	Description     string                 `yaml:"description"`
	Tags            []string               `yaml:"tags"`
	Author          string                 `yaml:"author"`
	Owner           string                 `yaml:"owner"`
	Template        string                 `yaml:"template"`
	Inputs          map[string]schema.Spec `yaml:"inputs"`
	Dependencies    []string               `yaml:"dependencies"`
	OutputSchema    map[string]any         `yaml:"outputSchema"`
	Access          access.Policy          `yaml:"access"`
	DefaultProvider string                 `yaml:"defaultProvider"`
	Settings        map[string]any         `yaml:"settings"`
	AverageRating   float64                `yaml:"averageRating"`
}

// LoadDir builds a MemVault from every .yaml/.yml file directly under dir.
// File order is sorted for deterministic latest-alias resolution when a
// prompt id appears in multiple files.
func LoadDir(dir string) (*MemVault, error) {
	names, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read prompt library %s: %w", dir, err)
	}

	var files []string
	for _, e := range names {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	v := NewMemVault()
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := loadFile(v, path); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func loadFile(v *MemVault, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}

	var pf promptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse prompt file %s: %w", path, err)
	}
	if pf.ID == "" {
		return fmt.Errorf("prompt file %s: missing id", path)
	}
	if pf.Access.Type == "" {
		pf.Access.Type = access.Public
	}
	if pf.Name == "" {
		pf.Name = pf.ID
	}

	def := &Definition{
		ID:              pf.ID,
		Version:         pf.Version,
		Template:        pf.Template,
		Inputs:          pf.Inputs,
		Dependencies:    pf.Dependencies,
		OutputSchema:    pf.OutputSchema,
		Access:          pf.Access,
		Owner:           pf.Owner,
		DefaultProvider: pf.DefaultProvider,
		Settings:        pf.Settings,
	}
	meta := &Metadata{
		Name:          pf.Name,
		Description:   pf.Description,
		Tags:          pf.Tags,
		Author:        pf.Author,
		AverageRating: pf.AverageRating,
	}
	if err := v.Put(def, meta); err != nil {
		return fmt.Errorf("prompt file %s: %w", path, err)
	}
	return nil
}
