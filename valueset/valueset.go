// Package valueset loads the eHN reference value sets that map short codes
// in a certificate to human-readable metadata. Loading is best-effort: a
// missing or unreadable set never prevents a certificate from decoding.
package valueset

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Value is the display metadata attached to a single code.
type Value struct {
	Display string `json:"display"`
	Lang    string `json:"lang"`
	Active  bool   `json:"active"`
	Version string `json:"version"`
	System  string `json:"system"`
}

// Set is one versioned value-set file.
type Set struct {
	ID     string           `json:"valueSetId"`
	Date   string           `json:"valueSetDate"`
	Values map[string]Value `json:"valueSetValues"`
}

// Load reads a single value-set JSON file.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var set Set
	if err := json.NewDecoder(f).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode value set %s: %w", path, err)
	}
	return &set, nil
}

// Kind names the coded-field categories a certificate refers to.
type Kind int

const (
	DiseaseAgent Kind = iota
	VaccineProphylaxis
	MedicinalProduct
	Manufacturer
)

// File names as published in the eHN value-set repository.
var fileNames = map[Kind]string{
	DiseaseAgent:       "disease-agent-targeted.json",
	VaccineProphylaxis: "vaccine-prophylaxis.json",
	MedicinalProduct:   "vaccine-medicinal-product.json",
	Manufacturer:       "vaccine-mah-manf.json",
}

// Registry holds the loaded sets. Any entry may be nil when its file was
// absent; resolution then degrades to the raw code.
type Registry struct {
	sets map[Kind]*Set
}

// LoadRegistry loads the well-known set files from dir. Files that are
// missing or malformed are logged and skipped.
func LoadRegistry(dir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	reg := &Registry{sets: make(map[Kind]*Set)}
	for kind, name := range fileNames {
		set, err := Load(filepath.Join(dir, name))
		if err != nil {
			logger.Error("failed to load value set", "file", name, "err", err)
			continue
		}
		logger.Debug("loaded value set", "file", name, "id", set.ID, "entries", len(set.Values))
		reg.sets[kind] = set
	}
	return reg
}

// Resolve returns the metadata for code in the given set, or nil when the
// set is unavailable or does not know the code.
func (r *Registry) Resolve(kind Kind, code string) *Value {
	if r == nil {
		return nil
	}
	set := r.sets[kind]
	if set == nil {
		return nil
	}
	if v, ok := set.Values[code]; ok {
		return &v
	}
	return nil
}
