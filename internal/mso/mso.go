// Package mso holds the static table of TV provider profiles.
package mso

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"mvpdauth/internal/models"
)

//go:embed providers.yaml
var providersYAML []byte

type table struct {
	Providers []models.ProviderProfile `yaml:"providers"`
}

var load = sync.OnceValues(func() (map[string]models.ProviderProfile, error) {
	var t table
	if err := yaml.Unmarshal(providersYAML, &t); err != nil {
		return nil, fmt.Errorf("parsing provider table: %w", err)
	}
	byID := make(map[string]models.ProviderProfile, len(t.Providers))
	for _, p := range t.Providers {
		if p.ID == "" {
			return nil, fmt.Errorf("provider table entry %q has no id", p.DisplayName)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", p.ID)
		}
		byID[p.ID] = p
	}
	return byID, nil
})

// UnknownProviderError is returned by Lookup for ids missing from the table.
type UnknownProviderError struct {
	ID string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown TV provider %q", e.ID)
}

// Lookup returns the profile registered under id. Ids are case-sensitive.
func Lookup(id string) (models.ProviderProfile, error) {
	byID, err := load()
	if err != nil {
		return models.ProviderProfile{}, err
	}
	p, ok := byID[id]
	if !ok {
		return models.ProviderProfile{}, &UnknownProviderError{ID: id}
	}
	return p, nil
}

// List returns every profile sorted by display name, optionally filtered by a
// case-insensitive substring of the id or name.
func List(filter string) ([]models.ProviderProfile, error) {
	byID, err := load()
	if err != nil {
		return nil, err
	}
	filter = strings.ToLower(strings.TrimSpace(filter))
	out := make([]models.ProviderProfile, 0, len(byID))
	for _, p := range byID {
		if filter != "" &&
			!strings.Contains(strings.ToLower(p.ID), filter) &&
			!strings.Contains(strings.ToLower(p.DisplayName), filter) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName == out[j].DisplayName {
			return out[i].ID < out[j].ID
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out, nil
}
