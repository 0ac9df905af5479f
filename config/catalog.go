// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/poiesic/screener/core"
)

// DefaultDataset is the collection used when a request names no dataset.
const DefaultDataset = "default"

type datasetDefinition struct {
	Name     string   `yaml:"name"`
	Title    string   `yaml:"title"`
	Children []string `yaml:"children"`
}

type manifest struct {
	Datasets []datasetDefinition `yaml:"datasets"`
}

// Catalog resolves dataset names to their scope of leaf datasets.
// It is immutable once loaded.
type Catalog struct {
	datasets map[string]*core.Dataset
}

// NewDefaultCatalog returns a catalog holding only the default collection.
// Its scope is empty, which places no dataset restriction on queries.
func NewDefaultCatalog() *Catalog {
	return &Catalog{datasets: map[string]*core.Dataset{
		DefaultDataset: {Name: DefaultDataset, Title: "All datasets"},
	}}
}

// LoadCatalog reads a dataset manifest. An empty path yields NewDefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewDefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading manifest: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog builds a catalog from manifest YAML. Collections resolve to
// the union of their children's leaf datasets. When the manifest declares no
// "default" dataset, one is added that covers every leaf.
func ParseCatalog(data []byte) (*Catalog, error) {
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if len(m.Datasets) == 0 {
		return nil, fmt.Errorf("%w: no datasets defined", ErrInvalidManifest)
	}

	defs := make(map[string]datasetDefinition, len(m.Datasets))
	for _, d := range m.Datasets {
		d.Name = strings.TrimSpace(d.Name)
		if d.Name == "" {
			return nil, fmt.Errorf("%w: dataset without name", ErrInvalidManifest)
		}
		if _, dup := defs[d.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate dataset %q", ErrInvalidManifest, d.Name)
		}
		defs[d.Name] = d
	}
	for name, d := range defs {
		for _, child := range d.Children {
			if _, ok := defs[child]; !ok {
				return nil, fmt.Errorf("%w: %q includes unknown dataset %q", ErrInvalidManifest, name, child)
			}
		}
	}

	c := &Catalog{datasets: make(map[string]*core.Dataset, len(defs)+1)}
	for name := range defs {
		scope, err := leaves(defs, name, map[string]bool{})
		if err != nil {
			return nil, err
		}
		d := defs[name]
		c.datasets[name] = &core.Dataset{
			Name:     name,
			Title:    d.Title,
			Children: slices.Clone(d.Children),
			Scope:    scope,
		}
	}

	if _, ok := c.datasets[DefaultDataset]; !ok {
		var all []string
		var top []string
		included := map[string]bool{}
		for _, d := range defs {
			for _, child := range d.Children {
				included[child] = true
			}
		}
		for name, d := range c.datasets {
			all = append(all, d.Scope...)
			if !included[name] {
				top = append(top, name)
			}
		}
		slices.Sort(all)
		sort.Strings(top)
		c.datasets[DefaultDataset] = &core.Dataset{
			Name:     DefaultDataset,
			Title:    "All datasets",
			Children: top,
			Scope:    slices.Compact(all),
		}
	}
	return c, nil
}

// leaves returns the sorted leaf datasets below name.
func leaves(defs map[string]datasetDefinition, name string, visiting map[string]bool) ([]string, error) {
	d := defs[name]
	if len(d.Children) == 0 {
		return []string{name}, nil
	}
	if visiting[name] {
		return nil, fmt.Errorf("%w: collection cycle at %q", ErrInvalidManifest, name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	var scope []string
	for _, child := range d.Children {
		sub, err := leaves(defs, child, visiting)
		if err != nil {
			return nil, err
		}
		scope = append(scope, sub...)
	}
	slices.Sort(scope)
	return slices.Compact(scope), nil
}

// Dataset resolves a dataset by name.
// Returns core.ErrUnknownDataset if the catalog has no such dataset.
func (c *Catalog) Dataset(name string) (*core.Dataset, error) {
	d, ok := c.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownDataset, name)
	}
	return d, nil
}

// Datasets returns every dataset, sorted by name.
func (c *Catalog) Datasets() []*core.Dataset {
	result := make([]*core.Dataset, 0, len(c.datasets))
	for _, d := range c.datasets {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
