package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/screener/core"
)

const testManifest = `
datasets:
  - name: us_ofac
    title: US OFAC SDN
  - name: eu_fsf
    title: EU Financial Sanctions
  - name: gb_hmt
    title: UK HMT
  - name: peps
    title: Politically exposed persons
  - name: sanctions
    title: Sanctions
    children: [us_ofac, eu_fsf, gb_hmt]
  - name: western
    children: [sanctions, us_ofac]
`

func TestNewDefaultCatalog(t *testing.T) {
	c := NewDefaultCatalog()

	d, err := c.Dataset(DefaultDataset)
	require.NoError(t, err)
	assert.Empty(t, d.Scope, "default places no restriction")
	assert.Len(t, c.Datasets(), 1)
}

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(testManifest))
	require.NoError(t, err)

	t.Run("leaf scope is itself", func(t *testing.T) {
		d, err := c.Dataset("us_ofac")
		require.NoError(t, err)
		assert.Equal(t, "US OFAC SDN", d.Title)
		assert.Equal(t, []string{"us_ofac"}, d.Scope)
	})

	t.Run("collection resolves leaves", func(t *testing.T) {
		d, err := c.Dataset("sanctions")
		require.NoError(t, err)
		assert.Equal(t, []string{"eu_fsf", "gb_hmt", "us_ofac"}, d.Scope)
		assert.Equal(t, []string{"us_ofac", "eu_fsf", "gb_hmt"}, d.Children)
	})

	t.Run("nested collection deduplicates", func(t *testing.T) {
		d, err := c.Dataset("western")
		require.NoError(t, err)
		assert.Equal(t, []string{"eu_fsf", "gb_hmt", "us_ofac"}, d.Scope)
	})

	t.Run("default covers every leaf", func(t *testing.T) {
		d, err := c.Dataset(DefaultDataset)
		require.NoError(t, err)
		assert.Equal(t, []string{"eu_fsf", "gb_hmt", "peps", "us_ofac"}, d.Scope)
		assert.Equal(t, []string{"peps", "western"}, d.Children)
	})

	t.Run("unknown dataset", func(t *testing.T) {
		_, err := c.Dataset("nope")
		assert.ErrorIs(t, err, core.ErrUnknownDataset)
	})

	t.Run("datasets sorted", func(t *testing.T) {
		var names []string
		for _, d := range c.Datasets() {
			names = append(names, d.Name)
		}
		assert.Equal(t, []string{"default", "eu_fsf", "gb_hmt", "peps", "sanctions", "us_ofac", "western"}, names)
	})
}

func TestParseCatalog_ExplicitDefault(t *testing.T) {
	c, err := ParseCatalog([]byte(`
datasets:
  - name: a
  - name: b
  - name: default
    children: [a]
`))
	require.NoError(t, err)
	d, err := c.Dataset(DefaultDataset)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, d.Scope)
}

func TestParseCatalog_Errors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"malformed", "datasets: [\n"},
		{"empty", "datasets: []\n"},
		{"missing name", "datasets:\n  - title: x\n"},
		{"duplicate", "datasets:\n  - name: a\n  - name: a\n"},
		{"unknown child", "datasets:\n  - name: a\n    children: [b]\n"},
		{"cycle", "datasets:\n  - name: a\n    children: [b]\n  - name: b\n    children: [a]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.manifest))
			assert.ErrorIs(t, err, ErrInvalidManifest)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	t.Run("empty path", func(t *testing.T) {
		c, err := LoadCatalog("")
		require.NoError(t, err)
		_, err = c.Dataset(DefaultDataset)
		assert.NoError(t, err)
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "datasets.yaml")
		require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o644))
		c, err := LoadCatalog(path)
		require.NoError(t, err)
		_, err = c.Dataset("sanctions")
		assert.NoError(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}
