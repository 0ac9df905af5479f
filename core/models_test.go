package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "simple content", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id1 := IDFromContent(tt.content)
			id2 := IDFromContent(tt.content)
			if id1 != id2 {
				t.Errorf("IDFromContent() produced different IDs for same content: %d vs %d", id1, id2)
			}
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	if IDFromContent("content1") == IDFromContent("content2") {
		t.Errorf("IDFromContent() produced same ID for different content")
	}
}

func TestEntity_Add(t *testing.T) {
	e := NewEntity("e1", "Person")

	assert.Equal(t, 2, e.Add("name", "Jane Doe", "J. Doe"))
	assert.Equal(t, 0, e.Add("name", "Jane Doe"), "duplicates are skipped")
	assert.Equal(t, 0, e.Add("alias", ""), "empty values are skipped")

	assert.Equal(t, []string{"Jane Doe", "J. Doe"}, e.Get("name"))
	assert.True(t, e.Has("name"))
	assert.False(t, e.Has("alias"))
	_, present := e.Properties["alias"]
	assert.False(t, present, "empty property must not be materialized")
}

func TestEntity_AddOnZeroValue(t *testing.T) {
	var e Entity
	e.Add("country", "de")
	assert.Equal(t, []string{"de"}, e.Get("country"))
}

func TestEntity_PropertyNames(t *testing.T) {
	e := NewEntity("e1", "Person")
	e.Add("name", "Jane")
	e.Add("birthDate", "1970")
	e.Properties["empty"] = nil

	assert.Equal(t, []string{"birthDate", "name"}, e.PropertyNames())
}

func TestEntity_Clone(t *testing.T) {
	e := NewEntity("e1", "Person")
	e.Add("name", "Jane")
	e.Datasets = []string{"us_ofac"}

	c := e.Clone()
	c.Add("name", "John")
	c.Datasets[0] = "changed"

	assert.Equal(t, []string{"Jane"}, e.Get("name"))
	assert.Equal(t, []string{"us_ofac"}, e.Datasets)
	assert.Equal(t, []string{"Jane", "John"}, c.Get("name"))
}
