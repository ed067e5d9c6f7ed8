package tagging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog_Valid(t *testing.T) {
	c := Catalog{Tags: DefaultCatalog()}
	if err := c.Validate(); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
}

func TestCatalog_DuplicateSlug(t *testing.T) {
	c := Catalog{Tags: DefaultCatalog()}
	c.Tags = append(c.Tags, c.Tags[0])
	if err := c.Validate(); err == nil {
		t.Error("expected duplicate slug error")
	}
}

func TestLoadCatalog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := `tags:
  - name: Cooking
    slug: cooking
    color: "#22c55e"
    keywords:
      - recipe
      - sourdough
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	tags, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(tags) != 1 || tags[0].Slug != "cooking" || len(tags[0].Keywords) != 2 {
		t.Errorf("tags = %+v", tags)
	}
}

func TestLoadCatalog_InvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	// Missing keywords.
	data := "tags:\n  - name: Broken\n    slug: broken\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCatalog(path); err == nil {
		t.Error("expected validation error for keyword-less tag")
	}
}

func TestLoadCatalog_EmptyPathUsesDefault(t *testing.T) {
	tags, err := LoadCatalog("")
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) == 0 {
		t.Error("expected built-in default catalog")
	}
}
