package defaults

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoaderLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "defaults.json")

	content := `[
  {"name": "YouTube", "url": "https://www.youtube.com", "region": "Global"},
  {"name": "Bilibili", "url": "https://www.bilibili.com", "region": "CN"}
]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	doc, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(doc) != 2 {
		t.Fatalf("Load() returned %d entries, want 2", len(doc))
	}
	if doc[1].Region != "CN" || doc[1].Name != "Bilibili" {
		t.Errorf("unexpected entry: %+v", doc[1])
	}
}

func TestLoaderLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "defaults.yaml")

	content := `---
- name: Netflix
  url: netflix.com
  region: US
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	doc, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(doc) != 1 || doc[0].URL != "netflix.com" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestLoaderMissingFile(t *testing.T) {
	if _, err := NewLoader("/nonexistent/defaults.json").Load(); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte(`{"name": "not an array"}`)); err == nil {
		t.Error("Parse() should reject a non-array document")
	}
}
