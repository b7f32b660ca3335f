package kb

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover_WithoutManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "weather.md", "# Weather")
	writeFile(t, dir, "aqi.md", "# AQI")
	writeFile(t, dir, "notes.txt", "ignored")
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	docs, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d: %+v", len(docs), docs)
	}
	// Sorted by source name
	if docs[0].Source != "aqi.md" || docs[1].Source != "weather.md" {
		t.Errorf("sources = %q, %q", docs[0].Source, docs[1].Source)
	}
	if docs[0].File != filepath.Join(dir, "aqi.md") {
		t.Errorf("file = %q", docs[0].File)
	}
}

func TestDiscover_WithManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "glossary.md", "# Glossary")
	writeFile(t, dir, "extra.md", "# Extra")
	writeFile(t, dir, ManifestFile, `documents:
  - file: glossary.md
    source: weather-glossary
`)

	docs, err := Discover(dir)
	if err != nil {
		t.Fatal(err)
	}

	// The manifest is authoritative: extra.md is not picked up.
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d: %+v", len(docs), docs)
	}
	if docs[0].Source != "weather-glossary" {
		t.Errorf("source = %q", docs[0].Source)
	}
	if docs[0].File != filepath.Join(dir, "glossary.md") {
		t.Errorf("file = %q", docs[0].File)
	}
}

func TestLoadManifest_DefaultsSourceToFileName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestFile, `documents:
  - file: docs/faq.md
`)

	m, err := LoadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Documents) != 1 || m.Documents[0].Source != "faq.md" {
		t.Errorf("documents = %+v", m.Documents)
	}
}

func TestLoadManifest_MissingFileField(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestFile, `documents:
  - source: orphan
`)

	if _, err := LoadManifest(filepath.Join(dir, ManifestFile)); err == nil {
		t.Fatal("expected error for entry without file")
	}
}

func TestLoadManifest_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ManifestFile, "documents: [unclosed")

	if _, err := LoadManifest(filepath.Join(dir, ManifestFile)); err == nil {
		t.Fatal("expected parse error")
	}
}
