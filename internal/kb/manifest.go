// Package kb locates knowledge base documents on disk for bulk ingestion.
//
// A directory may carry a kb.yaml manifest pinning the exact document set
// and source names. Without one, every *.md file in the directory is
// ingested under its file name.
package kb

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the well-known manifest name inside a KB directory
const ManifestFile = "kb.yaml"

// Manifest describes the documents of a knowledge base directory
type Manifest struct {
	Documents []Document `yaml:"documents"`
}

// Document is one manifest entry. Source defaults to the file name.
type Document struct {
	File   string `yaml:"file"`
	Source string `yaml:"source,omitempty"`
}

// LoadManifest parses a kb.yaml manifest
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	for i, doc := range m.Documents {
		if doc.File == "" {
			return nil, fmt.Errorf("manifest entry %d: missing file", i)
		}
		if doc.Source == "" {
			m.Documents[i].Source = filepath.Base(doc.File)
		}
	}

	return &m, nil
}

// Discover resolves the documents to ingest from a directory. When a
// kb.yaml manifest is present it is authoritative; otherwise every *.md
// file in the directory (non-recursive) is returned, sorted by name, with
// its file name as source.
func Discover(dir string) ([]Document, error) {
	manifestPath := filepath.Join(dir, ManifestFile)
	if _, err := os.Stat(manifestPath); err == nil {
		m, err := LoadManifest(manifestPath)
		if err != nil {
			return nil, err
		}
		docs := make([]Document, 0, len(m.Documents))
		for _, doc := range m.Documents {
			file := doc.File
			if !filepath.IsAbs(file) {
				file = filepath.Join(dir, file)
			}
			docs = append(docs, Document{File: file, Source: doc.Source})
		}
		return docs, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		docs = append(docs, Document{
			File:   filepath.Join(dir, entry.Name()),
			Source: entry.Name(),
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Source < docs[j].Source })
	return docs, nil
}
