package config

import (
	"os"
	"testing"
)

// FuzzLoadConfig tests the LoadConfig function with various file inputs
func FuzzLoadConfig(f *testing.F) {
	// Seed with various YAML content patterns
	f.Add("workers: 4\ncache_dir: ./cache\nlogging:\n  level: debug")
	f.Add("{}")
	f.Add("")
	f.Add("invalid: yaml: content: [")
	f.Add("workers: 0")
	f.Add("workers: \"four\"")
	f.Add("---\nworkers: 2")                // Document separator
	f.Add("logging: null\ndownload: null") // Null values
	f.Add("download:\n  timeout: never")
	f.Add("extra_field: \"should be rejected\"")

	f.Fuzz(func(t *testing.T, yamlContent string) {
		// Write content to a temporary file
		tempFile := t.TempDir() + "/cx-fetcher.yml"
		if err := writeTestFile(tempFile, yamlContent); err != nil {
			t.Skip("Failed to create temp file")
		}

		// Test LoadConfig - should not crash regardless of input
		cfg, err := LoadConfig(tempFile)

		if err != nil {
			// Error is acceptable for invalid inputs
			if cfg != nil {
				t.Error("Expected nil config when error occurred")
			}
		} else {
			if cfg == nil {
				t.Fatal("Expected non-nil config when no error occurred")
			}
			if cfg.Workers <= 0 {
				t.Errorf("Expected defaults to set positive workers, got %d", cfg.Workers)
			}
		}
	})
}

// FuzzParseConfig tests parseConfig with raw YAML data
func FuzzParseConfig(f *testing.F) {
	f.Add([]byte("workers: 8"))
	f.Add([]byte(""))
	f.Add([]byte("null"))
	f.Add([]byte("[]"))
	f.Add([]byte("invalid yaml content ]["))
	f.Add([]byte("---\n---\n---")) // Multiple document separators
	f.Add([]byte("logging: &anchor\n  level: warn\nverify: *anchor")) // YAML anchors
	f.Add([]byte(string(make([]byte, 10000))))                     // Large input

	f.Fuzz(func(t *testing.T, yamlData []byte) {
		cfg, err := parseConfig(yamlData)
		if err != nil {
			if cfg != nil {
				t.Error("Expected nil config when error occurred")
			}
		} else if cfg == nil {
			t.Error("Expected non-nil config when no error occurred")
		}
	})
}

// writeTestFile is a helper to write content to a file for testing
func writeTestFile(path, content string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = file.WriteString(content)
	return err
}
