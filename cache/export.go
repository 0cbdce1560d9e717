package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// ExportFormat represents the JSON structure for cache export/import.
type ExportFormat struct {
	Version    string            `json:"version"`
	ExportedAt string            `json:"exported_at"`
	Entries    []ExportEntry     `json:"entries"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ExportEntry represents a single cache entry.
type ExportEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Exporter provides cache export functionality, for warm-starting a fresh
// process from a previous run's completions.
type Exporter struct {
	cache ResponseCache
}

// NewExporter creates a new cache exporter.
func NewExporter(cache ResponseCache) *Exporter {
	return &Exporter{cache: cache}
}

// Export writes the cache contents to a writer in JSON format.
func (e *Exporter) Export(w io.Writer, metadata map[string]string) error {
	entries, err := e.getAllEntries()
	if err != nil {
		return fmt.Errorf("getting cache entries: %w", err)
	}

	export := ExportFormat{
		Version:    "1.0",
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Entries:    entries,
		Metadata:   metadata,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	return nil
}

// ExportToFile exports the cache to a file.
// The path is provided by the caller and is intentionally user-controlled.
func (e *Exporter) ExportToFile(path string, metadata map[string]string) error {
	f, err := os.Create(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	return e.Export(f, metadata)
}

// getAllEntries extracts all entries from the cache.
func (e *Exporter) getAllEntries() ([]ExportEntry, error) {
	switch c := e.cache.(type) {
	case *InMemoryCache:
		data := c.Entries()
		entries := make([]ExportEntry, 0, len(data))
		for key, value := range data {
			entries = append(entries, ExportEntry{Key: key, Value: value})
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("cache type %T does not support export", e.cache)
	}
}

// Import reads a JSON export and loads its entries into the cache using the
// cache's default TTL.
func Import(r io.Reader, cache ResponseCache) (int, error) {
	var export ExportFormat
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return 0, fmt.Errorf("decoding JSON: %w", err)
	}

	loaded := 0
	for _, entry := range export.Entries {
		if entry.Key == "" {
			continue
		}
		if err := cache.Set(entry.Key, entry.Value); err != nil {
			return loaded, fmt.Errorf("storing entry %q: %w", entry.Key, err)
		}
		loaded++
	}

	return loaded, nil
}

// ImportFromFile imports cache entries from a file created by Export.
func ImportFromFile(path string, cache ResponseCache) (int, error) {
	f, err := os.Open(path) // #nosec G304 - path is intentionally user-provided
	if err != nil {
		return 0, fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	return Import(f, cache)
}
