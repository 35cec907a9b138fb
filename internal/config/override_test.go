package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadOverrideMap_EmptyPath(t *testing.T) {
	m, err := ReadOverrideMap("")
	if err != nil {
		t.Fatalf("ReadOverrideMap: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil map")
	}
	if len(m) != 0 {
		t.Errorf("expected empty map, got %d keys", len(m))
	}
}

func TestReadOverrideMap_NotExist(t *testing.T) {
	m, err := ReadOverrideMap("/nonexistent/path/override.yaml")
	if err != nil {
		t.Fatalf("ReadOverrideMap: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil map")
	}
	if len(m) != 0 {
		t.Errorf("expected empty map for missing file, got %d keys", len(m))
	}
}

func TestReadOverrideMap_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	content := []byte(`
cache:
  capacity: 500
chaos:
  min_nodes: 2
`)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	m, err := ReadOverrideMap(path)
	if err != nil {
		t.Fatalf("ReadOverrideMap: %v", err)
	}
	if m == nil {
		t.Fatal("expected non-nil map")
	}
	if cache, ok := m["cache"].(map[string]any); !ok || cache["capacity"] != 500 {
		t.Errorf("unexpected cache: %v", m["cache"])
	}
	if chaos, ok := m["chaos"].(map[string]any); !ok || chaos["min_nodes"] != 2 {
		t.Errorf("unexpected chaos: %v", m["chaos"])
	}
}

func TestReadOverrideMap_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	content := []byte("invalid: yaml: [")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	_, err := ReadOverrideMap(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestReadOverrideMap_ReadError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.yaml")
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	// path is now a directory, ReadFile will fail with a different error
	_, err := ReadOverrideMap(path)
	if err == nil {
		t.Fatal("expected error when reading directory as file")
	}
}

func TestWriteOverrideMap_EmptyPath(t *testing.T) {
	err := WriteOverrideMap("", map[string]any{"key": "value"})
	if err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestWriteOverrideMap_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subdir", "override.yaml")
	m := map[string]any{
		"chaos":  map[string]any{"min_nodes": 3},
		"server": map[string]any{"host": "127.0.0.1"},
	}

	if err := WriteOverrideMap(path, m); err != nil {
		t.Fatalf("WriteOverrideMap: %v", err)
	}

	// Verify by reading back
	got, err := ReadOverrideMap(path)
	if err != nil {
		t.Fatalf("ReadOverrideMap: %v", err)
	}
	if chaos, ok := got["chaos"].(map[string]any); !ok || chaos["min_nodes"] != 3 {
		t.Errorf("unexpected chaos: %v", got["chaos"])
	}
}

func TestWriteOverrideMap_CreatesDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "dir", "override.yaml")
	m := map[string]any{"key": "value"}

	if err := WriteOverrideMap(path, m); err != nil {
		t.Fatalf("WriteOverrideMap: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("file was not created")
	}
}
