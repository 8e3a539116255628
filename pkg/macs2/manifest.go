package macs2

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/scttfrdmn/peakcall-go/pkg/storage"
)

// Manifest is the on-disk record of a run's result
type Manifest struct {
	RunID    string            `json:"run_id"`
	Name     string            `json:"name"`
	Tool     string            `json:"tool"`
	Files    map[Slot]string   `json:"files"`
	Metadata map[Slot]Metadata `json:"metadata"`
}

// NewManifest wraps result with a fresh run id
func NewManifest(name string, result *Result) *Manifest {
	return &Manifest{
		RunID:    uuid.New().String(),
		Name:     name,
		Tool:     ToolName,
		Files:    result.Files,
		Metadata: result.Metadata,
	}
}

// Encode renders the manifest as indented JSON
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteManifest stores m at path. Paths ending in .zst are zstd-compressed.
func WriteManifest(router *storage.Router, path string, m *Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if storage.IsCompressed(path) {
		if data, err = storage.Compress(data); err != nil {
			return err
		}
	}
	return router.WriteFile(path, data)
}

// ReadManifest loads a manifest written by WriteManifest
func ReadManifest(router *storage.Router, path string) (*Manifest, error) {
	data, err := router.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if storage.IsCompressed(path) {
		if data, err = storage.Decompress(data); err != nil {
			return nil, fmt.Errorf("failed to decompress manifest: %w", err)
		}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
