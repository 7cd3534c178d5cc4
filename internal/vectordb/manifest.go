package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"emergency-rag/internal/models"
)

const manifestFile = "manifest.json"

// Manifest makes the on-disk index self-describing: it records the
// embedding model (and its dimension) the vectors were built with, so a
// query under a different embedding configuration fails fast.
type Manifest struct {
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
}

func loadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse index manifest: %w", err)
	}
	return &m, nil
}

func saveManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestFile), data, 0o644)
}

// check compares the recorded build configuration with the current one.
// dim zero means the caller has not probed the model's dimension.
func (m *Manifest) check(model string, dim int) error {
	if m.Model != model {
		return fmt.Errorf("%w: index built with %q, configured %q; re-run ingestion or fix the config",
			models.ErrModelMismatch, m.Model, model)
	}
	if dim > 0 && m.Dimension > 0 && m.Dimension != dim {
		return fmt.Errorf("%w: index dimension %d, model produces %d",
			models.ErrModelMismatch, m.Dimension, dim)
	}
	return nil
}
