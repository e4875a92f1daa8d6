package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Dir stores each document as <name>.json inside a dataset directory.
type Dir struct {
	path string
}

// NewDir creates the directory if needed.
func NewDir(path string) (*Dir, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("archive: empty dataset directory")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("archive: mkdir %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

var nameReplacer = strings.NewReplacer("/", "-", `\`, "-", ":", "-", " ", "_")

// Save writes raw to a temporary file and renames it into place, so Each
// never reads a half-written document.
func (d *Dir) Save(ctx context.Context, name string, _ time.Time, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	final := filepath.Join(d.path, nameReplacer.Replace(name)+".json")
	tmp, err := os.CreateTemp(d.path, ".incoming-*")
	if err != nil {
		return fmt.Errorf("archive: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("archive: write %s: %w", final, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("archive: close %s: %w", final, err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("archive: rename into %s: %w", final, err)
	}
	return nil
}

// Each visits *.json files in lexical order. Names handed out by the
// occupancy service start with a save stamp, so this is save order.
func (d *Dir) Each(ctx context.Context, fn func(name string, raw []byte) error) error {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return fmt.Errorf("archive: read dir %s: %w", d.path, err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := os.ReadFile(filepath.Join(d.path, e.Name()))
		if err != nil {
			return fmt.Errorf("archive: read %s: %w", e.Name(), err)
		}
		if err := fn(strings.TrimSuffix(e.Name(), ".json"), raw); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dir) Close() error { return nil }
