// Package file writes bundles to the local file system.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stellify/stellify/core/recordfmt"
)

// Sink writes each bundle to one file, replacing it atomically.
type Sink struct {
	path string
	enc  recordfmt.Encoding
}

// New returns a sink writing to path. The encoding follows the extension
// (.json or .cbor).
func New(path string) (*Sink, error) {
	enc, err := recordfmt.ParseEncoding(filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("output %s: %w", path, err)
	}
	return &Sink{path: path, enc: enc}, nil
}

// Path returns the destination file.
func (s *Sink) Path() string { return s.path }

// Write encodes b next to the destination and renames it into place, so
// readers never observe a partial bundle.
func (s *Sink) Write(ctx context.Context, b *recordfmt.Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := recordfmt.Marshal(b, s.enc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename into %s: %w", s.path, err)
	}
	return nil
}

// Read loads the bundle last written to path.
func Read(path string) (*recordfmt.Bundle, error) {
	enc, err := recordfmt.ParseEncoding(filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := recordfmt.Read(f, enc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}
