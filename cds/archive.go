package cds

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Unpack extracts a zip archive into dir. Only regular files are written and
// entry paths escaping the target directory are rejected.
func Unpack(archive []byte, dir string) error {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return fmt.Errorf("cds: open archive: %w", err)
	}

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}

		target := filepath.Join(dir, filepath.Base(entry.Name))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(os.PathSeparator)) {
			return fmt.Errorf("cds: archive entry %q escapes target directory", entry.Name)
		}

		src, err := entry.Open()
		if err != nil {
			return fmt.Errorf("cds: open archive entry %q: %w", entry.Name, err)
		}

		dst, err := os.Create(target)
		if err != nil {
			src.Close()
			return fmt.Errorf("cds: create %q: %w", target, err)
		}

		_, err = io.Copy(dst, src)
		src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("cds: extract %q: %w", entry.Name, err)
		}
	}
	return nil
}

// ListCSV returns the CSV files extracted into dir, sorted by name.
func ListCSV(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("cds: list CSV files: %w", err)
	}
	return matches, nil
}
