// Package archive stores migration data in a zip file: JSON documents for the
// manifest, items and asset metadata, plus one entry per asset binary.
//
// Layout:
//
//	manifest.json
//	items.json
//	assets.json
//	assets/<archive filename>
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/steveyegge/ferry/internal/migration"
)

// FormatVersion is written to every manifest. Read rejects newer versions.
const FormatVersion = 1

const (
	manifestEntry = "manifest.json"
	itemsEntry    = "items.json"
	assetsEntry   = "assets.json"
	binaryDir     = "assets/"
)

// Manifest describes an archive.
type Manifest struct {
	FormatVersion     int       `json:"format_version" yaml:"format_version"`
	Created           time.Time `json:"created" yaml:"created"`
	SourceEnvironment string    `json:"source_environment,omitempty" yaml:"source_environment,omitempty"`
	Tool              string    `json:"tool,omitempty" yaml:"tool,omitempty"`
	Items             int       `json:"items" yaml:"items"`
	Assets            int       `json:"assets" yaml:"assets"`
	Languages         []string  `json:"languages,omitempty" yaml:"languages,omitempty"`
}

// NewManifest returns a manifest for data exported now.
func NewManifest(sourceEnvironment, tool string) *Manifest {
	return &Manifest{
		FormatVersion:     FormatVersion,
		Created:           time.Now().UTC(),
		SourceEnvironment: sourceEnvironment,
		Tool:              tool,
	}
}

// Write writes data as a zip archive to w. The counts and languages of the
// manifest are filled in from data.
func Write(w io.Writer, data *migration.Data, m *Manifest) error {
	if m == nil {
		m = NewManifest("", "")
	}
	m.FormatVersion = FormatVersion
	m.Items = len(data.Items)
	m.Assets = len(data.Assets)
	m.Languages = data.Languages()

	zw := zip.NewWriter(w)
	if err := writeJSON(zw, manifestEntry, m); err != nil {
		return err
	}
	items := data.Items
	if items == nil {
		items = []migration.Item{}
	}
	if err := writeJSON(zw, itemsEntry, items); err != nil {
		return err
	}
	assets := data.Assets
	if assets == nil {
		assets = []migration.Asset{}
	}
	if err := writeJSON(zw, assetsEntry, assets); err != nil {
		return err
	}

	seen := make(map[string]string, len(data.Assets))
	for i := range data.Assets {
		a := &data.Assets[i]
		if a.Binary == nil {
			continue
		}
		if a.ArchiveFilename == "" {
			return fmt.Errorf("asset %q has no archive filename", a.Codename)
		}
		if other, ok := seen[a.ArchiveFilename]; ok {
			return fmt.Errorf("assets %q and %q share archive filename %q", other, a.Codename, a.ArchiveFilename)
		}
		seen[a.ArchiveFilename] = a.Codename
		// Binaries are usually compressed already.
		f, err := zw.CreateHeader(&zip.FileHeader{Name: binaryDir + a.ArchiveFilename, Method: zip.Store, Modified: m.Created})
		if err != nil {
			return fmt.Errorf("adding %s: %w", a.ArchiveFilename, err)
		}
		if _, err := f.Write(a.Binary); err != nil {
			return fmt.Errorf("writing %s: %w", a.ArchiveFilename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finishing archive: %w", err)
	}
	return nil
}

func writeJSON(zw *zip.Writer, name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}
	if _, err := f.Write(b); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Read reads an archive. Every asset in assets.json must have its binary entry.
func Read(r io.ReaderAt, size int64) (*migration.Data, *Manifest, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}

	var m Manifest
	if err := readJSON(entries, manifestEntry, &m); err != nil {
		return nil, nil, err
	}
	if m.FormatVersion > FormatVersion {
		return nil, nil, fmt.Errorf("archive format version %d is newer than supported version %d", m.FormatVersion, FormatVersion)
	}

	data := &migration.Data{}
	if err := readJSON(entries, itemsEntry, &data.Items); err != nil {
		return nil, nil, err
	}
	if err := readJSON(entries, assetsEntry, &data.Assets); err != nil {
		return nil, nil, err
	}
	for i := range data.Assets {
		a := &data.Assets[i]
		f, ok := entries[binaryDir+a.ArchiveFilename]
		if !ok || a.ArchiveFilename == "" {
			return nil, nil, &migration.NotFoundError{Kind: "archive entry", Key: binaryDir + a.ArchiveFilename, In: "asset " + a.Codename}
		}
		if a.Binary, err = readEntry(f); err != nil {
			return nil, nil, err
		}
	}
	return data, &m, nil
}

// ReadManifest reads only the manifest of an archive.
func ReadManifest(r io.ReaderAt, size int64) (*Manifest, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[f.Name] = f
	}
	var m Manifest
	if err := readJSON(entries, manifestEntry, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func readJSON(entries map[string]*zip.File, name string, v any) error {
	f, ok := entries[name]
	if !ok {
		return &migration.NotFoundError{Kind: "archive entry", Key: name}
	}
	b, err := readEntry(f)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes an archive to path, replacing any existing file only once
// the new one is complete.
func WriteFile(path string, data *migration.Data, m *Manifest) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp archive file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()        // Best effort: may already be closed before rename
		_ = os.Remove(tmpPath) // Best effort: may already be renamed
	}()

	if err := Write(tmp, data, m); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace archive file: %w", err)
	}
	return nil
}

// ReadFile reads the archive at path.
func ReadFile(path string) (*migration.Data, *Manifest, error) {
	f, err := os.Open(path) // #nosec G304 - path is supplied by the user
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	return Read(f, st.Size())
}
