package archive

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/ferry/internal/migration"
)

func sample() *migration.Data {
	title := "Hello"
	return &migration.Data{
		Items: []migration.Item{{
			System: migration.System{Codename: "home", Name: "Home", Language: "en", Type: "page", Workflow: "default", WorkflowStep: "draft"},
			Elements: []migration.Element{
				{Codename: "title", Value: migration.Text{Value: &title}},
				{Codename: "hero", Value: migration.References{Kind: migration.TypeAsset, Refs: []migration.Reference{{Codename: "logo"}}}},
			},
		}},
		Assets: []migration.Asset{{
			Codename:        "logo",
			Filename:        "logo.png",
			ArchiveFilename: "logo_logo.png",
			Descriptions:    []migration.AssetDescription{{Language: "en", Description: "Logo"}},
			Binary:          []byte{0x89, 'P', 'N', 'G'},
		}},
	}
}

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample(), NewManifest("prod", "ferry test")))

	data, m, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, m.FormatVersion)
	assert.Equal(t, "prod", m.SourceEnvironment)
	assert.Equal(t, 1, m.Items)
	assert.Equal(t, 1, m.Assets)
	assert.Equal(t, []string{"en"}, m.Languages)

	require.Len(t, data.Items, 1)
	assert.Equal(t, sample().Items[0].System, data.Items[0].System)
	assert.Equal(t, "Hello", *data.Items[0].Element("title").Value.(migration.Text).Value)
	require.Len(t, data.Assets, 1)
	assert.Equal(t, sample().Assets[0], data.Assets[0])
}

func TestWriteEmptyData(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, &migration.Data{}, nil))
	data, m, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Empty(t, data.Items)
	assert.Empty(t, data.Assets)
	assert.Equal(t, 0, m.Items)
}

func TestWriteRejectsSharedArchiveFilename(t *testing.T) {
	data := sample()
	dup := data.Assets[0]
	dup.Codename = "logo_2"
	data.Assets = append(data.Assets, dup)
	err := Write(&bytes.Buffer{}, data, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "share archive filename")
}

func TestReadMissingBinary(t *testing.T) {
	data := sample()
	data.Assets[0].Binary = nil

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, data, nil))
	_, _, err := Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))

	var nf *migration.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "archive entry", nf.Kind)
	assert.Equal(t, "assets/logo_logo.png", nf.Key)
}

func TestReadRejectsNewerFormat(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("manifest.json")
	require.NoError(t, err)
	_, err = f.Write([]byte(`{"format_version": 99}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, _, err = Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestReadMissingItems(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("manifest.json")
	require.NoError(t, err)
	_, err = f.Write([]byte(`{"format_version": 1}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, _, err = Read(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	var nf *migration.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "items.json", nf.Key)
}

func TestReadNotAZip(t *testing.T) {
	b := []byte("not a zip")
	_, _, err := Read(bytes.NewReader(b), int64(len(b)))
	require.Error(t, err)
}

func TestWriteFileReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.zip")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))
	require.NoError(t, WriteFile(path, sample(), nil))

	data, _, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, data.Items, 1)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	st, err := f.Stat()
	require.NoError(t, err)
	m, err := ReadManifest(f, st.Size())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Assets)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}
