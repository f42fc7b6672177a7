package packaged

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// PAX record keys.
const (
	paxPath     = "ASSET.path"
	paxCategory = "ASSET.category"
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	gzipMagic = []byte{0x1f, 0x8b}
)

// ErrFormat is returned for files that are not packages.
var ErrFormat = errors.New("not a package")

// Entry is one asset to write into a package.
type Entry struct {
	Record types.AssetRecord
	Data   []byte
}

// Write writes entries as a zstd-compressed package.
func Write(w io.Writer, entries []Entry) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(zw)

	for _, e := range entries {
		if e.Record.ID.IsZero() {
			tw.Close()
			zw.Close()
			return fmt.Errorf("entry with path %q has no content id", e.Record.Path)
		}
		hdr := &tar.Header{
			Typeflag:   tar.TypeReg,
			Name:       e.Record.ID.String(),
			Mode:       0o644,
			Size:       int64(len(e.Data)),
			Format:     tar.FormatPAX,
			PAXRecords: map[string]string{paxPath: e.Record.Path},
		}
		if e.Record.Category != "" {
			hdr.PAXRecords[paxCategory] = e.Record.Category
		}
		if err := tw.WriteHeader(hdr); err != nil {
			tw.Close()
			zw.Close()
			return fmt.Errorf("write header %s: %w", e.Record.ID, err)
		}
		if _, err := tw.Write(e.Data); err != nil {
			tw.Close()
			zw.Close()
			return fmt.Errorf("write %s: %w", e.Record.ID, err)
		}
	}

	if err := tw.Close(); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// WriteFile writes entries to path, creating parent directories.
func WriteFile(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type rawEntry struct {
	record types.AssetRecord
	data   []byte
}

// readIndex decompresses a package and returns its entries keyed by content
// id, plus their order in the file.
func readIndex(r io.Reader) (map[types.ContentID]rawEntry, []types.ContentID, error) {
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}

	var body io.Reader
	switch {
	case bytes.HasPrefix(payload, zstdMagic):
		zr, err := zstd.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		body = zr
	case bytes.HasPrefix(payload, gzipMagic):
		gr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		defer gr.Close()
		body = gr
	default:
		return nil, nil, ErrFormat
	}

	entries := make(map[types.ContentID]rawEntry)
	var order []types.ContentID
	tr := tar.NewReader(body)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", hdr.Name, err)
		}

		id := types.ContentID(hdr.Name)
		if _, dup := entries[id]; dup {
			continue
		}
		entries[id] = rawEntry{
			record: types.AssetRecord{
				ID:       id,
				Path:     hdr.PAXRecords[paxPath],
				Category: hdr.PAXRecords[paxCategory],
			},
			data: data,
		}
		order = append(order, id)
	}
	return entries, order, nil
}
