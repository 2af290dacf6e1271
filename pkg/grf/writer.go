package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/shaderbench/pkg/encoding"
)

// File is one entry to pack.
type File struct {
	Name string // archive path, forward or back slashes
	Data []byte
	// Store skips compression.
	Store bool
}

// Write packs files into a GRF 0x200 archive. Names are stored EUC-KR
// encoded with backslashes.
func Write(w io.Writer, files []File) error {
	var (
		body  bytes.Buffer
		table bytes.Buffer
	)

	for _, f := range files {
		if f.Name == "" {
			return fmt.Errorf("grf: empty entry name")
		}

		data := f.Data
		if !f.Store {
			var err error
			if data, err = deflate(f.Data); err != nil {
				return fmt.Errorf("grf: compressing %s: %w", f.Name, err)
			}
			// Never let a compressed entry look stored.
			if len(data) == len(f.Data) {
				data = append(data, 0)
			}
		}

		offset := body.Len()
		body.Write(data)
		// Entries are 8-byte aligned.
		aligned := (len(data) + 7) &^ 7
		body.Write(make([]byte, aligned-len(data)))

		table.Write(encoding.UTF8ToEUCKR(strings.ReplaceAll(f.Name, "/", "\\")))
		table.WriteByte(0)
		var rec [entrySize]byte
		binary.LittleEndian.PutUint32(rec[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(rec[4:], uint32(aligned))
		binary.LittleEndian.PutUint32(rec[8:], uint32(len(f.Data)))
		rec[12] = FlagFile
		binary.LittleEndian.PutUint32(rec[13:], uint32(offset))
		table.Write(rec[:])
	}

	compressed, err := deflate(table.Bytes())
	if err != nil {
		return fmt.Errorf("grf: compressing table: %w", err)
	}

	var h Header
	copy(h.Magic[:], grfMagic)
	h.TableOffset = uint32(body.Len())
	h.FileCount = uint32(len(files)) + 7
	h.Version = version200

	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return err
	}
	sizes := [2]uint32{uint32(len(compressed)), uint32(table.Len())}
	if err := binary.Write(w, binary.LittleEndian, sizes); err != nil {
		return err
	}
	_, err = w.Write(compressed)
	return err
}

// PackDir packs every regular file under dir into the archive at out.
// Entry names are relative to dir.
func PackDir(dir, out string) (int, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, File{Name: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", dir, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	f, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	if err := Write(f, files); err != nil {
		f.Close()
		return 0, err
	}
	return len(files), f.Close()
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
