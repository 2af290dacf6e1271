// Package grf reads and writes GRF 0x200 archives: a zlib-compressed file
// table at the end of the file and one zlib stream per entry. Model packs
// are shipped as GRF archives so a model, its texture and the index travel
// as one file.
package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Faultbox/shaderbench/pkg/encoding"
)

const (
	grfMagic   = "Master of Magic"
	version200 = 0x200
	headerSize = 46
	entrySize  = 17 // sizes, flags and offset after the name
)

// Entry flags.
const (
	FlagFile      = 0x01
	FlagEncrypted = 0x02
)

var (
	// ErrInvalidArchive is returned for files that are not GRF 0x200 archives.
	ErrInvalidArchive = errors.New("invalid GRF archive")
	// ErrEntryNotFound is returned by Read for unknown paths.
	ErrEntryNotFound = errors.New("archive entry not found")
	// ErrEncrypted is returned by Read for DES-encrypted entries.
	ErrEncrypted = errors.New("encrypted archive entries are not supported")
)

// Header is the fixed archive header.
type Header struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32
	Version       uint32
}

// Entry describes one file in the archive.
type Entry struct {
	Name             string // UTF-8, forward slashes, original case
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Archive is an opened GRF archive. Read is safe for concurrent use.
type Archive struct {
	file    *os.File
	header  Header
	entries map[string]*Entry
}

// Open opens a GRF archive for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	a := &Archive{
		file:    file,
		entries: make(map[string]*Entry),
	}
	if err := a.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := a.readFileTable(); err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func (a *Archive) readHeader() error {
	sr := io.NewSectionReader(a.file, 0, headerSize)
	if err := binary.Read(sr, binary.LittleEndian, &a.header); err != nil {
		return fmt.Errorf("%w: reading header: %v", ErrInvalidArchive, err)
	}
	if string(a.header.Magic[:]) != grfMagic {
		return fmt.Errorf("%w: bad magic", ErrInvalidArchive)
	}
	if a.header.Version != version200 {
		return fmt.Errorf("%w: unsupported version 0x%x", ErrInvalidArchive, a.header.Version)
	}
	return nil
}

func (a *Archive) readFileTable() error {
	tableOffset := int64(a.header.TableOffset) + headerSize

	var sizes [2]uint32 // compressed, uncompressed
	if err := binary.Read(io.NewSectionReader(a.file, tableOffset, 8), binary.LittleEndian, &sizes); err != nil {
		return fmt.Errorf("%w: reading table size: %v", ErrInvalidArchive, err)
	}

	compressed := make([]byte, sizes[0])
	if _, err := a.file.ReadAt(compressed, tableOffset+8); err != nil {
		return fmt.Errorf("%w: reading table: %v", ErrInvalidArchive, err)
	}
	table, err := inflate(compressed, sizes[1])
	if err != nil {
		return fmt.Errorf("%w: table: %v", ErrInvalidArchive, err)
	}

	if a.header.FileCount < a.header.Seed+7 {
		return fmt.Errorf("%w: bad file count", ErrInvalidArchive)
	}
	count := a.header.FileCount - a.header.Seed - 7

	offset := 0
	for i := uint32(0); i < count; i++ {
		nameEnd := bytes.IndexByte(table[offset:], 0)
		if nameEnd < 0 || offset+nameEnd+1+entrySize > len(table) {
			return fmt.Errorf("%w: table truncated at entry %d", ErrInvalidArchive, i)
		}
		name := encoding.EUCKRToUTF8(table[offset : offset+nameEnd])
		offset += nameEnd + 1

		rec := table[offset : offset+entrySize]
		e := &Entry{
			Name:             strings.ReplaceAll(name, "\\", "/"),
			CompressedSize:   binary.LittleEndian.Uint32(rec[0:]),
			AlignedSize:      binary.LittleEndian.Uint32(rec[4:]),
			UncompressedSize: binary.LittleEndian.Uint32(rec[8:]),
			Flags:            rec[12],
			Offset:           binary.LittleEndian.Uint32(rec[13:]),
		}
		offset += entrySize

		// Directory records carry no file flag.
		if e.Flags&FlagFile != 0 {
			a.entries[encoding.NormalizePath(name)] = e
		}
	}
	return nil
}

// List returns every file path in the archive, sorted.
func (a *Archive) List() []string {
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of files.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Stat returns the entry for a path. Lookup ignores case and slash
// direction.
func (a *Archive) Stat(path string) (Entry, bool) {
	e, ok := a.entries[encoding.NormalizePath(path)]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.entries[encoding.NormalizePath(path)]
	return ok
}

// Read returns the uncompressed contents of a file.
func (a *Archive) Read(path string) ([]byte, error) {
	e, ok := a.entries[encoding.NormalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrEntryNotFound)
	}
	if e.Flags&FlagEncrypted != 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEncrypted)
	}

	data := make([]byte, e.CompressedSize)
	if _, err := a.file.ReadAt(data, int64(e.Offset)+headerSize); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if e.CompressedSize == e.UncompressedSize {
		// stored
		return data, nil
	}
	out, err := inflate(data, e.UncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return out, nil
}

func inflate(data []byte, size uint32) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out := make([]byte, size)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
