package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/shaderbench/pkg/grf"
)

// ErrNotFound is returned when a source does not hold the requested path.
var ErrNotFound = errors.New("asset not found")

// Source is a place models and textures are fetched from. Paths are slash
// separated and relative to the source root.
type Source interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
	String() string
}

// NewSource returns an HTTPSource for http(s) URLs, an ArchiveSource for
// .grf files and a DirSource otherwise.
func NewSource(location string) (Source, error) {
	switch {
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return NewHTTPSource(location, nil)
	case strings.EqualFold(filepath.Ext(location), ".grf"):
		return NewArchiveSource(location)
	}
	return NewDirSource(location)
}

// DirSource reads assets from a directory.
type DirSource struct {
	root string
}

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("asset dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset dir %s: not a directory", dir)
	}
	return &DirSource{root: dir}, nil
}

func (s *DirSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	local := filepath.FromSlash(path)
	if !filepath.IsLocal(local) {
		return nil, fmt.Errorf("%s: path escapes asset root: %w", path, ErrNotFound)
	}

	data, err := os.ReadFile(filepath.Join(s.root, local))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (s *DirSource) String() string {
	return "dir:" + s.root
}

// HTTPSource fetches assets relative to a base URL.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPSource creates a source for a base URL. A nil client uses
// http.DefaultClient. Requests carry no timeout; cancel the context instead.
func NewHTTPSource(base string, client *http.Client) (*HTTPSource, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("asset url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{base: u, client: client}, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	target := s.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetch %s: %s", path, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (s *HTTPSource) String() string {
	return s.base.String()
}

// ArchiveSource reads assets from a GRF archive. Lookups ignore case.
type ArchiveSource struct {
	path    string
	archive *grf.Archive
}

// NewArchiveSource opens the archive at path.
func NewArchiveSource(path string) (*ArchiveSource, error) {
	a, err := grf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("asset archive: %w", err)
	}
	return &ArchiveSource{path: path, archive: a}, nil
}

func (s *ArchiveSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.archive.Read(path)
	if errors.Is(err, grf.ErrEntryNotFound) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	return data, err
}

// Close closes the archive file.
func (s *ArchiveSource) Close() error {
	return s.archive.Close()
}

func (s *ArchiveSource) String() string {
	return "grf:" + s.path
}
