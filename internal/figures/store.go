package figures

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path"
	"path/filepath"
	"strings"

	"lecture-rag/internal/models"
)

// Store keeps figure images in Dir and exposes them under URLPrefix, which
// BaseURL turns into an absolute URL.
type Store struct {
	Dir       string
	URLPrefix string
	BaseURL   string
}

func NewStore(dir, urlPrefix, baseURL string) *Store {
	return &Store{Dir: dir, URLPrefix: urlPrefix, BaseURL: baseURL}
}

// Save writes img as PNG under the name of the seq-th figure of page1
// ({base}_p{page1}.png for the first), replacing any previous file, and
// returns its web path.
func (s *Store) Save(base string, page1, seq int, img image.Image) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create figure directory: %w", err)
	}
	name := models.FigureFileNameSeq(base, page1, seq)
	f, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return "", fmt.Errorf("failed to create figure file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to encode figure %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write figure %s: %w", name, err)
	}
	return s.WebPath(name), nil
}

// WebPath is the URL path a figure file is served under.
func (s *Store) WebPath(name string) string {
	return path.Join("/", s.URLPrefix, name)
}

// Lookup reconstructs the figure path of a retrieved item from its source and
// 0-based page, reporting whether such a file exists.
func (s *Store) Lookup(source string, page0 int) (string, bool) {
	if source == "" || page0 < 0 {
		return "", false
	}
	name := models.FigureFileName(models.FigureBaseName(source), page0+1)
	info, err := os.Stat(filepath.Join(s.Dir, name))
	if err != nil || info.IsDir() {
		return "", false
	}
	return s.WebPath(name), true
}

// AbsURL prefixes a web path with BaseURL. URLs that are already absolute
// are returned as is.
func (s *Store) AbsURL(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	return strings.TrimRight(s.BaseURL, "/") + "/" + strings.TrimLeft(p, "/")
}
