package models

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind tells text chunks apart from metadata-only figure records.
type Kind string

const (
	KindChunk  Kind = "chunk"
	KindFigure Kind = "figure"
)

// Page is the text of one page of a source document. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// Record is a single row in the vector store. Page is 1-based.
// Chunk records (text or figure caption) carry a Vector; figure records
// carry only metadata and the FigureMarker text.
type Record struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Page      int       `json:"page"`
	ImagePath string    `json:"imagePath,omitempty"`
	Vector    []float32 `json:"-"`
}

// HasVector reports whether the record can take part in similarity search.
func (r Record) HasVector() bool {
	return len(r.Vector) > 0
}

// RetrievedItem is a search hit in caller-facing form. Page is 0-based.
type RetrievedItem struct {
	Text      string `json:"text"`
	Source    string `json:"source"`
	Page      int    `json:"page"`
	ImagePath string `json:"imagePath,omitempty"`
}

// FigureBaseName strips directory and extension from a source name.
func FigureBaseName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FigureFileName is the on-disk name of the figure extracted from page1
// (1-based) of the document whose base name is base. The indexer writes
// figures under this name and the answer composer reconstructs it from a
// 0-based page as FigureFileName(base, page0+1).
func FigureFileName(base string, page1 int) string {
	return fmt.Sprintf("%s_p%d.png", base, page1)
}

// FigureFileNameSeq names the seq-th (0-based) figure taken from a page. The
// first figure keeps FigureFileName, the only name the fallback reconstructs.
func FigureFileNameSeq(base string, page1, seq int) string {
	if seq <= 0 {
		return FigureFileName(base, page1)
	}
	return fmt.Sprintf("%s_p%d_%d.png", base, page1, seq+1)
}
