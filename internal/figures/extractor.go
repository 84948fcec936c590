// Package figures pulls raster images out of PDF pages and stores them under
// deterministic, page-derived file names.
package figures

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"iter"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tsawler/tabula/reader"
	xdraw "golang.org/x/image/draw"
)

const (
	DefaultMaxPerPage = 1
	DefaultMaxDim     = 1600
)

var ErrUndecodable = errors.New("undecodable image")

// Figure is one image taken from a document page. Page is 1-based.
type Figure struct {
	Page  int
	Name  string
	Image image.Image
}

// Extractor reads embedded images from PDF documents.
type Extractor struct {
	// MaxPerPage caps the images taken from one page; 0 or less means no cap.
	MaxPerPage int
	// MaxDim bounds the longer side of every image; larger images are
	// downscaled keeping their aspect ratio. 0 disables downscaling.
	MaxDim int
}

func NewExtractor(maxPerPage, maxDim int) *Extractor {
	return &Extractor{MaxPerPage: maxPerPage, MaxDim: maxDim}
}

// Supports reports whether images can be extracted from the document at path.
func (e *Extractor) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Figures yields the images of the PDF at path in page order, at most
// MaxPerPage per page picked by XObject name. A document tabula cannot open
// yields one error with Page 0 and nothing else, so callers can report it;
// a failure on a single image is yielded with that image's page and name and
// extraction goes on.
func (e *Extractor) Figures(path string) iter.Seq2[Figure, error] {
	return func(yield func(Figure, error) bool) {
		r, err := reader.Open(path)
		if err != nil {
			yield(Figure{}, fmt.Errorf("failed to open pdf: %w", err))
			return
		}
		defer r.Close()

		count, err := r.PageCount()
		if err != nil {
			yield(Figure{}, fmt.Errorf("failed to count pages: %w", err))
			return
		}

		for i := 0; i < count; i++ {
			page, err := r.GetPage(i)
			if err != nil {
				if !yield(Figure{Page: i + 1}, fmt.Errorf("failed to read page: %w", err)) {
					return
				}
				continue
			}
			images, err := r.ExtractPageImages(page)
			if err != nil {
				if !yield(Figure{Page: i + 1}, fmt.Errorf("failed to list page images: %w", err)) {
					return
				}
				continue
			}
			// XObject dictionaries are maps; sort for a stable pick.
			sort.Slice(images, func(a, b int) bool { return images[a].Name < images[b].Name })
			if e.MaxPerPage > 0 && len(images) > e.MaxPerPage {
				images = images[:e.MaxPerPage]
			}

			for _, pi := range images {
				fig := Figure{Page: i + 1, Name: pi.Name}
				img, err := decode(&pi)
				if err != nil {
					if !yield(fig, err) {
						return
					}
					continue
				}
				fig.Image = Fit(img, e.MaxDim)
				if !yield(fig, nil) {
					return
				}
			}
		}
	}
}

func decode(pi *reader.PageImage) (image.Image, error) {
	switch pi.Filter {
	case "DCTDecode":
		img, err := jpeg.Decode(bytes.NewReader(pi.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrUndecodable, pi.Name, err)
		}
		return img, nil
	case "JPXDecode", "JBIG2Decode":
		return nil, fmt.Errorf("%w: %s: unsupported filter %s", ErrUndecodable, pi.Name, pi.Filter)
	}
	data, err := pi.ToPNG()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUndecodable, pi.Name, err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUndecodable, pi.Name, err)
	}
	return img, nil
}

// Fit converts img to RGBA and, when its longer side exceeds maxDim,
// scales it down so that side equals maxDim.
func Fit(img image.Image, maxDim int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			h = max(1, h*maxDim/w)
			w = maxDim
		} else {
			w = max(1, w*maxDim/h)
			h = maxDim
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		xdraw.Draw(dst, dst.Bounds(), img, b.Min, xdraw.Src)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}
