// Package report compares the paper titles of several literature exports.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

// headerRows is how far down the first sheet the title header is searched.
const headerRows = 5

var ErrNoTitleColumn = errors.New("no title column found")

// Dataset is one named workbook.
type Dataset struct {
	Name string
	Path string
}

// ParseDataset parses a NAME=PATH argument.
func ParseDataset(arg string) (Dataset, error) {
	name, path, ok := strings.Cut(arg, "=")
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return Dataset{}, fmt.Errorf("invalid dataset %q, expected NAME=PATH", arg)
	}
	return Dataset{Name: name, Path: path}, nil
}

// Overlap holds the titles two datasets have in common, sorted.
type Overlap struct {
	A, B   string
	Titles []string
}

// ReadTitles returns the trimmed, non-empty cells below the first header cell
// containing "title" (any case) on the workbook's first sheet.
func ReadTitles(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	headerRow, col := -1, -1
	for r := 0; r < len(rows) && r < headerRows && col < 0; r++ {
		for c, cell := range rows[r] {
			if strings.Contains(strings.ToLower(cell), "title") {
				headerRow, col = r, c
				break
			}
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTitleColumn, path)
	}

	var titles []string
	for _, row := range rows[headerRow+1:] {
		if col >= len(row) {
			continue
		}
		if title := strings.TrimSpace(row[col]); title != "" {
			titles = append(titles, title)
		}
	}
	return titles, nil
}

// Compare reads every dataset and intersects each pair in argument order.
func Compare(datasets []Dataset) ([]Overlap, error) {
	sets := make([]map[string]struct{}, len(datasets))
	for i, ds := range datasets {
		titles, err := ReadTitles(ds.Path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ds.Name, err)
		}
		set := make(map[string]struct{}, len(titles))
		for _, t := range titles {
			set[t] = struct{}{}
		}
		sets[i] = set
		log.Info().Str("dataset", ds.Name).Int("titles", len(set)).Msg("Loaded titles")
	}

	var overlaps []Overlap
	for i := range datasets {
		for j := i + 1; j < len(datasets); j++ {
			var common []string
			for t := range sets[i] {
				if _, ok := sets[j][t]; ok {
					common = append(common, t)
				}
			}
			slices.Sort(common)
			overlaps = append(overlaps, Overlap{A: datasets[i].Name, B: datasets[j].Name, Titles: common})
		}
	}
	return overlaps, nil
}

// Write renders the overlaps: a count line per pair, its titles, and a blank
// line between pairs.
func Write(w io.Writer, overlaps []Overlap) error {
	for i, o := range overlaps {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s and %s similarities: %d\n", o.A, o.B, len(o.Titles)); err != nil {
			return err
		}
		for _, t := range o.Titles {
			if _, err := fmt.Fprintln(w, t); err != nil {
				return err
			}
		}
	}
	return nil
}

// CompareTitles compares the datasets and writes the report to out. Nothing
// is written when any workbook fails to load.
func CompareTitles(datasets []Dataset, out string) error {
	if len(datasets) < 2 {
		return errors.New("at least two datasets are required")
	}
	overlaps, err := Compare(datasets)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := Write(f, overlaps); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
