package stickers

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

func parseListCell(s string) []string {
	s = strings.ReplaceAll(s, "／", "/")
	parts := strings.Split(s, "/")
	out := []string{}
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" && t != "-" {
			out = append(out, t)
		}
	}
	return out
}

// LoadCatalog loads the sticker CSVs from a data directory.
// It expects at least stickers.csv; custom_stickers.csv is optional.
// Relative image paths are resolved against dataDir.
func LoadCatalog(dataDir string) ([]Sticker, error) {
	files := []struct {
		path   string
		custom bool
	}{
		{filepath.Join(dataDir, "stickers.csv"), false},
		{filepath.Join(dataDir, "custom_stickers.csv"), true},
	}

	var all []Sticker
	var found bool
	for _, f := range files {
		if _, err := os.Stat(f.path); err != nil {
			// skip missing files
			continue
		}
		found = true
		ss, err := loadSingleCSV(f.path, dataDir, f.custom)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", f.path, err)
		}
		all = append(all, ss...)
	}
	if !found {
		return nil, fmt.Errorf("no sticker CSVs found in %s", dataDir)
	}
	return all, nil
}

func loadSingleCSV(path, dataDir string, custom bool) ([]Sticker, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()

	r := csv.NewReader(fp)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("csv %s has no header", path)
	}
	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.TrimSpace(h)] = i
	}

	get := func(row []string, name string) string {
		if idx, ok := cols[name]; ok && idx < len(row) {
			return strings.TrimSpace(row[idx])
		}
		return ""
	}

	out := []Sticker{}
	for _, row := range rows[1:] {
		s := Sticker{
			ID:       get(row, "id"),
			Name:     get(row, "name"),
			Tags:     parseListCell(get(row, "tags")),
			ImageURL: resolveImage(get(row, "image"), dataDir),
			Custom:   custom,
		}
		if s.ID == "" {
			continue
		}
		s.Width, _ = strconv.Atoi(get(row, "width"))
		s.Height, _ = strconv.Atoi(get(row, "height"))
		out = append(out, s)
	}
	return out, nil
}

func resolveImage(ref, dataDir string) string {
	if ref == "" || strings.Contains(ref, "://") || strings.HasPrefix(ref, "data:") || filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(dataDir, ref)
}
