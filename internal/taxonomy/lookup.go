package taxonomy

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/workforce-cli/internal/fetcher"
)

// LoadAssignments reads the segment assignment lookup CSV and returns a
// validated Taxonomy. The file needs naics_code, segment_id, segment_name
// and stage columns; naics_title is optional. Header matching is
// case-insensitive and ignores spaces so hand-edited exports keep working.
func LoadAssignments(path string) (*Taxonomy, error) {
	header, rows, err := fetcher.ReadCSVFile(path, fetcher.CSVOptions{TrimSpace: true})
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read assignments %s", path)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[normalizeHeader(h)] = i
	}

	required := []string{"naics_code", "segment_id", "segment_name", "stage"}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, eris.Errorf("taxonomy: %s missing required column %q (have: %s)",
				path, name, strings.Join(header, ", "))
		}
	}

	assignments := make([]Assignment, 0, len(rows))
	for i, row := range rows {
		get := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		code := get("naics_code")
		if code == "" {
			continue // blank padding rows at the bottom of exports
		}
		idStr := get("segment_id")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, eris.Wrapf(err, "taxonomy: %s row %d: bad segment_id %q for naics %s",
				path, i+2, idStr, code)
		}
		assignments = append(assignments, Assignment{
			NAICS:     code,
			Title:     get("naics_title"),
			SegmentID: id,
			Segment:   get("segment_name"),
			Stage:     get("stage"),
		})
	}

	t, err := New(assignments)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: %s", path)
	}
	return t, nil
}

// normalizeHeader lowercases and strips spaces/BOM so "NAICS Code",
// "naics_code" and " naics_code" all match.
func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\uFEFF")
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	return h
}
