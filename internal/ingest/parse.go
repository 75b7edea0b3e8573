package ingest

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// parseFloat64 parses a numeric cell, tolerating thousands separators and
// trailing percent signs. Suppression flags and anything else non-numeric
// report ok=false.
func parseFloat64(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseFloat64Ptr parses a numeric cell into a nullable value. Suppressed or
// blank cells come back nil.
func parseFloat64Ptr(s string) *float64 {
	v, ok := parseFloat64(s)
	if !ok {
		return nil
	}
	return &v
}

// parseIntOr parses a string as an integer, returning def if parsing fails.
func parseIntOr(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	// Workbook cells often render integers as "2024.0".
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// trimQuotes removes surrounding double quotes from a CSV field.
func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// normalizeCol lowercases a header and collapses whitespace to underscores:
// "Series ID" → "series_id", "OCCCD" → "occcd".
func normalizeCol(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), "_")
}

// mapColumnsNormalized builds a normalized column name → index map.
func mapColumnsNormalized(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[normalizeCol(col)] = i
	}
	return m
}

// getColN gets a column value by normalized name.
func getColN(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[normalizeCol(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// findColumn locates the first header whose lowercased text contains every
// token. Projection workbooks rename columns slightly between vintages, so
// matching is by fragment rather than exact name.
func findColumn(header []string, tokens ...string) (int, error) {
	lower := make([]string, len(tokens))
	for i, tok := range tokens {
		lower[i] = strings.ToLower(tok)
	}
	for i, col := range header {
		c := strings.ToLower(col)
		all := true
		for _, tok := range lower {
			if !strings.Contains(c, tok) {
				all = false
				break
			}
		}
		if all {
			return i, nil
		}
	}
	return 0, eris.Errorf("ingest: no column matching tokens %v", tokens)
}

// annualHeaderYear extracts the year from an annual-average column header
// like "Annual\n2024".
func annualHeaderYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "Annual") {
		return 0, false
	}
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return 0, false
	}
	year, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return 0, false
	}
	return year, true
}

var yearEndLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// yearEndHeaderYear extracts the year from a year-end date column header
// like "2024-12-31 00:00:00". Only December 31 headers count; quarterly
// and monthly columns are ignored.
func yearEndHeaderYear(s string) (int, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range yearEndLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Month() == time.December && t.Day() == 31 {
			return t.Year(), true
		}
		return 0, false
	}
	return 0, false
}

// resolvePath joins a configured source path with the data directory unless
// the path is already absolute.
func resolvePath(dataDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dataDir, path)
}
