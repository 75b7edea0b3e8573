package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/workforce-cli/internal/fetcher"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

// initStore opens the staging database at the configured path, creating the
// parent directory on first use.
func initStore() (store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, eris.New("store.path is not configured")
	}
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "create store directory")
		}
	}
	return store.NewSQLite(cfg.Store.Path)
}

// initTaxonomy loads the segment assignment lookup every compute stage keys
// on. A NAICS code staged without an assignment halts its stage, so this is
// the file to fix first.
func initTaxonomy() (*taxonomy.Taxonomy, error) {
	tax, err := taxonomy.LoadAssignments(cfg.Data.LookupPath)
	if err != nil {
		return nil, eris.Wrap(err, "load segment assignments")
	}
	return tax, nil
}

// newFetcher builds the HTTP client used by datasets that download their
// source file before staging it.
func newFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
	})
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
