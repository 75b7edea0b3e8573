package growth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.New([]taxonomy.Assignment{
		{NAICS: "3311", Title: "Iron & Steel Mills", SegmentID: 1, Segment: "Materials & Processing", Stage: taxonomy.StageUpstream},
		{NAICS: "3315", Title: "Foundries", SegmentID: 3, Segment: "Forging & Foundries", Stage: taxonomy.StageUpstream},
		{NAICS: "3361", Title: "Motor Vehicle Mfg", SegmentID: 7, Segment: "Core Automotive", Stage: taxonomy.StageOEM},
		{NAICS: "3363", Title: "Motor Vehicle Parts Mfg", SegmentID: 7, Segment: "Core Automotive", Stage: taxonomy.StageOEM},
		{NAICS: "8111", Title: "Automotive Repair", SegmentID: 9, Segment: "Dealers, Maintenance, & Repair", Stage: taxonomy.StageDownstream},
	})
	require.NoError(t, err)
	return tax
}

func f64(v float64) *float64 { return &v }
