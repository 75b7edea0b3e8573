package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAssignments() []Assignment {
	return []Assignment{
		{NAICS: "3311", SegmentID: 1, Segment: "Materials & Processing", Stage: StageUpstream},
		{NAICS: "3312", SegmentID: 1, Segment: "Materials & Processing", Stage: StageUpstream},
		{NAICS: "3315", SegmentID: 3, Segment: "3. Forging & Foundries", Stage: StageUpstream},
		{NAICS: "3363", SegmentID: 5, Segment: "Component Systems - brakes, electrical, seating", Stage: StageUpstream},
		{NAICS: "3361", SegmentID: 7, Segment: "Core Automotive", Stage: StageOEM},
		{NAICS: "4411", SegmentID: 9, Segment: "Dealers, Maintenance, & Repair", Stage: StageDownstream},
		{NAICS: "4841", SegmentID: 10, Segment: "Logistics", Stage: StageDownstream},
	}
}

func TestCanonicalLabel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		segmentID int
		input     string
		want      string
	}{
		{"bare name", 1, "Materials & Processing", "1. Materials & Processing"},
		{"already prefixed", 2, "2. Equipment Manufacturing", "2. Equipment Manufacturing"},
		{"descriptive suffix stripped", 5, "Component Systems - brakes, electrical, seating", "5. Component Systems"},
		{"prefixed with suffix", 7, "7. Core Automotive - combined", "7. Core Automotive"},
		{"surrounding whitespace", 6, "  Engineering & Design  ", "6. Engineering & Design"},
		{"empty name falls back to id", 4, "", "4"},
		{"suffix only", 3, " - legacy", "3"},
		{"double digit id", 10, "Logistics", "10. Logistics"},
		{"unrelated prefix kept as text", 6, "5. Engineering & Design", "6. 5. Engineering & Design"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CanonicalLabel(tt.segmentID, tt.input))
		})
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("valid assignments", func(t *testing.T) {
		t.Parallel()
		tax, err := New(testAssignments())
		require.NoError(t, err)
		assert.Equal(t, 7, tax.Len())

		a, ok := tax.Assignment("3361")
		require.True(t, ok)
		assert.Equal(t, 7, a.SegmentID)
		assert.Equal(t, "7. Core Automotive", a.Segment)
		assert.Equal(t, StageOEM, a.Stage)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("duplicate code same segment is deduped", func(t *testing.T) {
		t.Parallel()
		rows := testAssignments()
		rows = append(rows, Assignment{NAICS: "3311", SegmentID: 1, Segment: "Materials & Processing", Stage: StageUpstream})
		tax, err := New(rows)
		require.NoError(t, err)
		assert.Equal(t, 7, tax.Len())
	})

	t.Run("conflicting segment for code", func(t *testing.T) {
		t.Parallel()
		rows := testAssignments()
		rows = append(rows, Assignment{NAICS: "3311", SegmentID: 2, Segment: "Equipment Manufacturing", Stage: StageUpstream})
		_, err := New(rows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "3311")
	})

	t.Run("conflicting stage for segment", func(t *testing.T) {
		t.Parallel()
		rows := testAssignments()
		rows = append(rows, Assignment{NAICS: "3399", SegmentID: 1, Segment: "Materials & Processing", Stage: StageOEM})
		_, err := New(rows)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "segment 1")
	})

	t.Run("unknown stage", func(t *testing.T) {
		t.Parallel()
		_, err := New([]Assignment{{NAICS: "3311", SegmentID: 1, Segment: "x", Stage: "Midstream"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Midstream")
	})

	t.Run("invalid segment id", func(t *testing.T) {
		t.Parallel()
		_, err := New([]Assignment{{NAICS: "3311", SegmentID: 0, Segment: "x", Stage: StageUpstream}})
		assert.Error(t, err)
	})
}

func TestTaxonomyLookups(t *testing.T) {
	t.Parallel()

	tax, err := New(testAssignments())
	require.NoError(t, err)

	t.Run("segment for code", func(t *testing.T) {
		t.Parallel()
		seg, ok := tax.SegmentFor(" 4411 ")
		require.True(t, ok)
		assert.Equal(t, 9, seg.ID)
		assert.Equal(t, "9. Dealers, Maintenance, & Repair", seg.Label)
		assert.Equal(t, StageDownstream, seg.Stage)

		_, ok = tax.SegmentFor("9999")
		assert.False(t, ok)
	})

	t.Run("segments sorted by id", func(t *testing.T) {
		t.Parallel()
		segs := tax.Segments()
		require.Len(t, segs, 6)
		ids := make([]int, len(segs))
		for i, s := range segs {
			ids[i] = s.ID
		}
		assert.Equal(t, []int{1, 3, 5, 7, 9, 10}, ids)
	})

	t.Run("segments by stage", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []int{1, 3, 5}, tax.SegmentsByStage(StageUpstream))
		assert.Equal(t, []int{7}, tax.SegmentsByStage(StageOEM))
		assert.Equal(t, []int{9, 10}, tax.SegmentsByStage(StageDownstream))
		assert.Empty(t, tax.SegmentsByStage("Midstream"))
	})

	t.Run("codes for segment", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"3311", "3312"}, tax.CodesFor(1))
		assert.Empty(t, tax.CodesFor(2))
	})

	t.Run("all codes sorted", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []string{"3311", "3312", "3315", "3361", "3363", "4411", "4841"}, tax.Codes())
	})
}

func TestTaxonomyMissing(t *testing.T) {
	t.Parallel()

	tax, err := New(testAssignments())
	require.NoError(t, err)

	t.Run("reports unmapped codes sorted and deduped", func(t *testing.T) {
		t.Parallel()
		missing := tax.Missing([]string{"3361", "9999", "1111", "9999", "", "3311"})
		assert.Equal(t, []string{"1111", "9999"}, missing)
	})

	t.Run("all covered", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, tax.Missing([]string{"3361", "4411"}))
		assert.NoError(t, tax.RequireAll([]string{"3361", "4411"}))
	})

	t.Run("require all names every missing code", func(t *testing.T) {
		t.Parallel()
		err := tax.RequireAll([]string{"3361", "9999", "1111"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1111, 9999")
		assert.Contains(t, err.Error(), "2 naics codes")
	})
}

func TestStageRank(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, StageRank(StageUpstream))
	assert.Equal(t, 1, StageRank(StageOEM))
	assert.Equal(t, 2, StageRank(StageDownstream))
	assert.Equal(t, 3, StageRank("Sideways"))
}

func TestSegmentLabels(t *testing.T) {
	t.Parallel()

	assert.Len(t, SegmentLabels, 10)
	assert.Equal(t, "1. Materials & Processing", SegmentLabels[1])
	assert.Equal(t, "7. Core Automotive", SegmentLabels[7])
	assert.Equal(t, "10. Logistics", SegmentLabels[10])

	assert.Equal(t, "8. Motor Vehicle Parts, Materials, & Products Sales", SegmentLabel(8))
	assert.Equal(t, "Segment 11", SegmentLabel(11))
}
