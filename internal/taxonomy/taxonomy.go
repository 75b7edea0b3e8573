// Package taxonomy defines the automotive supply-chain segmentation used
// throughout the pipeline: the ten named segments, the three-stage grouping
// (Upstream, OEM, Downstream), and the NAICS-to-segment assignment table that
// every aggregation joins against.
//
// Segment labels and stage ordering are fixed; which NAICS codes belong to
// which segment comes from the assignment lookup loaded at runtime, so the
// mapping can be revised without a code change.
package taxonomy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Stage names, in report order. Every assignment row must use one of these.
const (
	StageUpstream   = "Upstream"
	StageOEM        = "OEM"
	StageDownstream = "Downstream"
)

// StageOrder is the display/sort order for stage-level output.
var StageOrder = []string{StageUpstream, StageOEM, StageDownstream}

// StageRank returns the sort position of a stage, or len(StageOrder) for
// anything unrecognized so unknown stages sink to the bottom instead of
// panicking.
func StageRank(stage string) int {
	for i, s := range StageOrder {
		if s == stage {
			return i
		}
	}
	return len(StageOrder)
}

// SegmentLabels are the canonical display labels for the ten supply-chain
// segments. The numeric prefix is part of the label on purpose: it keeps
// spreadsheet sorts in pipeline order.
var SegmentLabels = map[int]string{
	1:  "1. Materials & Processing",
	2:  "2. Equipment Manufacturing",
	3:  "3. Forging & Foundries",
	4:  "4. Parts & Machining",
	5:  "5. Component Systems",
	6:  "6. Engineering & Design",
	7:  "7. Core Automotive",
	8:  "8. Motor Vehicle Parts, Materials, & Products Sales",
	9:  "9. Dealers, Maintenance, & Repair",
	10: "10. Logistics",
}

// SegmentLabel returns the canonical label for a segment ID, or a generic
// "Segment N" for IDs outside the known ten.
func SegmentLabel(id int) string {
	if l, ok := SegmentLabels[id]; ok {
		return l
	}
	return fmt.Sprintf("Segment %d", id)
}

// CanonicalLabel normalizes a segment label to the "N. Name" form. Source
// files are inconsistent: some carry descriptive suffixes after " - ", some
// already include the numeric prefix, some have neither. The rule is: take
// the text before the first " - ", trim it, and prepend "N. " unless it is
// already there. An empty name falls back to the bare segment number.
func CanonicalLabel(segmentID int, name string) string {
	base := strings.TrimSpace(strings.SplitN(name, " - ", 2)[0])
	prefix := fmt.Sprintf("%d. ", segmentID)
	if strings.HasPrefix(base, prefix) {
		return base
	}
	if base == "" {
		return fmt.Sprintf("%d", segmentID)
	}
	return prefix + base
}

// Segment is one of the ten supply-chain segments.
type Segment struct {
	ID    int
	Label string
	Stage string
}

// Assignment maps a single 4-digit NAICS industry to its segment.
type Assignment struct {
	NAICS     string
	Title     string
	SegmentID int
	Segment   string // raw label from the lookup, canonicalized by New
	Stage     string
}

// Taxonomy is the validated NAICS-to-segment mapping. It guarantees each
// code resolves to exactly one segment and each segment to exactly one
// stage, which is what lets downstream joins be plain map lookups.
type Taxonomy struct {
	byNAICS   map[string]Assignment
	segments  map[int]Segment
	byStage   map[string][]int
	bySegment map[int][]string
}

// New builds a Taxonomy from assignment rows, canonicalizing labels and
// rejecting contradictions (same code in two segments, same segment in two
// stages, unknown stage names).
func New(assignments []Assignment) (*Taxonomy, error) {
	if len(assignments) == 0 {
		return nil, eris.New("taxonomy: no segment assignments")
	}

	t := &Taxonomy{
		byNAICS:   make(map[string]Assignment),
		segments:  make(map[int]Segment),
		byStage:   make(map[string][]int),
		bySegment: make(map[int][]string),
	}

	for _, a := range assignments {
		a.NAICS = strings.TrimSpace(a.NAICS)
		if a.NAICS == "" {
			return nil, eris.New("taxonomy: assignment with empty naics code")
		}
		if a.SegmentID <= 0 {
			return nil, eris.Errorf("taxonomy: naics %s has invalid segment id %d", a.NAICS, a.SegmentID)
		}
		if StageRank(a.Stage) == len(StageOrder) {
			return nil, eris.Errorf("taxonomy: naics %s has unknown stage %q", a.NAICS, a.Stage)
		}
		a.Segment = CanonicalLabel(a.SegmentID, a.Segment)

		if prev, ok := t.byNAICS[a.NAICS]; ok {
			if prev.SegmentID != a.SegmentID {
				return nil, eris.Errorf("taxonomy: naics %s assigned to both segment %d and %d",
					a.NAICS, prev.SegmentID, a.SegmentID)
			}
			// Exact duplicate row, keep the first.
			continue
		}
		t.byNAICS[a.NAICS] = a

		if seg, ok := t.segments[a.SegmentID]; ok {
			if seg.Stage != a.Stage {
				return nil, eris.Errorf("taxonomy: segment %d mapped to both stage %q and %q",
					a.SegmentID, seg.Stage, a.Stage)
			}
		} else {
			t.segments[a.SegmentID] = Segment{ID: a.SegmentID, Label: a.Segment, Stage: a.Stage}
			t.byStage[a.Stage] = append(t.byStage[a.Stage], a.SegmentID)
		}
		t.bySegment[a.SegmentID] = append(t.bySegment[a.SegmentID], a.NAICS)
	}

	for _, ids := range t.byStage {
		sort.Ints(ids)
	}
	for _, codes := range t.bySegment {
		sort.Strings(codes)
	}
	return t, nil
}

// Assignment returns the assignment for a NAICS code.
func (t *Taxonomy) Assignment(naics string) (Assignment, bool) {
	a, ok := t.byNAICS[strings.TrimSpace(naics)]
	return a, ok
}

// SegmentFor returns the segment a NAICS code belongs to.
func (t *Taxonomy) SegmentFor(naics string) (Segment, bool) {
	a, ok := t.Assignment(naics)
	if !ok {
		return Segment{}, false
	}
	return t.segments[a.SegmentID], true
}

// Segment returns a segment by ID.
func (t *Taxonomy) Segment(id int) (Segment, bool) {
	s, ok := t.segments[id]
	return s, ok
}

// Segments returns all segments sorted by ID.
func (t *Taxonomy) Segments() []Segment {
	out := make([]Segment, 0, len(t.segments))
	for _, s := range t.segments {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SegmentsByStage returns segment IDs for a stage, sorted.
func (t *Taxonomy) SegmentsByStage(stage string) []int {
	return t.byStage[stage]
}

// CodesFor returns the NAICS codes assigned to a segment, sorted.
func (t *Taxonomy) CodesFor(segmentID int) []string {
	return t.bySegment[segmentID]
}

// Codes returns every assigned NAICS code, sorted.
func (t *Taxonomy) Codes() []string {
	out := make([]string, 0, len(t.byNAICS))
	for c := range t.byNAICS {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of assigned NAICS codes.
func (t *Taxonomy) Len() int { return len(t.byNAICS) }

// Missing returns the codes from the input that have no assignment, sorted
// and deduplicated. Callers decide whether that is fatal; for employment
// aggregation it is, since an unmapped industry silently drops jobs.
func (t *Taxonomy) Missing(codes []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		if _, ok := t.byNAICS[c]; !ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// RequireAll returns an error naming every unmapped code, or nil when all
// codes are covered.
func (t *Taxonomy) RequireAll(codes []string) error {
	missing := t.Missing(codes)
	if len(missing) == 0 {
		return nil
	}
	return eris.Errorf("taxonomy: %d naics codes missing segment assignment: %s",
		len(missing), strings.Join(missing, ", "))
}
