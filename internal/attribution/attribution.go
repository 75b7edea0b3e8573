// Package attribution scales the observed employment series down to its
// automotive portion. Each segment gets one share per attribution
// definition: the employment-weighted mean of its member industries'
// shares, weighted by base-year employment and held constant across the
// forecast horizon.
package attribution

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/workforce-cli/internal/model"
	"github.com/sells-group/workforce-cli/internal/store"
	"github.com/sells-group/workforce-cli/internal/taxonomy"
)

// Splitter applies one attribution definition to the raw rollup. An
// industry with no published share, or no base-year employment to weight
// it, is left out of both the numerator and the denominator of the
// weighted mean rather than counted as zero share.
type Splitter struct {
	store    store.Store
	tax      *taxonomy.Taxonomy
	baseYear int
}

// New creates a Splitter weighting shares by baseYear employment.
func New(st store.Store, tax *taxonomy.Taxonomy, baseYear int) *Splitter {
	return &Splitter{store: st, tax: tax, baseYear: baseYear}
}

// Result summarizes one attribution pass.
type Result struct {
	Source            model.Attribution `json:"source"`
	Segments          int               `json:"segments"`
	MatchedNAICS      int               `json:"matched_naics"`
	ExcludedNAICS     int               `json:"excluded_naics"`
	UncoveredSegments int               `json:"uncovered_segments"`
	SegmentPoints     int               `json:"segment_points"`
	StagePoints       int               `json:"stage_points"`
	AuditRows         int               `json:"audit_rows"`
}

type segmentShare struct {
	share    float64
	matched  int
	min, max float64
}

// Run computes the per-segment auto shares for one definition, scales the
// raw segment and stage series by them, and replaces the adjusted series
// (keyed by attribution, no growth source yet), the coverage diagnostics,
// and the NAICS-level share audit. A segment with no usable share
// coverage carries its raw employment unchanged (share 1.0) and is
// flagged in the diagnostics with a zero matched count.
func (s *Splitter) Run(ctx context.Context, source model.Attribution) (*Result, error) {
	shares, err := s.store.AttributionShares(ctx, source)
	if err != nil {
		return nil, eris.Wrapf(err, "attribution: load %s shares", source)
	}
	if len(shares) == 0 {
		return nil, eris.Errorf("attribution: no %s shares staged; run ingest first", source)
	}
	shareByNAICS := make(map[string]float64, len(shares))
	for _, sh := range shares {
		shareByNAICS[sh.NAICS] = sh.Share
	}

	emp, err := s.store.IndustryEmployment(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "attribution: load industry employment")
	}
	weightByNAICS := make(map[string]float64)
	empByNAICS := make(map[string][]model.IndustryEmployment)
	for _, r := range emp {
		if r.Employment == nil {
			continue // suppressed cells live in the suppression audit
		}
		if r.Year == s.baseYear {
			weightByNAICS[r.NAICS] = *r.Employment
		}
		empByNAICS[r.NAICS] = append(empByNAICS[r.NAICS], r)
	}

	rawSeg, err := s.store.SegmentSeries(ctx, store.SeriesKey{})
	if err != nil {
		return nil, eris.Wrap(err, "attribution: load observed segment series")
	}
	if len(rawSeg) == 0 {
		return nil, eris.New("attribution: no observed segment series; run the aggregator first")
	}

	present := make(map[int]bool)
	for _, p := range rawSeg {
		present[p.SegmentID] = true
	}

	res := &Result{Source: source}
	shareBySegment := make(map[int]segmentShare)
	var audit []model.AttributionAudit
	for _, seg := range s.tax.Segments() {
		if !present[seg.ID] {
			continue
		}
		var num, den float64
		ss := segmentShare{}
		for _, code := range s.tax.CodesFor(seg.ID) {
			share, hasShare := shareByNAICS[code]
			for _, r := range empByNAICS[code] {
				row := model.AttributionAudit{
					Source:        source,
					NAICS:         code,
					SegmentID:     seg.ID,
					Year:          r.Year,
					EmploymentRaw: *r.Employment,
				}
				if hasShare {
					adj := *r.Employment * share
					row.Share = &share
					row.EmploymentAdjusted = &adj
				}
				audit = append(audit, row)
			}
			weight, hasWeight := weightByNAICS[code]
			if !hasShare || !hasWeight {
				res.ExcludedNAICS++
				continue
			}
			if ss.matched == 0 {
				ss.min, ss.max = share, share
			} else {
				if share < ss.min {
					ss.min = share
				}
				if share > ss.max {
					ss.max = share
				}
			}
			ss.matched++
			num += weight * share
			den += weight
		}
		if den == 0 {
			// Documented fallback: carry the raw series unchanged rather
			// than zeroing the segment out of the forecast.
			ss.share = 1.0
			res.UncoveredSegments++
			zap.L().Warn("attribution: segment has no share coverage, carrying raw employment",
				zap.String("source", string(source)),
				zap.Int("segment_id", seg.ID),
				zap.String("segment", seg.Label),
				zap.Int("member_naics", len(s.tax.CodesFor(seg.ID))),
			)
		} else {
			ss.share = num / den
		}
		if ss.share > 1 {
			zap.L().Warn("attribution: weighted share above 1",
				zap.String("source", string(source)),
				zap.Int("segment_id", seg.ID),
				zap.Float64("share", ss.share),
			)
		}
		res.MatchedNAICS += ss.matched
		shareBySegment[seg.ID] = ss
	}

	type stageKey struct {
		stage string
		year  int
	}
	stageSums := make(map[stageKey]float64)
	years := make(map[int]bool)

	adjusted := make([]model.SegmentPoint, 0, len(rawSeg))
	baseRaw := make(map[int]float64)
	for _, p := range rawSeg {
		share := 1.0
		if ss, ok := shareBySegment[p.SegmentID]; ok {
			share = ss.share
		} else {
			zap.L().Warn("attribution: segment missing from taxonomy, carrying raw employment",
				zap.Int("segment_id", p.SegmentID))
		}
		if p.Year == s.baseYear {
			baseRaw[p.SegmentID] = p.Employment
		}
		p.Employment *= share
		adjusted = append(adjusted, p)
		years[p.Year] = true
		if seg, ok := s.tax.Segment(p.SegmentID); ok {
			stageSums[stageKey{stage: seg.Stage, year: p.Year}] += p.Employment
		}
	}

	yearList := make([]int, 0, len(years))
	for y := range years {
		yearList = append(yearList, y)
	}
	sort.Ints(yearList)

	var stagePoints []model.StagePoint
	for _, stage := range taxonomy.StageOrder {
		for _, y := range yearList {
			sum, ok := stageSums[stageKey{stage: stage, year: y}]
			if !ok {
				continue
			}
			stagePoints = append(stagePoints, model.StagePoint{
				Stage:      stage,
				Year:       y,
				Employment: sum,
				ValueType:  model.ValueObserved,
			})
		}
	}

	var diags []model.SegmentDiagnostics
	for _, seg := range s.tax.Segments() {
		if !present[seg.ID] {
			continue
		}
		ss := shareBySegment[seg.ID]
		raw := baseRaw[seg.ID]
		diags = append(diags, model.SegmentDiagnostics{
			Source:             source,
			SegmentID:          seg.ID,
			Segment:            seg.Label,
			EmploymentRaw:      raw,
			EmploymentAdjusted: raw * ss.share,
			NAICSCount:         len(s.tax.CodesFor(seg.ID)),
			MatchedCount:       ss.matched,
			ShareMin:           ss.min,
			ShareMax:           ss.max,
			ShareWeighted:      ss.share,
		})
	}

	sort.Slice(audit, func(i, j int) bool {
		if audit[i].NAICS != audit[j].NAICS {
			return audit[i].NAICS < audit[j].NAICS
		}
		return audit[i].Year < audit[j].Year
	})

	key := store.SeriesKey{Attribution: source}
	if err := s.store.ReplaceSegmentSeries(ctx, key, adjusted); err != nil {
		return nil, eris.Wrapf(err, "attribution: store %s segment series", source)
	}
	if err := s.store.ReplaceStageSeries(ctx, key, stagePoints); err != nil {
		return nil, eris.Wrapf(err, "attribution: store %s stage series", source)
	}
	if err := s.store.ReplaceSegmentDiagnostics(ctx, source, diags); err != nil {
		return nil, eris.Wrapf(err, "attribution: store %s diagnostics", source)
	}
	if err := s.store.ReplaceAttributionAudit(ctx, source, audit); err != nil {
		return nil, eris.Wrapf(err, "attribution: store %s share audit", source)
	}

	res.Segments = len(diags)
	res.SegmentPoints = len(adjusted)
	res.StagePoints = len(stagePoints)
	res.AuditRows = len(audit)

	zap.L().Info("attribution: adjusted series built",
		zap.String("source", string(source)),
		zap.Int("segments", res.Segments),
		zap.Int("matched_naics", res.MatchedNAICS),
		zap.Int("excluded_naics", res.ExcludedNAICS),
		zap.Int("uncovered_segments", res.UncoveredSegments),
	)
	return res, nil
}
