package model

import (
	"regexp"
	"strings"
)

// OccLevel classifies an SOC code by its position in the occupation
// hierarchy. Shares and forecasts are computed over detailed occupations
// only; major and broad rows exist for roll-up checks.
type OccLevel string

const (
	OccLevelMajor    OccLevel = "major"
	OccLevelBroad    OccLevel = "broad"
	OccLevelDetailed OccLevel = "detailed"
	OccLevelUnknown  OccLevel = "unknown"
)

var (
	occMajorRe     = regexp.MustCompile(`^\d{2}-?0000$`)
	occBroadRe     = regexp.MustCompile(`^\d{2}-\d{2}00(?:\.\d{2})?$`)
	occBroadAltRe  = regexp.MustCompile(`^\d{4}00$`)
	occDetailRe    = regexp.MustCompile(`^\d{2}-\d{4}(?:\.\d{2})?$`)
	occDetailAltRe = regexp.MustCompile(`^\d{6}$`)
	nonDigitRe     = regexp.MustCompile(`\D`)
)

// ClassifyOccLevel maps an SOC code to its hierarchy level. Codes are
// accepted in both hyphenated ("51-4121", optionally with an O*NET ".NN"
// suffix) and bare-digit ("514121") forms.
func ClassifyOccLevel(code string) OccLevel {
	code = strings.TrimSpace(code)
	if code == "" {
		return OccLevelUnknown
	}
	switch {
	case occMajorRe.MatchString(code):
		return OccLevelMajor
	case occBroadRe.MatchString(code) || occBroadAltRe.MatchString(code):
		return OccLevelBroad
	case occDetailRe.MatchString(code) || occDetailAltRe.MatchString(code):
		return OccLevelDetailed
	default:
		return OccLevelUnknown
	}
}

// IsAllOccupations reports whether code is the 00-0000 summary row that
// totals every occupation in an industry.
func IsAllOccupations(code string) bool {
	return nonDigitRe.ReplaceAllString(code, "") == "000000"
}

// StaffingRow is one segment-occupation employment estimate from a
// staffing-pattern workbook.
type StaffingRow struct {
	SegmentID  int      `json:"segment_id"`
	Segment    string   `json:"segment_name"`
	OccCode    string   `json:"occupation_code"`
	OccTitle   string   `json:"occupation_title"`
	Year       int      `json:"year"`
	Employment float64  `json:"employment"`
	OccLevel   OccLevel `json:"occ_level"`
	IsTotal    bool     `json:"is_total_all"`
}

// OccupationShift is a national occupation share observed at the base and
// horizon years. The distributor interpolates between the two endpoints to
// move each occupation's share of its segment over time.
type OccupationShift struct {
	SegmentID    int     `json:"segment_id"`
	OccCode      string  `json:"occupation_code"`
	ShareBase    float64 `json:"share_base"`
	ShareHorizon float64 `json:"share_horizon"`
}

// OccupationForecast is one occupation-segment-year employment estimate
// under one methodology branch. HasShiftData distinguishes rows whose
// share path came from national shift data from rows that held the
// segment's base-year share constant.
type OccupationForecast struct {
	SegmentID    int          `json:"segment_id"`
	Segment      string       `json:"segment_name"`
	OccCode      string       `json:"occupation_code"`
	OccTitle     string       `json:"occupation_title"`
	Year         int          `json:"year"`
	Employment   float64      `json:"employment"`
	Attribution  Attribution  `json:"attribution"`
	Growth       GrowthSource `json:"growth_source"`
	HasShiftData bool         `json:"has_bls_shift"`
}

// Methodology returns the branch that produced this row.
func (f OccupationForecast) Methodology() Methodology {
	return Methodology{Attribution: f.Attribution, Growth: f.Growth}
}

// EducationGroup buckets the published typical-entry-education levels into
// three tiers for segment summaries. Unrecognized levels map to the empty
// group and are excluded from summaries.
type EducationGroup string

const (
	EducationHSOrLess    EducationGroup = "HS or less"
	EducationSomeCollege EducationGroup = "SC or associate's"
	EducationBAPlus      EducationGroup = "BA+"
)

// GroupEducation maps a typical-entry-education label to its summary group.
func GroupEducation(level string) EducationGroup {
	switch strings.TrimSpace(level) {
	case "No formal educational credential", "High school diploma or equivalent":
		return EducationHSOrLess
	case "Postsecondary nondegree award", "Associate's degree", "Some college, no degree":
		return EducationSomeCollege
	case "Bachelor's degree", "Master's degree", "Doctoral or professional degree":
		return EducationBAPlus
	default:
		return ""
	}
}

// OccupationProfile carries the national employment-projections attributes
// attached to a detailed occupation: entry education, prior experience, and
// on-the-job training.
type OccupationProfile struct {
	OccCode          string         `json:"occupation_code"`
	EntryEducation   string         `json:"entry_education"`
	WorkExperience   string         `json:"work_experience"`
	OnTheJobTraining string         `json:"on_the_job_training"`
	EducationGroup   EducationGroup `json:"education_group,omitempty"`
}
