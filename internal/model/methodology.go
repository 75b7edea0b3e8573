package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Attribution identifies which auto-attribution table scales raw industry
// employment down to its automotive-supply-chain portion.
type Attribution string

const (
	AttributionBEA       Attribution = "bea"
	AttributionLightcast Attribution = "lightcast"
)

// Label returns the display form used in reports ("BEA", "Lightcast").
func (a Attribution) Label() string {
	switch a {
	case AttributionBEA:
		return "BEA"
	case AttributionLightcast:
		return "Lightcast"
	default:
		return string(a)
	}
}

// GrowthSource identifies which forecast extends the observed series
// past the base year.
type GrowthSource string

const (
	GrowthMoody GrowthSource = "moody"
	GrowthBLS   GrowthSource = "bls"
)

// Label returns the display form used in the forecast_source column
// ("Moody", "BLS").
func (g GrowthSource) Label() string {
	switch g {
	case GrowthMoody:
		return "Moody"
	case GrowthBLS:
		return "BLS"
	default:
		return string(g)
	}
}

// AllAttributions returns both attribution definitions in report order.
func AllAttributions() []Attribution {
	return []Attribution{AttributionBEA, AttributionLightcast}
}

// AllGrowthSources returns both growth sources in report order.
func AllGrowthSources() []GrowthSource {
	return []GrowthSource{GrowthMoody, GrowthBLS}
}

// Methodology is one branch of the 2x2 attribution x growth matrix. Every
// forecast row is tagged with the methodology that produced it so the four
// branches can be compared side by side.
type Methodology struct {
	Attribution Attribution  `json:"attribution"`
	Growth      GrowthSource `json:"growth_source"`
}

// Key returns the canonical identifier, e.g. "bea_moody". Keys are stable
// across runs and are safe for file names and database columns.
func (m Methodology) Key() string {
	return string(m.Attribution) + "_" + string(m.Growth)
}

// Label returns the display form, e.g. "BEA + Moody".
func (m Methodology) Label() string {
	return m.Attribution.Label() + " + " + m.Growth.Label()
}

// AllMethodologies returns the four branches in report order.
func AllMethodologies() []Methodology {
	return []Methodology{
		{AttributionBEA, GrowthMoody},
		{AttributionBEA, GrowthBLS},
		{AttributionLightcast, GrowthMoody},
		{AttributionLightcast, GrowthBLS},
	}
}

// ParseMethodology resolves a key like "bea_moody" (case-insensitive) to a
// Methodology. Used by CLI flags that select a subset of branches.
func ParseMethodology(key string) (Methodology, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, m := range AllMethodologies() {
		if m.Key() == k {
			return m, nil
		}
	}
	return Methodology{}, eris.Errorf("unknown methodology %q (want one of bea_moody, bea_bls, lightcast_moody, lightcast_bls)", key)
}

// ParseAttribution resolves "bea" or "lightcast" (case-insensitive).
func ParseAttribution(s string) (Attribution, error) {
	switch Attribution(strings.ToLower(strings.TrimSpace(s))) {
	case AttributionBEA:
		return AttributionBEA, nil
	case AttributionLightcast:
		return AttributionLightcast, nil
	default:
		return "", eris.Errorf("unknown attribution %q (want bea or lightcast)", s)
	}
}

// ParseGrowthSource resolves "moody" or "bls" (case-insensitive).
func ParseGrowthSource(s string) (GrowthSource, error) {
	switch GrowthSource(strings.ToLower(strings.TrimSpace(s))) {
	case GrowthMoody:
		return GrowthMoody, nil
	case GrowthBLS:
		return GrowthBLS, nil
	default:
		return "", eris.Errorf("unknown growth source %q (want moody or bls)", s)
	}
}
