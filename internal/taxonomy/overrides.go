package taxonomy

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Overrides reconciles NAICS coding differences between sources. Moody's
// mnemonics occasionally carry pre-2022 codes (retail 4471 vs 4571), and a
// few staffing-pattern industries are only published at an aggregate level
// that must be rolled up from members.
type Overrides struct {
	// NAICS remaps a source code to the canonical code used in the
	// assignment lookup.
	NAICS map[string]string `yaml:"naics"`
	// Rollups lists, per aggregate staffing industry, the member codes
	// whose employment is summed to build its weight.
	Rollups map[string][]string `yaml:"rollups"`
}

// DefaultOverrides returns the built-in reconciliation table. These are the
// corrections the source data is known to need; a YAML file extends or
// replaces them per deployment.
func DefaultOverrides() *Overrides {
	return &Overrides{
		NAICS: map[string]string{
			"4471": "4571", // gasoline stations, 2017 -> 2022 NAICS
		},
		Rollups: map[string][]string{
			"3270": {"3272"},         // nonmetallic mineral products from glass
			"4840": {"4841", "4842"}, // truck transportation from general + specialized freight
		},
	}
}

// LoadOverrides reads overrides from a YAML file, filling omitted sections
// from the defaults. An empty path returns the defaults unchanged.
func LoadOverrides(path string) (*Overrides, error) {
	if path == "" {
		return DefaultOverrides(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read overrides %s", path)
	}

	// The YAML has a top-level "overrides" key
	var wrapper struct {
		Overrides Overrides `yaml:"overrides"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "taxonomy: parse overrides %s", path)
	}

	o := &wrapper.Overrides
	defaults := DefaultOverrides()
	if o.NAICS == nil {
		o.NAICS = defaults.NAICS
	}
	if o.Rollups == nil {
		o.Rollups = defaults.Rollups
	}
	return o, nil
}

// Harmonize maps a source NAICS code to its canonical form, returning the
// input unchanged when no override applies.
func (o *Overrides) Harmonize(code string) string {
	if mapped, ok := o.NAICS[code]; ok {
		return mapped
	}
	return code
}

// RollupMembers returns the member codes for an aggregate industry, or nil
// when the code is not an aggregate.
func (o *Overrides) RollupMembers(code string) []string {
	return o.Rollups[code]
}
