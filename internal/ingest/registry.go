package ingest

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/workforce-cli/internal/config"
	"github.com/sells-group/workforce-cli/internal/model"
)

// Registry maps dataset names to their implementations.
type Registry struct {
	datasets map[string]Dataset
	order    []string // insertion order for deterministic iteration
}

// NewRegistry creates a registry populated with all seven datasets.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{
		datasets: make(map[string]Dataset),
	}

	// Employment series
	r.Register(&QCEW{cfg: cfg})
	r.Register(&Moodys{cfg: cfg})

	// Staffing patterns
	r.Register(&MCDA{cfg: cfg})
	r.Register(&USStaffing{cfg: cfg})
	r.Register(&EPProfiles{cfg: cfg})

	// Attribution shares
	r.Register(&Shares{source: model.AttributionBEA, cfg: cfg})
	r.Register(&Shares{source: model.AttributionLightcast, cfg: cfg})

	return r
}

// Register adds a dataset to the registry.
func (r *Registry) Register(d Dataset) {
	name := d.Name()
	r.datasets[name] = d
	r.order = append(r.order, name)
}

// Get returns a dataset by name.
func (r *Registry) Get(name string) (Dataset, error) {
	d, ok := r.datasets[name]
	if !ok {
		return nil, eris.Errorf("ingest: unknown dataset %q", name)
	}
	return d, nil
}

// Select returns datasets matching the given criteria.
// If group is non-nil, only datasets in that group are returned.
// If names is non-empty, only those named datasets are returned.
func (r *Registry) Select(group *Group, names []string) ([]Dataset, error) {
	if len(names) > 0 {
		var result []Dataset
		for _, name := range names {
			d, err := r.Get(name)
			if err != nil {
				return nil, err
			}
			if group != nil && d.Group() != *group {
				continue
			}
			result = append(result, d)
		}
		return result, nil
	}

	if group != nil {
		return r.ByGroup(*group), nil
	}

	return r.All(), nil
}

// ByGroup returns all datasets in the given group, in registration order.
func (r *Registry) ByGroup(group Group) []Dataset {
	var result []Dataset
	for _, name := range r.order {
		if r.datasets[name].Group() == group {
			result = append(result, r.datasets[name])
		}
	}
	return result
}

// All returns all datasets in registration order.
func (r *Registry) All() []Dataset {
	result := make([]Dataset, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.datasets[name])
	}
	return result
}

// AllNames returns all registered dataset names in registration order.
func (r *Registry) AllNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
