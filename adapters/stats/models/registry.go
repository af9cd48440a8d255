package models

import (
	"zebrabmd/domain/core"
)

// Registry holds the dose-response model families in canonical order
type Registry struct {
	models []DoseResponseModel
}

// NewRegistry creates a registry with all eight model families
func NewRegistry() *Registry {
	return &Registry{
		models: []DoseResponseModel{
			NewLogisticModel(),
			NewGammaModel(),
			NewWeibullModel(),
			NewLogLogisticModel(),
			NewProbitModel(),
			NewLogProbitModel(),
			NewMultistageModel(),
			NewQuantalLinearModel(),
		},
	}
}

// All returns every registered model in canonical order
func (r *Registry) All() []DoseResponseModel {
	return append([]DoseResponseModel(nil), r.models...)
}

// Get looks a model up by name
func (r *Registry) Get(name string) (DoseResponseModel, bool) {
	for _, m := range r.models {
		if m.Name() == name {
			return m, true
		}
	}
	return nil, false
}

// Select resolves names to models, keeping canonical order. Empty names selects all.
func (r *Registry) Select(names []string) ([]DoseResponseModel, error) {
	if len(names) == 0 {
		return r.All(), nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.Get(name); !ok {
			return nil, core.NewUnknownModelError(name)
		}
		wanted[name] = true
	}

	selected := make([]DoseResponseModel, 0, len(wanted))
	for _, m := range r.models {
		if wanted[m.Name()] {
			selected = append(selected, m)
		}
	}
	return selected, nil
}

// Names returns all model names
func (r *Registry) Names() []string {
	names := make([]string, len(r.models))
	for i, m := range r.models {
		names[i] = m.Name()
	}
	return names
}
