package schema

import (
	"tourismcli/pkg/contracts"
	"tourismcli/pkg/contracts/domain"
)

// Dictionary documents the observation dataset for downstream consumers
type Dictionary struct {
	Dataset     string            `json:"dataset" yaml:"dataset"`
	Description string            `json:"description" yaml:"description"`
	Format      string            `json:"format_version" yaml:"format_version"`
	Coverage    CoverageNote      `json:"coverage" yaml:"coverage"`
	Fields      []DictionaryEntry `json:"fields" yaml:"fields"`
	Metrics     []MetricEntry     `json:"metrics" yaml:"metrics"`
	Dimensions  []DimensionEntry  `json:"dimensions" yaml:"dimensions"`
}

// DictionaryEntry describes one column
type DictionaryEntry struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Nullable    bool     `json:"nullable" yaml:"nullable"`
	Unit        string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Description string   `json:"description" yaml:"description"`
	Allowed     []string `json:"allowed,omitempty" yaml:"allowed,omitempty"`
	Constraints []string `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// MetricEntry names a metric and its canonical unit
type MetricEntry struct {
	Name string `json:"name" yaml:"name"`
	Unit string `json:"unit" yaml:"unit"`
}

// DimensionEntry lists the vocabulary of one dimension; empty means open-ended.
type DimensionEntry struct {
	Name   string   `json:"name" yaml:"name"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// CoverageNote documents the methodological break
type CoverageNote struct {
	BreakPeriod string `json:"break_period" yaml:"break_period"`
	Before      string `json:"before" yaml:"before"`
	FromBreak   string `json:"from_break" yaml:"from_break"`
}

// Describe builds the data dictionary of the observation dataset
func (r *Registry) Describe() Dictionary {
	ds := r.datasets[DatasetName]

	d := Dictionary{
		Dataset:     ds.Name,
		Description: ds.Description,
		Format:      contracts.DataFormatVersion,
		Coverage: CoverageNote{
			BreakPeriod: domain.CoverageBreak.String(),
			Before:      string(domain.CoverageUK),
			FromBreak:   string(domain.CoverageGreatBritain),
		},
	}

	for _, f := range ds.Fields {
		entry := DictionaryEntry{
			Name:        f.Name,
			Type:        string(f.Type),
			Nullable:    f.Nullable,
			Unit:        f.Unit,
			Description: f.Description,
			Allowed:     append([]string(nil), f.Allowed...),
		}
		for _, c := range f.Constraints {
			entry.Constraints = append(entry.Constraints, c.Name+": "+c.Description)
		}
		d.Fields = append(d.Fields, entry)
	}

	for _, m := range r.metrics {
		d.Metrics = append(d.Metrics, MetricEntry{Name: string(m), Unit: r.metricUnits[m]})
	}
	for _, dim := range r.dimensions {
		d.Dimensions = append(d.Dimensions, DimensionEntry{Name: string(dim), Values: r.KnownValues(dim)})
	}
	return d
}
