package schema

import (
	"strings"

	"tourismcli/pkg/contracts/domain"
)

// DatasetName is the name of the canonical observation dataset
const DatasetName = "tourism_observations"

// FieldType is the semantic type of a dataset field
type FieldType string

const (
	TypeString FieldType = "string"
	TypeEnum   FieldType = "enum"
	TypePeriod FieldType = "period"
	TypeDate   FieldType = "date"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
)

// FieldSpec declares one output column
type FieldSpec struct {
	Name        string
	Type        FieldType
	Nullable    bool
	Description string
	Unit        string
	Allowed     []string
	Constraints []Constraint
}

// Dataset is an ordered set of fields
type Dataset struct {
	Name        string
	Description string
	Fields      []FieldSpec
}

// Registry declares the canonical datasets and the vocabularies the
// pipeline stages consult. It is immutable after construction and safe
// for concurrent use.
type Registry struct {
	datasets    map[string]Dataset
	order       []string
	dimensions  []domain.DimensionType
	metrics     []domain.MetricType
	metricUnits map[domain.MetricType]string
	known       map[domain.DimensionType][]string
	knownIndex  map[domain.DimensionType]map[string]bool
}

// NewRegistry builds the registry with the default category vocabularies
func NewRegistry() *Registry {
	return NewRegistryWithKnownValues(DefaultKnownValues())
}

// NewRegistryWithKnownValues builds the registry with the given category
// vocabularies. Dimensions absent from known are not checked.
func NewRegistryWithKnownValues(known map[domain.DimensionType][]string) *Registry {
	r := &Registry{
		datasets: make(map[string]Dataset),
		dimensions: []domain.DimensionType{
			domain.DimensionGeography,
			domain.DimensionPurpose,
			domain.DimensionTransport,
			domain.DimensionUKRegion,
			domain.DimensionCountry,
		},
		metrics: []domain.MetricType{
			domain.MetricVisits,
			domain.MetricExpenditure,
			domain.MetricNights,
		},
		metricUnits: map[domain.MetricType]string{
			domain.MetricVisits:      "count",
			domain.MetricExpenditure: "GBP millions",
			domain.MetricNights:      "count",
		},
		known:      make(map[domain.DimensionType][]string, len(known)),
		knownIndex: make(map[domain.DimensionType]map[string]bool, len(known)),
	}

	for dim, values := range known {
		own := append([]string(nil), values...)
		r.known[dim] = own
		idx := make(map[string]bool, len(own))
		for _, v := range own {
			idx[v] = true
		}
		r.knownIndex[dim] = idx
	}

	r.add(observationsDataset(r))
	return r
}

func (r *Registry) add(ds Dataset) {
	r.datasets[ds.Name] = ds
	r.order = append(r.order, ds.Name)
}

// Dataset returns a dataset by name
func (r *Registry) Dataset(name string) (Dataset, bool) {
	ds, ok := r.datasets[name]
	if !ok {
		return Dataset{}, false
	}
	ds.Fields = append([]FieldSpec(nil), ds.Fields...)
	return ds, true
}

// DatasetNames returns the declared datasets in declaration order
func (r *Registry) DatasetNames() []string {
	return append([]string(nil), r.order...)
}

// Fields returns the observation dataset fields in output order
func (r *Registry) Fields() []FieldSpec {
	return append([]FieldSpec(nil), r.datasets[DatasetName].Fields...)
}

// Field returns one observation field by name
func (r *Registry) Field(name string) (FieldSpec, bool) {
	for _, f := range r.datasets[DatasetName].Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldNames returns the observation column names in output order
func (r *Registry) FieldNames() []string {
	fields := r.datasets[DatasetName].Fields
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Metrics returns the metric types
func (r *Registry) Metrics() []domain.MetricType {
	return append([]domain.MetricType(nil), r.metrics...)
}

// MetricUnit returns the canonical unit of a metric
func (r *Registry) MetricUnit(m domain.MetricType) string {
	return r.metricUnits[m]
}

// Dimensions returns the dimension types
func (r *Registry) Dimensions() []domain.DimensionType {
	return append([]domain.DimensionType(nil), r.dimensions...)
}

// KnownValues returns the vocabulary of a dimension; nil means unchecked.
func (r *Registry) KnownValues(d domain.DimensionType) []string {
	return append([]string(nil), r.known[d]...)
}

// IsKnownValue reports whether v is in the vocabulary of d. Unchecked
// dimensions accept every value.
func (r *Registry) IsKnownValue(d domain.DimensionType, v string) bool {
	idx, ok := r.knownIndex[d]
	if !ok {
		return true
	}
	return v == domain.TotalDimensionValue || idx[v]
}

// IsCategory reports whether v is a canonical category of any dimension.
func (r *Registry) IsCategory(v string) bool {
	if v == domain.TotalDimensionValue {
		return true
	}
	for _, idx := range r.knownIndex {
		if idx[v] {
			return true
		}
	}
	return false
}

// IsMetric reports whether s names a metric type
func (r *Registry) IsMetric(s string) bool {
	for _, m := range r.metrics {
		if string(m) == s {
			return true
		}
	}
	return false
}

// IsDimension reports whether s names a dimension type
func (r *Registry) IsDimension(s string) bool {
	for _, d := range r.dimensions {
		if string(d) == s {
			return true
		}
	}
	return false
}

// DefaultKnownValues is the category vocabulary of the annual release.
// Country of residence is open-ended and not checked.
func DefaultKnownValues() map[domain.DimensionType][]string {
	return map[domain.DimensionType][]string{
		domain.DimensionGeography: {"North America", "Europe", "Other Countries"},
		domain.DimensionPurpose:   {"Holiday", "Business", "Visiting friends and relatives", "Miscellaneous"},
		domain.DimensionTransport: {"Air", "Sea", "Tunnel"},
		domain.DimensionUKRegion: {
			"North East",
			"North West",
			"Yorkshire and The Humber",
			"East Midlands",
			"West Midlands",
			"East of England",
			"London",
			"South East",
			"South West",
			"Wales",
			"Scotland",
			"Northern Ireland",
		},
	}
}

func enumValues[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
