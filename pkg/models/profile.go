package models

// IntentType classifies the structural kind of a business question.
// Intent drives prompt template selection and optimization hints.
type IntentType string

const (
	IntentAnalytical  IntentType = "analytical"
	IntentOperational IntentType = "operational"
	IntentExploratory IntentType = "exploratory"
	IntentComparison  IntentType = "comparison"
	IntentAggregation IntentType = "aggregation"
	IntentTrend       IntentType = "trend"
	IntentDetail      IntentType = "detail"
)

// DomainGeneral is the fallback domain when no keyword rule matches.
// Classification never fails closed: an unmatched question carries this
// domain with zero confidence.
const DomainGeneral = "General"

// EntityType classifies an extracted question entity.
type EntityType string

const (
	EntityTable     EntityType = "table"
	EntityColumn    EntityType = "column"
	EntityMetric    EntityType = "metric"
	EntityDimension EntityType = "dimension"
)

// QueryEntity is a question token or n-gram matched against a known
// business alias, with the schema object it maps to.
type QueryEntity struct {
	Text       string     `json:"text"`
	Type       EntityType `json:"type"`
	MappedName string     `json:"mapped_name"`
	Confidence float64    `json:"confidence"`
}

// DomainMatch is the business subject area assigned to a question.
type DomainMatch struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"` // 0.0 - 1.0
}

// TimeContext describes the time window referenced by a question.
type TimeContext struct {
	Expression string `json:"expression"`       // The phrase as matched, e.g. "yesterday"
	Period     string `json:"period"`           // day, week, month, quarter, year
	Relative   bool   `json:"relative"`         // Relative to now vs. an absolute date
	Offset     int    `json:"offset,omitempty"` // Periods back from now (1 = previous period)
}

// BusinessContextProfile is the structured interpretation of a raw
// question. It is created once per incoming question, is immutable after
// classification, and is consumed by every downstream pipeline stage.
type BusinessContextProfile struct {
	OriginalQuestion     string        `json:"original_question"`
	Intent               IntentType    `json:"intent"`
	Domain               DomainMatch   `json:"domain"`
	Entities             []QueryEntity `json:"entities,omitempty"`
	TimeContext          *TimeContext  `json:"time_context,omitempty"`
	IdentifiedMetrics    []string      `json:"identified_metrics,omitempty"`
	IdentifiedDimensions []string      `json:"identified_dimensions,omitempty"`
}

// HasEntity reports whether an entity mapped to the given schema object name.
func (p *BusinessContextProfile) HasEntity(mappedName string) bool {
	for _, e := range p.Entities {
		if e.MappedName == mappedName {
			return true
		}
	}
	return false
}

// MappedTableNames returns the distinct table names referenced by extracted
// entities, in extraction order.
func (p *BusinessContextProfile) MappedTableNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, e := range p.Entities {
		if e.Type != EntityTable || e.MappedName == "" {
			continue
		}
		if seen[e.MappedName] {
			continue
		}
		seen[e.MappedName] = true
		names = append(names, e.MappedName)
	}
	return names
}
