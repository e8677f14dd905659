package models

import "time"

// Template keys known to the prompt assembler. Templates are read-only
// reference data cached with a time-based expiry independent of request
// lifetime.
const (
	TemplateKeyGeneral     = "sql_general"
	TemplateKeyAggregation = "sql_aggregation"
	TemplateKeyTrend       = "sql_trend"
	TemplateKeyComparison  = "sql_comparison"
	TemplateKeyDetail      = "sql_detail"
)

// PromptTemplate is a generation template body with named placeholders of
// the form {{name}}.
type PromptTemplate struct {
	Key       string    `json:"key"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TemplateKeyForIntent maps an intent to its template key. The mapping is
// closed: unknown intents fall through to the general template.
func TemplateKeyForIntent(intent IntentType) string {
	switch intent {
	case IntentAggregation:
		return TemplateKeyAggregation
	case IntentTrend:
		return TemplateKeyTrend
	case IntentComparison:
		return TemplateKeyComparison
	case IntentDetail:
		return TemplateKeyDetail
	default:
		return TemplateKeyGeneral
	}
}

// ComplexityLevel grades how demanding a question is for generation,
// derived from schema size, entity count and intent.
type ComplexityLevel string

const (
	ComplexityBasic    ComplexityLevel = "basic"
	ComplexityStandard ComplexityLevel = "standard"
	ComplexityAdvanced ComplexityLevel = "advanced"
	ComplexityExpert   ComplexityLevel = "expert"
)
