// Package prompts holds compiled-in prompt templates and the section
// builders used to enrich them with schema context.
package prompts

import "github.com/queryhaven/queryhaven-engine/pkg/models"

// SystemMessage is the fixed system message for SQL generation.
const SystemMessage = "You are an expert SQL analyst. Generate a single, syntactically valid SQL query that answers the business question using only the tables and columns provided. Return only SQL, no explanation."

// generalTemplate is the fallback body used when both the intent-specific
// and general templates are unavailable from the template store.
const generalTemplate = `# SQL Generation Request

## Business Question
{{question}}

Intent: {{intent}}
Domain: {{domain}}
Complexity: {{complexity}}
Current date: {{current_date}}
{{time_context}}
Metrics: {{metrics}}
Dimensions: {{dimensions}}

## Available Schema
{{schema_context}}

## Examples
{{examples}}

Write one SQL query answering the question. Use only the tables and columns listed above.`

const aggregationTemplate = `# SQL Generation Request: Aggregation

## Business Question
{{question}}

Intent: {{intent}}
Domain: {{domain}}
Complexity: {{complexity}}
Current date: {{current_date}}
{{time_context}}
Metrics: {{metrics}}
Dimensions: {{dimensions}}

## Available Schema
{{schema_context}}

## Examples
{{examples}}

Write one SQL query answering the question. Aggregate with the appropriate GROUP BY, order results by the aggregated measure, and apply any requested limit.`

const trendTemplate = `# SQL Generation Request: Trend

## Business Question
{{question}}

Intent: {{intent}}
Domain: {{domain}}
Complexity: {{complexity}}
Current date: {{current_date}}
{{time_context}}
Metrics: {{metrics}}
Dimensions: {{dimensions}}

## Available Schema
{{schema_context}}

## Examples
{{examples}}

Write one SQL query answering the question. Bucket by the requested time grain and order chronologically.`

const comparisonTemplate = `# SQL Generation Request: Comparison

## Business Question
{{question}}

Intent: {{intent}}
Domain: {{domain}}
Complexity: {{complexity}}
Current date: {{current_date}}
{{time_context}}
Metrics: {{metrics}}
Dimensions: {{dimensions}}

## Available Schema
{{schema_context}}

## Examples
{{examples}}

Write one SQL query answering the question. Compute each compared segment explicitly so the result sets are directly comparable.`

const detailTemplate = `# SQL Generation Request: Detail

## Business Question
{{question}}

Intent: {{intent}}
Domain: {{domain}}
Complexity: {{complexity}}
Current date: {{current_date}}
{{time_context}}
Metrics: {{metrics}}
Dimensions: {{dimensions}}

## Available Schema
{{schema_context}}

## Examples
{{examples}}

Write one SQL query answering the question. Return row-level detail with the columns the question asks for.`

// defaultTemplates maps template keys to compiled-in bodies.
var defaultTemplates = map[string]string{
	models.TemplateKeyGeneral:     generalTemplate,
	models.TemplateKeyAggregation: aggregationTemplate,
	models.TemplateKeyTrend:       trendTemplate,
	models.TemplateKeyComparison:  comparisonTemplate,
	models.TemplateKeyDetail:      detailTemplate,
}

// DefaultTemplate returns the compiled-in body for key, falling back to
// the general template for unknown keys.
func DefaultTemplate(key string) string {
	if body, ok := defaultTemplates[key]; ok {
		return body
	}
	return generalTemplate
}

// OptimizationHints returns intent-specific SQL guidance appended to the
// assembled prompt.
func OptimizationHints(intent models.IntentType) []string {
	switch intent {
	case models.IntentTrend:
		return []string{
			"Prefer window functions for running totals and period-over-period change.",
			"Truncate timestamps to the requested grain with date_trunc.",
		}
	case models.IntentAggregation:
		return []string{
			"Filter before aggregating so GROUP BY operates on the smallest possible set.",
			"Use HAVING only for conditions on aggregated values.",
		}
	case models.IntentComparison:
		return []string{
			"Compute each compared segment in a CTE and join the CTEs for the final comparison.",
		}
	case models.IntentDetail:
		return []string{
			"Apply a LIMIT when the question does not bound the result set.",
		}
	case models.IntentAnalytical:
		return []string{
			"Prefer explicit JOINs over correlated subqueries for readability.",
		}
	default:
		return nil
	}
}
