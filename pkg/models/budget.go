package models

// TokenBudget records how a total token allowance was split across prompt
// sections. Allocations only ever decrease during trimming; the sum of
// section allocations never exceeds Total.
type TokenBudget struct {
	Total          int `json:"total"`
	SchemaTokens   int `json:"schema_tokens"`
	RuleTokens     int `json:"rule_tokens"`
	GlossaryTokens int `json:"glossary_tokens"`
	ExampleTokens  int `json:"example_tokens"`
}

// Allocated returns the sum of all section allocations.
func (b *TokenBudget) Allocated() int {
	return b.SchemaTokens + b.RuleTokens + b.GlossaryTokens + b.ExampleTokens
}

// QueryExample is a few-shot question/SQL pair used to prime generation.
type QueryExample struct {
	Question string     `json:"question"`
	SQL      string     `json:"sql"`
	Intent   IntentType `json:"intent"`
	Domain   string     `json:"domain,omitempty"`
	Tables   []string   `json:"tables,omitempty"`
}

// BudgetedContext is the output of budget allocation: the schema context
// and examples trimmed to fit the token budget, plus the realized
// allocation and an estimate of the final cost.
type BudgetedContext struct {
	Schema          *ContextualBusinessSchema `json:"schema"`
	Examples        []QueryExample            `json:"examples,omitempty"`
	Budget          TokenBudget               `json:"budget"`
	EstimatedTokens int                       `json:"estimated_tokens"`
	Truncated       bool                      `json:"truncated"` // Even minimal content overflowed
}
