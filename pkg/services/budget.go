package services

import (
	"go.uber.org/zap"

	"github.com/queryhaven/queryhaven-engine/pkg/config"
	"github.com/queryhaven/queryhaven-engine/pkg/models"
	"github.com/queryhaven/queryhaven-engine/pkg/prompts"
)

// EstimateTokens approximates the token cost of a text using the
// characters-per-token heuristic, rounding up. This over-counts slightly
// for SQL-heavy text, which keeps trimming conservative.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// TokenBudgetManager fits a contextual schema and few-shot examples into
// a fixed prompt token allowance, trimming lowest-value content first.
type TokenBudgetManager interface {
	// Allocate splits total across the prompt sections by the configured
	// ratios and trims the schema and examples to fit. The input schema
	// is not modified; the returned context owns trimmed copies. When
	// total is zero or negative the configured default budget applies.
	Allocate(total int, schema *models.ContextualBusinessSchema, examples []models.QueryExample) *models.BudgetedContext
}

type tokenBudgetManager struct {
	cfg    *config.QueryConfig
	logger *zap.Logger
}

// NewTokenBudgetManager creates a TokenBudgetManager using the query
// configuration's section ratios.
func NewTokenBudgetManager(cfg *config.QueryConfig, logger *zap.Logger) TokenBudgetManager {
	return &tokenBudgetManager{
		cfg:    cfg,
		logger: logger.Named("budget"),
	}
}

var _ TokenBudgetManager = (*tokenBudgetManager)(nil)

// Allocate implements TokenBudgetManager.
func (m *tokenBudgetManager) Allocate(total int, schema *models.ContextualBusinessSchema, examples []models.QueryExample) *models.BudgetedContext {
	if total <= 0 {
		total = m.cfg.TotalTokenBudget
	}

	budget := models.TokenBudget{
		Total:          total,
		SchemaTokens:   int(float64(total) * m.cfg.SchemaRatio),
		RuleTokens:     int(float64(total) * m.cfg.RulesRatio),
		GlossaryTokens: int(float64(total) * m.cfg.GlossaryRatio),
		ExampleTokens:  int(float64(total) * m.cfg.ExamplesRatio),
	}

	trimmed := copySchema(schema)
	truncated := false

	if m.trimSchema(trimmed, budget.SchemaTokens) {
		truncated = true
	}
	if trimList(&trimmed.Rules, budget.RuleTokens, func(rules []models.BusinessRule) string {
		return prompts.BuildRulesSection(rules)
	}) {
		truncated = true
	}
	if trimList(&trimmed.Glossary, budget.GlossaryTokens, func(terms []models.GlossaryTerm) string {
		return prompts.BuildGlossarySection(terms)
	}) {
		truncated = true
	}

	kept := append([]models.QueryExample(nil), examples...)
	if trimList(&kept, budget.ExampleTokens, func(ex []models.QueryExample) string {
		return prompts.BuildExamplesSection(ex)
	}) {
		truncated = true
	}

	estimated := m.estimate(trimmed, kept)
	if estimated > total {
		truncated = true
	}

	if truncated {
		m.logger.Debug("Context trimmed to fit token budget",
			zap.Int("total", total),
			zap.Int("estimated", estimated),
			zap.Int("tables", len(trimmed.Tables)),
			zap.Int("examples", len(kept)))
	}

	return &models.BudgetedContext{
		Schema:          trimmed,
		Examples:        kept,
		Budget:          budget,
		EstimatedTokens: estimated,
		Truncated:       truncated,
	}
}

func (m *tokenBudgetManager) estimate(schema *models.ContextualBusinessSchema, examples []models.QueryExample) int {
	return EstimateTokens(prompts.BuildSchemaSection(schema)) +
		EstimateTokens(prompts.BuildRulesSection(schema.Rules)) +
		EstimateTokens(prompts.BuildGlossarySection(schema.Glossary)) +
		EstimateTokens(prompts.BuildRelationshipSection(schema.Relationships)) +
		EstimateTokens(prompts.BuildExamplesSection(examples))
}

// trimSchema shrinks the schema section to its allocation. Tables are
// dropped from the bottom of the ranking but at least one always
// survives; after that, columns fall back to key columns only, again
// bottom-up. Returns whether anything was removed.
func (m *tokenBudgetManager) trimSchema(schema *models.ContextualBusinessSchema, allowance int) bool {
	cost := func() int {
		return EstimateTokens(prompts.BuildSchemaSection(schema)) +
			EstimateTokens(prompts.BuildRelationshipSection(schema.Relationships))
	}

	trimmed := false
	for cost() > allowance && len(schema.Tables) > 1 {
		last := schema.Tables[len(schema.Tables)-1]
		schema.Tables = schema.Tables[:len(schema.Tables)-1]
		delete(schema.SelectedColumns, last.Name)
		schema.Relationships = dropRelationshipsFor(schema.Relationships, last.Name)
		trimmed = true
	}

	for i := len(schema.Tables) - 1; i >= 0 && cost() > allowance; i-- {
		name := schema.Tables[i].Name
		keys := keyColumnsOnly(schema.SelectedColumns[name])
		if len(keys) == len(schema.SelectedColumns[name]) {
			continue
		}
		schema.SelectedColumns[name] = keys
		trimmed = true
	}

	return trimmed
}

// trimList drops entries from the end of a slice until its rendered
// section fits the allowance. Returns whether anything was dropped.
func trimList[T any](items *[]T, allowance int, render func([]T) string) bool {
	trimmed := false
	for len(*items) > 0 && EstimateTokens(render(*items)) > allowance {
		*items = (*items)[:len(*items)-1]
		trimmed = true
	}
	return trimmed
}

func keyColumnsOnly(columns []models.ColumnDescriptor) []models.ColumnDescriptor {
	var keys []models.ColumnDescriptor
	for _, col := range columns {
		if col.IsKey() {
			keys = append(keys, col)
		}
	}
	return keys
}

func dropRelationshipsFor(rels []models.TableRelationship, table string) []models.TableRelationship {
	kept := rels[:0:0]
	for _, r := range rels {
		if r.SourceTable == table || r.TargetTable == table {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

// copySchema makes a shallow copy of the schema with its own slices and
// column map, so trimming never mutates the relevance engine's output.
func copySchema(schema *models.ContextualBusinessSchema) *models.ContextualBusinessSchema {
	out := &models.ContextualBusinessSchema{
		Tables:          append([]*models.TableDescriptor(nil), schema.Tables...),
		SelectedColumns: make(map[string][]models.ColumnDescriptor, len(schema.SelectedColumns)),
		Rules:           append([]models.BusinessRule(nil), schema.Rules...),
		Glossary:        append([]models.GlossaryTerm(nil), schema.Glossary...),
		Relationships:   append([]models.TableRelationship(nil), schema.Relationships...),
	}
	for name, cols := range schema.SelectedColumns {
		out.SelectedColumns[name] = append([]models.ColumnDescriptor(nil), cols...)
	}
	return out
}
