package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/queryhaven/queryhaven-engine/pkg/apperrors"
	"github.com/queryhaven/queryhaven-engine/pkg/models"
	"github.com/queryhaven/queryhaven-engine/pkg/prompts"
	"github.com/queryhaven/queryhaven-engine/pkg/repositories"
)

// PromptAssembler renders the final generation prompt from a budgeted
// context. Template bodies come from the template repository, falling
// back to the compiled-in defaults when a key is missing or the store is
// unreachable.
type PromptAssembler interface {
	BuildPrompt(ctx context.Context, profile *models.BusinessContextProfile, budgeted *models.BudgetedContext) (string, *models.PromptDetails, error)
}

type promptAssembler struct {
	templates repositories.TemplateRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewPromptAssembler creates a PromptAssembler. templates may be nil to
// use only the compiled-in defaults.
func NewPromptAssembler(templates repositories.TemplateRepository, logger *zap.Logger) PromptAssembler {
	return &promptAssembler{
		templates: templates,
		logger:    logger.Named("assembler"),
		now:       time.Now,
	}
}

var _ PromptAssembler = (*promptAssembler)(nil)

// BuildPrompt implements PromptAssembler.
func (a *promptAssembler) BuildPrompt(ctx context.Context, profile *models.BusinessContextProfile, budgeted *models.BudgetedContext) (string, *models.PromptDetails, error) {
	if budgeted == nil || budgeted.Schema == nil || len(budgeted.Schema.Tables) == 0 {
		return "", nil, fmt.Errorf("assembling prompt: %w", apperrors.ErrNoSchemaMetadata)
	}

	key := models.TemplateKeyForIntent(profile.Intent)
	body := a.templateBody(ctx, key)
	complexity := gradeComplexity(profile, budgeted.Schema)

	schemaContext := a.buildSchemaContext(budgeted.Schema, complexity)
	examplesSection := prompts.BuildExamplesSection(budgeted.Examples)

	replacer := strings.NewReplacer(
		"{{question}}", profile.OriginalQuestion,
		"{{intent}}", string(profile.Intent),
		"{{domain}}", profile.Domain.Name,
		"{{complexity}}", string(complexity),
		"{{current_date}}", a.now().UTC().Format("2006-01-02"),
		"{{time_context}}", describeTimeContext(profile.TimeContext),
		"{{metrics}}", joinOrNone(profile.IdentifiedMetrics),
		"{{dimensions}}", joinOrNone(profile.IdentifiedDimensions),
		"{{schema_context}}", schemaContext,
		"{{examples}}", examplesSection,
	)
	prompt := replacer.Replace(body)

	if hints := prompts.OptimizationHints(profile.Intent); len(hints) > 0 {
		var b strings.Builder
		b.WriteString(prompt)
		b.WriteString("\n## Optimization Hints\n")
		for _, hint := range hints {
			b.WriteString("- ")
			b.WriteString(hint)
			b.WriteString("\n")
		}
		prompt = b.String()
	}

	details := &models.PromptDetails{
		TemplateKey:     key,
		Complexity:      complexity,
		Tables:          budgeted.Schema.TableNames(),
		EstimatedTokens: EstimateTokens(prompt),
		Truncated:       budgeted.Truncated,
		ExampleCount:    len(budgeted.Examples),
	}

	a.logger.Debug("Prompt assembled",
		zap.String("template", key),
		zap.String("complexity", string(complexity)),
		zap.Int("estimated_tokens", details.EstimatedTokens))

	return prompt, details, nil
}

// templateBody resolves a template key through the repository, then the
// general template, then the compiled-in default. Store failures are
// logged and never surface to the caller.
func (a *promptAssembler) templateBody(ctx context.Context, key string) string {
	if a.templates == nil {
		return prompts.DefaultTemplate(key)
	}

	tpl, err := a.templates.GetTemplate(ctx, key)
	if err == nil {
		return tpl.Body
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		a.logger.Warn("Template store unavailable, using built-in template",
			zap.String("key", key), zap.Error(err))
		return prompts.DefaultTemplate(key)
	}

	if key != models.TemplateKeyGeneral {
		if tpl, err := a.templates.GetTemplate(ctx, models.TemplateKeyGeneral); err == nil {
			return tpl.Body
		}
	}
	return prompts.DefaultTemplate(key)
}

func (a *promptAssembler) buildSchemaContext(schema *models.ContextualBusinessSchema, complexity models.ComplexityLevel) string {
	var b strings.Builder
	b.WriteString(prompts.BuildSchemaSection(schema))
	if s := prompts.BuildRelationshipSection(schema.Relationships); s != "" {
		b.WriteString("\n")
		b.WriteString(s)
	}
	if s := prompts.BuildRulesSection(schema.Rules); s != "" {
		b.WriteString("\n")
		b.WriteString(s)
	}
	if s := prompts.BuildGlossarySection(schema.Glossary); s != "" {
		b.WriteString("\n")
		b.WriteString(s)
	}
	if complexity == models.ComplexityAdvanced || complexity == models.ComplexityExpert {
		if s := prompts.BuildPerformanceSection(schema); s != "" {
			b.WriteString("\n")
			b.WriteString(s)
		}
	}
	return b.String()
}

// gradeComplexity scores the question on schema breadth, entity count and
// intent, then maps the score to a level.
func gradeComplexity(profile *models.BusinessContextProfile, schema *models.ContextualBusinessSchema) models.ComplexityLevel {
	points := float64(len(schema.Tables))
	for _, cols := range schema.SelectedColumns {
		points += float64(len(cols)) * 0.1
	}
	points += float64(len(profile.Entities)) * 0.5

	switch profile.Intent {
	case models.IntentAnalytical:
		points += 2.0
	case models.IntentComparison, models.IntentTrend:
		points += 1.5
	case models.IntentAggregation:
		points += 1.0
	default:
		points += 0.5
	}

	switch {
	case points < 3:
		return models.ComplexityBasic
	case points < 6:
		return models.ComplexityStandard
	case points < 9:
		return models.ComplexityAdvanced
	default:
		return models.ComplexityExpert
	}
}

func describeTimeContext(tc *models.TimeContext) string {
	if tc == nil {
		return "(no explicit time window)"
	}
	if !tc.Relative {
		return fmt.Sprintf("absolute %s %s", tc.Period, tc.Expression)
	}
	if tc.Offset == 0 {
		return fmt.Sprintf("current %s (%q)", tc.Period, tc.Expression)
	}
	return fmt.Sprintf("%d %s(s) back (%q)", tc.Offset, tc.Period, tc.Expression)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
