package prompts

import (
	"fmt"
	"strings"

	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

// BuildSchemaSection renders the selected tables and columns as the
// schema context block of the prompt.
func BuildSchemaSection(schema *models.ContextualBusinessSchema) string {
	var b strings.Builder

	for _, table := range schema.Tables {
		b.WriteString(fmt.Sprintf("### %s\n", table.QualifiedName()))
		if table.BusinessPurpose != "" {
			b.WriteString(fmt.Sprintf("Purpose: %s\n", table.BusinessPurpose))
		}
		b.WriteString("Columns:\n")
		for _, col := range schema.SelectedColumns[table.Name] {
			flags := ""
			if col.IsPrimaryKey {
				flags += " [PK]"
			}
			if col.IsForeignKey {
				flags += " [FK]"
			}
			if col.BusinessPurpose != "" {
				b.WriteString(fmt.Sprintf("- %s (%s)%s: %s\n", col.Name, col.DataType, flags, col.BusinessPurpose))
			} else {
				b.WriteString(fmt.Sprintf("- %s (%s)%s\n", col.Name, col.DataType, flags))
			}
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// BuildRulesSection renders business rules ordered by priority.
func BuildRulesSection(rules []models.BusinessRule) string {
	if len(rules) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Business Rules\n")
	for _, rule := range rules {
		if rule.TableName != "" {
			b.WriteString(fmt.Sprintf("- [%s] %s\n", rule.TableName, rule.Rule))
		} else {
			b.WriteString(fmt.Sprintf("- %s\n", rule.Rule))
		}
	}
	return b.String()
}

// BuildGlossarySection renders glossary terms with definitions and
// preferred calculations.
func BuildGlossarySection(terms []models.GlossaryTerm) string {
	if len(terms) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Business Glossary\n")
	for _, term := range terms {
		b.WriteString(fmt.Sprintf("- **%s**: %s", term.Term, term.Definition))
		if term.PreferredCalculation != "" {
			b.WriteString(fmt.Sprintf(" (calculate as: %s)", term.PreferredCalculation))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// BuildRelationshipSection renders FK-like links with business meaning.
func BuildRelationshipSection(rels []models.TableRelationship) string {
	if len(rels) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Relationships\n")
	for _, rel := range rels {
		b.WriteString(fmt.Sprintf("- %s.%s → %s.%s", rel.SourceTable, rel.SourceColumn, rel.TargetTable, rel.TargetColumn))
		if rel.BusinessMeaning != "" {
			b.WriteString(fmt.Sprintf(" (%s)", rel.BusinessMeaning))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// BuildPerformanceSection renders index and partitioning hints for large
// schema contexts. Included only for advanced/expert complexity.
func BuildPerformanceSection(schema *models.ContextualBusinessSchema) string {
	var b strings.Builder
	b.WriteString("## Performance Hints\n")
	for _, table := range schema.Tables {
		var keys []string
		for _, col := range schema.SelectedColumns[table.Name] {
			if col.IsKey() {
				keys = append(keys, col.Name)
			}
		}
		if len(keys) > 0 {
			b.WriteString(fmt.Sprintf("- %s: filter and join on indexed key columns (%s)\n",
				table.Name, strings.Join(keys, ", ")))
		}
	}
	b.WriteString("- Prefer sargable predicates; avoid wrapping filtered columns in functions.\n")
	return b.String()
}

// BuildExamplesSection renders few-shot examples.
func BuildExamplesSection(examples []models.QueryExample) string {
	if len(examples) == 0 {
		return "(none)"
	}

	var b strings.Builder
	for i, ex := range examples {
		b.WriteString(fmt.Sprintf("Example %d:\nQ: %s\nSQL: %s\n", i+1, ex.Question, ex.SQL))
		if i < len(examples)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
