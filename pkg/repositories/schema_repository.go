// Package repositories provides read-only data access for schema metadata
// and prompt templates.
package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/queryhaven/queryhaven-engine/pkg/apperrors"
	"github.com/queryhaven/queryhaven-engine/pkg/database"
	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

// SchemaRepository exposes the business-annotated schema read model. The
// engine consumes it read-only; descriptor ownership stays with whatever
// pipeline populated the metadata tables.
type SchemaRepository interface {
	// GetActiveTables returns descriptors for all active tables, without
	// column detail.
	GetActiveTables(ctx context.Context) ([]*models.TableDescriptor, error)

	// GetTable returns one descriptor with its columns.
	GetTable(ctx context.Context, id uuid.UUID) (*models.TableDescriptor, error)

	// GetColumns returns the column descriptors for the named tables,
	// keyed by table name.
	GetColumns(ctx context.Context, tableNames []string) (map[string][]models.ColumnDescriptor, error)

	// GetBusinessRules returns rules scoped to the named tables plus
	// global rules, ordered by priority.
	GetBusinessRules(ctx context.Context, tableNames []string) ([]models.BusinessRule, error)

	// GetGlossaryTerms returns all glossary terms.
	GetGlossaryTerms(ctx context.Context) ([]models.GlossaryTerm, error)

	// GetRelationships returns relationships where both endpoints are
	// among the named tables.
	GetRelationships(ctx context.Context, tableNames []string) ([]models.TableRelationship, error)
}

type schemaRepository struct {
	db *database.DB
}

// NewSchemaRepository creates a SchemaRepository backed by Postgres.
func NewSchemaRepository(db *database.DB) SchemaRepository {
	return &schemaRepository{db: db}
}

var _ SchemaRepository = (*schemaRepository)(nil)

func (r *schemaRepository) GetActiveTables(ctx context.Context) ([]*models.TableDescriptor, error) {
	query := `
		SELECT id, schema_name, table_name, business_purpose, aliases,
		       domain, semantic_tags, relevance_prior, embedding
		FROM engine_schema_tables
		WHERE is_active = true
		ORDER BY table_name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active tables: %w", err)
	}
	defer rows.Close()

	var tables []*models.TableDescriptor
	for rows.Next() {
		table, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read active tables: %w", err)
	}

	if len(tables) == 0 {
		return nil, apperrors.ErrNoSchemaMetadata
	}
	return tables, nil
}

func (r *schemaRepository) GetTable(ctx context.Context, id uuid.UUID) (*models.TableDescriptor, error) {
	query := `
		SELECT id, schema_name, table_name, business_purpose, aliases,
		       domain, semantic_tags, relevance_prior, embedding
		FROM engine_schema_tables
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	table, err := scanTable(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}

	columnsByTable, err := r.GetColumns(ctx, []string{table.Name})
	if err != nil {
		return nil, err
	}
	table.Columns = columnsByTable[table.Name]
	return table, nil
}

func (r *schemaRepository) GetColumns(ctx context.Context, tableNames []string) (map[string][]models.ColumnDescriptor, error) {
	if len(tableNames) == 0 {
		return map[string][]models.ColumnDescriptor{}, nil
	}

	query := `
		SELECT t.table_name, c.column_name, c.data_type, c.business_purpose,
		       c.aliases, c.is_primary_key, c.is_foreign_key, c.semantic_tags,
		       c.relevance_prior
		FROM engine_schema_columns c
		JOIN engine_schema_tables t ON t.id = c.table_id
		WHERE t.table_name = ANY($1)
		ORDER BY t.table_name, c.ordinal_position`

	rows, err := r.db.Query(ctx, query, tableNames)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]models.ColumnDescriptor)
	for rows.Next() {
		var tableName string
		var col models.ColumnDescriptor
		var purpose *string
		if err := rows.Scan(
			&tableName, &col.Name, &col.DataType, &purpose,
			&col.Aliases, &col.IsPrimaryKey, &col.IsForeignKey,
			&col.SemanticTags, &col.RelevancePrior,
		); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		if purpose != nil {
			col.BusinessPurpose = *purpose
		}
		result[tableName] = append(result[tableName], col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	return result, nil
}

func (r *schemaRepository) GetBusinessRules(ctx context.Context, tableNames []string) ([]models.BusinessRule, error) {
	query := `
		SELECT id, COALESCE(table_name, ''), rule_text, priority
		FROM engine_business_rules
		WHERE table_name IS NULL OR table_name = ANY($1)
		ORDER BY priority, id`

	rows, err := r.db.Query(ctx, query, tableNames)
	if err != nil {
		return nil, fmt.Errorf("failed to query business rules: %w", err)
	}
	defer rows.Close()

	var rules []models.BusinessRule
	for rows.Next() {
		var rule models.BusinessRule
		if err := rows.Scan(&rule.ID, &rule.TableName, &rule.Rule, &rule.Priority); err != nil {
			return nil, fmt.Errorf("failed to scan business rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read business rules: %w", err)
	}
	return rules, nil
}

func (r *schemaRepository) GetGlossaryTerms(ctx context.Context) ([]models.GlossaryTerm, error) {
	query := `
		SELECT term, definition, COALESCE(preferred_calculation, ''),
		       aliases, table_names
		FROM engine_business_glossary
		ORDER BY term`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query glossary terms: %w", err)
	}
	defer rows.Close()

	var terms []models.GlossaryTerm
	for rows.Next() {
		var term models.GlossaryTerm
		if err := rows.Scan(
			&term.Term, &term.Definition, &term.PreferredCalculation,
			&term.Aliases, &term.TableNames,
		); err != nil {
			return nil, fmt.Errorf("failed to scan glossary term: %w", err)
		}
		terms = append(terms, term)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read glossary terms: %w", err)
	}
	return terms, nil
}

func (r *schemaRepository) GetRelationships(ctx context.Context, tableNames []string) ([]models.TableRelationship, error) {
	query := `
		SELECT source_table, source_column, target_table, target_column,
		       COALESCE(business_meaning, '')
		FROM engine_table_relationships
		WHERE source_table = ANY($1) AND target_table = ANY($1)
		ORDER BY source_table, source_column`

	rows, err := r.db.Query(ctx, query, tableNames)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var rels []models.TableRelationship
	for rows.Next() {
		var rel models.TableRelationship
		if err := rows.Scan(
			&rel.SourceTable, &rel.SourceColumn,
			&rel.TargetTable, &rel.TargetColumn, &rel.BusinessMeaning,
		); err != nil {
			return nil, fmt.Errorf("failed to scan relationship: %w", err)
		}
		rels = append(rels, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read relationships: %w", err)
	}
	return rels, nil
}

// scanTable reads one table descriptor row. Works for both pgx.Row and
// pgx.Rows since both expose Scan.
func scanTable(row pgx.Row) (*models.TableDescriptor, error) {
	var table models.TableDescriptor
	var purpose, domain *string
	if err := row.Scan(
		&table.ID, &table.Schema, &table.Name, &purpose, &table.Aliases,
		&domain, &table.SemanticTags, &table.RelevancePrior, &table.Embedding,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan table: %w", err)
	}
	if purpose != nil {
		table.BusinessPurpose = *purpose
	}
	if domain != nil {
		table.Domain = *domain
	}
	table.IsActive = true
	return &table, nil
}
