package models

import (
	"strings"

	"github.com/google/uuid"
)

// Schema domain tags used for exclusion rules. Tables carry one of these
// in their Domain field (free-form values are allowed; these are the ones
// the relevance engine reasons about).
const (
	SchemaDomainFinancial = "financial"
	SchemaDomainGaming    = "gaming"
	SchemaDomainCustomer  = "customer"
	SchemaDomainMarketing = "marketing"
	SchemaDomainReference = "reference"
)

// ColumnDescriptor is the read model for one column of an annotated table.
type ColumnDescriptor struct {
	Name            string   `json:"name"`
	DataType        string   `json:"data_type"`
	BusinessPurpose string   `json:"business_purpose,omitempty"`
	Aliases         []string `json:"aliases,omitempty"`
	IsPrimaryKey    bool     `json:"is_primary_key"`
	IsForeignKey    bool     `json:"is_foreign_key"`
	SemanticTags    []string `json:"semantic_tags,omitempty"`
	RelevancePrior  float64  `json:"relevance_prior"` // Precomputed 0.0 - 1.0
}

// IsKey reports whether the column is a primary or foreign key.
func (c *ColumnDescriptor) IsKey() bool {
	return c.IsPrimaryKey || c.IsForeignKey
}

// TableDescriptor is the read model for one business-annotated table as
// exposed by the schema metadata repository. Descriptors are read-only
// reference data shared across requests.
type TableDescriptor struct {
	ID              uuid.UUID          `json:"id"`
	Schema          string             `json:"schema"`
	Name            string             `json:"name"`
	BusinessPurpose string             `json:"business_purpose,omitempty"`
	Aliases         []string           `json:"aliases,omitempty"`
	Domain          string             `json:"domain,omitempty"`
	SemanticTags    []string           `json:"semantic_tags,omitempty"`
	RelevancePrior  float64            `json:"relevance_prior"`
	Embedding       []float32          `json:"-"` // Precomputed description embedding, may be nil
	Columns         []ColumnDescriptor `json:"columns,omitempty"`
	IsActive        bool               `json:"is_active"`
}

// QualifiedName returns schema.table, or just the table name when the
// schema is empty.
func (t *TableDescriptor) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// HasTag reports whether the table carries the given semantic tag
// (case-insensitive).
func (t *TableDescriptor) HasTag(tag string) bool {
	for _, st := range t.SemanticTags {
		if strings.EqualFold(st, tag) {
			return true
		}
	}
	return false
}

// BusinessRule is a rule scoped to one or more tables, injected into the
// generation prompt ordered by priority (lower value = higher priority).
type BusinessRule struct {
	ID        uuid.UUID `json:"id"`
	TableName string    `json:"table_name,omitempty"` // Empty means global
	Rule      string    `json:"rule"`
	Priority  int       `json:"priority"`
}

// GlossaryTerm is a business term with its preferred calculation, used to
// disambiguate vocabulary in generated SQL.
type GlossaryTerm struct {
	Term                 string   `json:"term"`
	Definition           string   `json:"definition"`
	PreferredCalculation string   `json:"preferred_calculation,omitempty"`
	Aliases              []string `json:"aliases,omitempty"`
	TableNames           []string `json:"table_names,omitempty"`
}

// TableRelationship is an FK-like link between two tables with its
// business meaning.
type TableRelationship struct {
	SourceTable     string `json:"source_table"`
	SourceColumn    string `json:"source_column"`
	TargetTable     string `json:"target_table"`
	TargetColumn    string `json:"target_column"`
	BusinessMeaning string `json:"business_meaning,omitempty"`
}

// TableCandidate is a scored table produced during relevance ranking.
// Candidates are created during scoring and discarded after selection.
type TableCandidate struct {
	Table        *TableDescriptor
	Score        float64
	MatchReasons []string
}

// AddReason records an applied scoring rule and its weight.
func (c *TableCandidate) AddReason(reason string, weight float64) {
	c.Score += weight
	c.MatchReasons = append(c.MatchReasons, reason)
}

// ColumnCandidate is a scored column within a selected table.
type ColumnCandidate struct {
	Column       *ColumnDescriptor
	Score        float64
	MatchReasons []string
}

// ContextualBusinessSchema is the narrowed view of the catalog produced by
// the relevance engine: ranked tables, their selected columns, and the
// rules, glossary terms and relationships scoped to those tables only.
// Owned exclusively by one request.
type ContextualBusinessSchema struct {
	Tables          []*TableDescriptor            `json:"tables"`
	SelectedColumns map[string][]ColumnDescriptor `json:"selected_columns"`
	Rules           []BusinessRule                `json:"rules,omitempty"`
	Glossary        []GlossaryTerm                `json:"glossary,omitempty"`
	Relationships   []TableRelationship           `json:"relationships,omitempty"`
}

// TableNames returns the selected table names in rank order.
func (s *ContextualBusinessSchema) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for _, t := range s.Tables {
		names = append(names, t.Name)
	}
	return names
}

// ContainsTable reports whether a table was selected.
func (s *ContextualBusinessSchema) ContainsTable(name string) bool {
	for _, t := range s.Tables {
		if t.Name == name {
			return true
		}
	}
	return false
}
