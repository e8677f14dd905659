package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/queryhaven/queryhaven-engine/pkg/apperrors"
	"github.com/queryhaven/queryhaven-engine/pkg/cache"
	"github.com/queryhaven/queryhaven-engine/pkg/llm"
	"github.com/queryhaven/queryhaven-engine/pkg/logging"
	"github.com/queryhaven/queryhaven-engine/pkg/models"
	"github.com/queryhaven/queryhaven-engine/pkg/repositories"
)

// Scoring weights for the retrieval strategies. Entity matches outrank
// everything because an explicit alias hit is near-certain evidence;
// semantic similarity is weighted by the cosine score before applying.
const (
	weightDomainMatch    = 2.0
	weightTermMatch      = 1.0
	weightSemanticMatch  = 2.5
	weightEntityMatch    = 3.0
	weightPerSharedTag   = 0.5
	gamingExclusionScore = -10.0

	// minRelevanceScore drops weakly-scored candidates before ranking.
	minRelevanceScore = 0.5

	// minSemanticSimilarity gates embedding matches; cosine scores below
	// this are noise on short questions.
	minSemanticSimilarity = 0.5
)

// classifierToSchemaDomain maps classifier domain names onto schema
// domain tags carried by table descriptors.
var classifierToSchemaDomain = map[string]string{
	DomainFinancial: models.SchemaDomainFinancial,
	DomainGaming:    models.SchemaDomainGaming,
	DomainCustomer:  models.SchemaDomainCustomer,
	DomainMarketing: models.SchemaDomainMarketing,
}

// SchemaRelevanceEngine narrows the full annotated catalog down to the
// tables, columns, rules and glossary terms relevant to one question.
type SchemaRelevanceEngine interface {
	// SelectRelevantSchema runs all retrieval strategies for the profiled
	// question and returns the ranked, capped contextual schema. The
	// result always contains at least one table when any active table
	// exists; it returns apperrors.ErrNoSchemaMetadata only when the
	// catalog itself is empty.
	SelectRelevantSchema(ctx context.Context, profile *models.BusinessContextProfile, maxTables, maxColumnsPerTable int) (*models.ContextualBusinessSchema, error)
}

type schemaRelevanceEngine struct {
	repo     repositories.SchemaRepository
	embedder llm.Embedder
	logger   *zap.Logger
}

// NewSchemaRelevanceEngine creates a SchemaRelevanceEngine. embedder may
// be nil, which disables the semantic strategy.
func NewSchemaRelevanceEngine(repo repositories.SchemaRepository, embedder llm.Embedder, logger *zap.Logger) SchemaRelevanceEngine {
	return &schemaRelevanceEngine{
		repo:     repo,
		embedder: embedder,
		logger:   logger.Named("relevance"),
	}
}

var _ SchemaRelevanceEngine = (*schemaRelevanceEngine)(nil)

// SelectRelevantSchema implements SchemaRelevanceEngine.
func (e *schemaRelevanceEngine) SelectRelevantSchema(ctx context.Context, profile *models.BusinessContextProfile, maxTables, maxColumnsPerTable int) (*models.ContextualBusinessSchema, error) {
	tables, err := e.repo.GetActiveTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading active tables: %w", err)
	}
	if len(tables) == 0 {
		return nil, apperrors.ErrNoSchemaMetadata
	}

	excludeGaming := containsFinancialTransactionTerm(profile.OriginalQuestion)

	candidates := e.scoreCandidates(ctx, profile, tables, excludeGaming)
	selected := rankAndCap(candidates, maxTables)

	// Hard guarantee regardless of how the score came out: financial
	// transaction questions never retain gaming tables. The filter runs
	// before the emptiness check so that a selection left empty by it
	// still reaches the fallback.
	if excludeGaming {
		selected = dropGamingTables(selected, e.logger)
	}

	if len(selected) == 0 {
		e.logger.Debug("No eligible candidate cleared the relevance threshold, falling back to catalog priors",
			zap.String("question", logging.SanitizeQuestion(profile.OriginalQuestion)))
		selected = fallbackSelection(tables, profile, excludeGaming, maxTables)
	}

	schema := &models.ContextualBusinessSchema{
		Tables:          selected,
		SelectedColumns: make(map[string][]models.ColumnDescriptor, len(selected)),
	}

	names := schema.TableNames()
	e.selectColumns(ctx, profile, schema, names, maxColumnsPerTable)
	e.enrich(ctx, schema, names)

	e.logger.Info("Schema context selected",
		zap.Strings("tables", names),
		zap.Bool("gaming_excluded", excludeGaming),
		zap.Int("rules", len(schema.Rules)),
		zap.Int("glossary_terms", len(schema.Glossary)))

	return schema, nil
}

// scoreCandidates runs the four retrieval strategies concurrently and
// merges their scores per table. Strategy failures are logged and
// degrade to the remaining strategies rather than failing selection.
func (e *schemaRelevanceEngine) scoreCandidates(ctx context.Context, profile *models.BusinessContextProfile, tables []*models.TableDescriptor, excludeGaming bool) map[string]*models.TableCandidate {
	results := make([][]*models.TableCandidate, 4)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		results[0] = domainStrategy(profile, tables)
		return nil
	})
	g.Go(func() error {
		results[1] = termStrategy(profile, tables)
		return nil
	})
	g.Go(func() error {
		matches, err := e.semanticStrategy(gctx, profile, tables)
		if err != nil {
			e.logger.Warn("Semantic retrieval unavailable", zap.Error(err))
			return nil
		}
		results[2] = matches
		return nil
	})
	g.Go(func() error {
		results[3] = entityStrategy(profile, tables)
		return nil
	})
	_ = g.Wait()

	merged := make(map[string]*models.TableCandidate)
	for _, list := range results {
		for _, c := range list {
			existing, ok := merged[c.Table.Name]
			if !ok {
				merged[c.Table.Name] = c
				continue
			}
			existing.Score += c.Score
			existing.MatchReasons = append(existing.MatchReasons, c.MatchReasons...)
		}
	}

	if excludeGaming {
		for _, c := range merged {
			if strings.EqualFold(c.Table.Domain, models.SchemaDomainGaming) {
				c.AddReason("gaming table excluded for financial transaction question", gamingExclusionScore)
			}
		}
	}

	return merged
}

// domainStrategy scores tables whose domain tag matches the classified
// domain, plus half-weight for shared semantic tags with matched metrics.
func domainStrategy(profile *models.BusinessContextProfile, tables []*models.TableDescriptor) []*models.TableCandidate {
	schemaDomain, ok := classifierToSchemaDomain[profile.Domain.Name]
	if !ok {
		return nil
	}

	var out []*models.TableCandidate
	for _, t := range tables {
		if !strings.EqualFold(t.Domain, schemaDomain) {
			continue
		}
		c := &models.TableCandidate{Table: t}
		c.AddReason("domain match: "+schemaDomain, weightDomainMatch*profile.Domain.Confidence+weightDomainMatch)
		for _, metric := range profile.IdentifiedMetrics {
			if t.HasTag(metric) {
				c.AddReason("semantic tag: "+metric, weightPerSharedTag)
			}
		}
		out = append(out, c)
	}
	return out
}

// termStrategy scores tables by question-token overlap with the table
// name, aliases and business purpose.
func termStrategy(profile *models.BusinessContextProfile, tables []*models.TableDescriptor) []*models.TableCandidate {
	tokens := tokenize(profile.OriginalQuestion)
	normalized := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		normalized[normalizeToken(token)] = true
	}

	var out []*models.TableCandidate
	for _, t := range tables {
		var c *models.TableCandidate
		hit := func(reason string) {
			if c == nil {
				c = &models.TableCandidate{Table: t}
			}
			c.AddReason(reason, weightTermMatch)
		}

		for nameToken := range splitIdentifier(t.Name) {
			if normalized[nameToken] {
				hit("name token: " + nameToken)
			}
		}
		for _, alias := range t.Aliases {
			for aliasToken := range splitIdentifier(alias) {
				if normalized[aliasToken] {
					hit("alias token: " + aliasToken)
				}
			}
		}
		purposeTokens := splitIdentifier(t.BusinessPurpose)
		purposeHits := 0
		for token := range purposeTokens {
			if normalized[token] {
				purposeHits++
			}
		}
		if purposeHits >= 2 {
			hit(fmt.Sprintf("purpose overlap: %d tokens", purposeHits))
		}

		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// semanticStrategy embeds the question and scores tables by cosine
// similarity against their precomputed description embeddings.
func (e *schemaRelevanceEngine) semanticStrategy(ctx context.Context, profile *models.BusinessContextProfile, tables []*models.TableDescriptor) ([]*models.TableCandidate, error) {
	if e.embedder == nil {
		return nil, nil
	}

	embedded := 0
	for _, t := range tables {
		if len(t.Embedding) > 0 {
			embedded++
		}
	}
	if embedded == 0 {
		return nil, nil
	}

	questionVec, err := e.embedder.CreateEmbedding(ctx, profile.OriginalQuestion)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	var out []*models.TableCandidate
	for _, t := range tables {
		if len(t.Embedding) == 0 {
			continue
		}
		sim := cache.CosineSimilarity(questionVec, t.Embedding)
		if sim < minSemanticSimilarity {
			continue
		}
		c := &models.TableCandidate{Table: t}
		c.AddReason(fmt.Sprintf("semantic similarity %.2f", sim), weightSemanticMatch*sim)
		out = append(out, c)
	}
	return out, nil
}

// entityStrategy scores tables named by extracted entities, directly or
// through a column mapping.
func entityStrategy(profile *models.BusinessContextProfile, tables []*models.TableDescriptor) []*models.TableCandidate {
	byName := make(map[string]*models.TableDescriptor, len(tables))
	for _, t := range tables {
		byName[t.Name] = t
	}

	merged := make(map[string]*models.TableCandidate)
	for _, entity := range profile.Entities {
		tableName := entity.MappedName
		if i := strings.IndexByte(tableName, '.'); i >= 0 {
			tableName = tableName[:i]
		}
		t, ok := byName[tableName]
		if !ok {
			continue
		}
		c, ok := merged[tableName]
		if !ok {
			c = &models.TableCandidate{Table: t}
			merged[tableName] = c
		}
		c.AddReason("entity: "+entity.Text, weightEntityMatch*entity.Confidence)
	}

	out := make([]*models.TableCandidate, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	return out
}

// rankAndCap filters candidates below the relevance threshold and returns
// the top tables, ordered by score descending then name.
func rankAndCap(candidates map[string]*models.TableCandidate, maxTables int) []*models.TableDescriptor {
	ranked := make([]*models.TableCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < minRelevanceScore {
			continue
		}
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Table.Name < ranked[j].Table.Name
	})

	if maxTables > 0 && len(ranked) > maxTables {
		ranked = ranked[:maxTables]
	}
	out := make([]*models.TableDescriptor, len(ranked))
	for i, c := range ranked {
		out[i] = c.Table
	}
	return out
}

// fallbackSelection returns catalog tables ranked by their relevance
// prior when no strategy produced a match, preferring the classified
// domain's tables when any exist.
func fallbackSelection(tables []*models.TableDescriptor, profile *models.BusinessContextProfile, excludeGaming bool, maxTables int) []*models.TableDescriptor {
	pool := make([]*models.TableDescriptor, 0, len(tables))
	schemaDomain := classifierToSchemaDomain[profile.Domain.Name]
	for _, t := range tables {
		if excludeGaming && strings.EqualFold(t.Domain, models.SchemaDomainGaming) {
			continue
		}
		if schemaDomain != "" && strings.EqualFold(t.Domain, schemaDomain) {
			pool = append(pool, t)
		}
	}
	if len(pool) == 0 {
		for _, t := range tables {
			if excludeGaming && strings.EqualFold(t.Domain, models.SchemaDomainGaming) {
				continue
			}
			pool = append(pool, t)
		}
	}

	sort.Slice(pool, func(i, j int) bool {
		if pool[i].RelevancePrior != pool[j].RelevancePrior {
			return pool[i].RelevancePrior > pool[j].RelevancePrior
		}
		return pool[i].Name < pool[j].Name
	})
	if maxTables > 0 && len(pool) > maxTables {
		pool = pool[:maxTables]
	}
	return pool
}

func dropGamingTables(tables []*models.TableDescriptor, logger *zap.Logger) []*models.TableDescriptor {
	kept := tables[:0:0]
	for _, t := range tables {
		if strings.EqualFold(t.Domain, models.SchemaDomainGaming) {
			logger.Debug("Dropping gaming table from financial transaction context", zap.String("table", t.Name))
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// selectColumns picks per-table columns: keys always survive, then
// question-term matches, then the highest relevance priors, up to the
// cap. Column load failures degrade to key columns from the descriptor.
func (e *schemaRelevanceEngine) selectColumns(ctx context.Context, profile *models.BusinessContextProfile, schema *models.ContextualBusinessSchema, names []string, maxColumns int) {
	byTable, err := e.repo.GetColumns(ctx, names)
	if err != nil {
		e.logger.Warn("Column metadata unavailable, using descriptor columns", zap.Error(err))
		byTable = make(map[string][]models.ColumnDescriptor, len(schema.Tables))
		for _, t := range schema.Tables {
			byTable[t.Name] = t.Columns
		}
	}

	tokens := make(map[string]bool)
	for _, token := range tokenize(profile.OriginalQuestion) {
		tokens[normalizeToken(token)] = true
	}

	for _, name := range names {
		schema.SelectedColumns[name] = pickColumns(byTable[name], tokens, maxColumns)
	}
}

// pickColumns scores and caps one table's columns deterministically.
func pickColumns(columns []models.ColumnDescriptor, questionTokens map[string]bool, maxColumns int) []models.ColumnDescriptor {
	type scored struct {
		col   models.ColumnDescriptor
		score float64
	}
	ranked := make([]scored, 0, len(columns))
	for _, col := range columns {
		s := scored{col: col, score: col.RelevancePrior}
		if col.IsKey() {
			s.score += 100
		}
		for token := range splitIdentifier(col.Name) {
			if questionTokens[token] {
				s.score += 10
			}
		}
		for _, alias := range col.Aliases {
			for token := range splitIdentifier(alias) {
				if questionTokens[token] {
					s.score += 5
				}
			}
		}
		ranked = append(ranked, s)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].col.Name < ranked[j].col.Name
	})
	if maxColumns > 0 && len(ranked) > maxColumns {
		ranked = ranked[:maxColumns]
	}

	out := make([]models.ColumnDescriptor, len(ranked))
	for i, s := range ranked {
		out[i] = s.col
	}
	return out
}

// enrich attaches the rules, glossary terms and relationships scoped to
// the selected tables. Each lookup degrades independently on failure.
func (e *schemaRelevanceEngine) enrich(ctx context.Context, schema *models.ContextualBusinessSchema, names []string) {
	rules, err := e.repo.GetBusinessRules(ctx, names)
	if err != nil {
		e.logger.Warn("Business rules unavailable", zap.Error(err))
	} else {
		schema.Rules = rules
	}

	terms, err := e.repo.GetGlossaryTerms(ctx)
	if err != nil {
		e.logger.Warn("Glossary unavailable", zap.Error(err))
	} else {
		schema.Glossary = scopeGlossary(terms, names)
	}

	rels, err := e.repo.GetRelationships(ctx, names)
	if err != nil {
		e.logger.Warn("Relationships unavailable", zap.Error(err))
	} else {
		schema.Relationships = rels
	}
}

// scopeGlossary keeps unscoped terms and terms referencing a selected
// table.
func scopeGlossary(terms []models.GlossaryTerm, names []string) []models.GlossaryTerm {
	selected := make(map[string]bool, len(names))
	for _, n := range names {
		selected[n] = true
	}

	var out []models.GlossaryTerm
	for _, term := range terms {
		if len(term.TableNames) == 0 {
			out = append(out, term)
			continue
		}
		for _, n := range term.TableNames {
			if selected[n] {
				out = append(out, term)
				break
			}
		}
	}
	return out
}

// splitIdentifier breaks an identifier or free-text phrase into
// normalized tokens.
func splitIdentifier(s string) map[string]bool {
	out := make(map[string]bool)
	for _, token := range tokenize(s) {
		out[normalizeToken(token)] = true
	}
	return out
}
