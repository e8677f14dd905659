package services

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/queryhaven/queryhaven-engine/pkg/logging"
	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

// ContextClassifier turns a raw question into a structured business
// context profile. Classification is a pure function of the question plus
// static reference data; it never fails, degrading to low-confidence
// defaults instead.
type ContextClassifier interface {
	// Classify profiles a question. prior, when non-nil, carries the
	// previous question's profile for session continuity: its time
	// context is inherited when the new question has none.
	Classify(question string, prior *models.BusinessContextProfile) *models.BusinessContextProfile
}

type contextClassifier struct {
	ref    *ClassifierReferenceData
	logger *zap.Logger
}

// NewContextClassifier creates a ContextClassifier over the given
// reference data.
func NewContextClassifier(ref *ClassifierReferenceData, logger *zap.Logger) ContextClassifier {
	return &contextClassifier{
		ref:    ref,
		logger: logger.Named("classifier"),
	}
}

var _ ContextClassifier = (*contextClassifier)(nil)

// Classify implements ContextClassifier.
func (c *contextClassifier) Classify(question string, prior *models.BusinessContextProfile) *models.BusinessContextProfile {
	profile := &models.BusinessContextProfile{
		OriginalQuestion: question,
		Domain:           scoreDomain(question),
		Intent:           classifyIntent(question),
	}

	profile.Entities = c.extractEntities(question)
	profile.TimeContext = extractTimeContext(question)
	if profile.TimeContext == nil && prior != nil {
		profile.TimeContext = prior.TimeContext
	}
	profile.IdentifiedMetrics, profile.IdentifiedDimensions = extractMetricsAndDimensions(question)

	c.logger.Debug("Question classified",
		zap.String("question", logging.SanitizeQuestion(question)),
		zap.String("intent", string(profile.Intent)),
		zap.String("domain", profile.Domain.Name),
		zap.Float64("domain_confidence", profile.Domain.Confidence),
		zap.Int("entities", len(profile.Entities)))

	return profile
}

// scoreDomain runs lexical keyword scoring over the fixed domain table.
// The winning domain's confidence saturates towards 1.0 as matched
// keyword weight grows; an unmatched question yields the General domain
// with zero confidence.
func scoreDomain(question string) models.DomainMatch {
	tokens := tokenize(question)

	scores := make(map[string]float64)
	for _, token := range tokens {
		normalized := normalizeToken(token)
		for domain, keywords := range domainKeywordTable {
			if weight, ok := keywords[normalized]; ok {
				scores[domain] += weight
			}
		}
	}

	if len(scores) == 0 {
		return models.DomainMatch{Name: models.DomainGeneral, Confidence: 0}
	}

	// Deterministic winner: highest score, ties broken alphabetically.
	domains := make([]string, 0, len(scores))
	for domain := range scores {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	best := domains[0]
	for _, domain := range domains[1:] {
		if scores[domain] > scores[best] {
			best = domain
		}
	}

	raw := scores[best]
	return models.DomainMatch{
		Name:       best,
		Confidence: raw / (raw + 3.0),
	}
}

// classifyIntent applies the fixed rule vocabularies in precedence order.
// Comparison and trend phrasing outranks aggregation verbs so "compare
// total deposits" classifies as a comparison.
func classifyIntent(question string) models.IntentType {
	lower := " " + strings.ToLower(question) + " "

	matchAny := func(words []string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	switch {
	case matchAny(comparisonWords):
		return models.IntentComparison
	case matchAny(trendWords):
		return models.IntentTrend
	case matchAny(aggregationWords):
		return models.IntentAggregation
	case matchAny(analyticalWords):
		return models.IntentAnalytical
	case matchAny(operationalWords):
		return models.IntentOperational
	case matchAny(detailWords):
		return models.IntentDetail
	default:
		return models.IntentExploratory
	}
}

// extractEntities matches question n-grams against the alias index,
// longest grams first, consuming tokens greedily so overlapping shorter
// matches are skipped.
func (c *contextClassifier) extractEntities(question string) []models.QueryEntity {
	tokens := tokenize(question)
	normalized := make([]string, len(tokens))
	for i, token := range tokens {
		normalized[i] = normalizeToken(token)
	}

	consumed := make([]bool, len(tokens))
	var entities []models.QueryEntity

	for n := c.ref.maxNGram; n >= 1; n-- {
		for start := 0; start+n <= len(tokens); start++ {
			if anyConsumed(consumed, start, n) {
				continue
			}

			exactKey := strings.Join(normalized[start:start+n], " ")
			entry, ok := c.ref.lookup(exactKey)
			confidence := entry.Priority
			if !ok && n == 1 {
				// Fall back to the raw (non-singularized) token; some
				// aliases are inherently plural.
				entry, ok = c.ref.lookup(tokens[start])
				confidence = entry.Priority * 0.8
			}
			if !ok {
				continue
			}

			entities = append(entities, models.QueryEntity{
				Text:       strings.Join(tokens[start:start+n], " "),
				Type:       entry.EntityType,
				MappedName: entry.MappedName,
				Confidence: confidence,
			})
			for i := start; i < start+n; i++ {
				consumed[i] = true
			}
		}
	}

	return entities
}

func anyConsumed(consumed []bool, start, n int) bool {
	for i := start; i < start+n; i++ {
		if consumed[i] {
			return true
		}
	}
	return false
}

// extractTimeContext matches the fixed relative-date vocabulary, then the
// "last N periods" pattern, then a bare absolute year.
func extractTimeContext(question string) *models.TimeContext {
	lower := strings.ToLower(question)

	for _, entry := range timeVocabulary {
		if strings.Contains(lower, entry.phrase) {
			ctx := entry.context
			ctx.Expression = entry.phrase
			return &ctx
		}
	}

	if m := lastNPattern.FindStringSubmatch(lower); m != nil {
		offset := 0
		for _, ch := range m[1] {
			offset = offset*10 + int(ch-'0')
		}
		return &models.TimeContext{
			Expression: m[0],
			Period:     m[2],
			Relative:   true,
			Offset:     offset,
		}
	}

	if m := absoluteYearPattern.FindStringSubmatch(lower); m != nil {
		return &models.TimeContext{
			Expression: m[1],
			Period:     "year",
			Relative:   false,
		}
	}

	return nil
}

// extractMetricsAndDimensions collects static-vocabulary metric and
// dimension mentions, deduplicated in question order.
func extractMetricsAndDimensions(question string) (metrics, dimensions []string) {
	seenMetric := make(map[string]bool)
	seenDim := make(map[string]bool)

	for _, token := range tokenize(question) {
		normalized := normalizeToken(token)
		if canonical, ok := metricVocabulary[normalized]; ok && !seenMetric[canonical] {
			seenMetric[canonical] = true
			metrics = append(metrics, canonical)
		}
		if canonical, ok := dimensionVocabulary[normalized]; ok && !seenDim[canonical] {
			seenDim[canonical] = true
			dimensions = append(dimensions, canonical)
		}
	}
	return metrics, dimensions
}
