package services

import (
	"sort"
	"strings"

	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

// aliasEntry maps one known business alias to the schema object it names.
type aliasEntry struct {
	EntityType models.EntityType
	MappedName string
	Priority   float64 // Alias priority, folded into match confidence
}

// Static metric and dimension vocabularies. These are business terms
// rather than schema objects, so they live here instead of the alias
// index built from descriptors.
var metricVocabulary = map[string]string{
	"revenue":    "revenue",
	"deposit":    "deposits",
	"withdrawal": "withdrawals",
	"ggr":        "ggr",
	"turnover":   "turnover",
	"wager":      "wagers",
	"balance":    "balance",
	"count":      "count",
	"amount":     "amount",
}

var dimensionVocabulary = map[string]string{
	"country":  "country",
	"provider": "provider",
	"game":     "game",
	"currency": "currency",
	"channel":  "channel",
	"month":    "month",
	"week":     "week",
	"day":      "day",
	"segment":  "segment",
}

// ClassifierReferenceData is the immutable alias index the classifier
// matches question n-grams against. It is built once at process start
// from the schema metadata repository and passed by reference; it is
// never mutated afterwards.
type ClassifierReferenceData struct {
	aliasIndex map[string][]aliasEntry
	maxNGram   int
}

// BuildClassifierReferenceData indexes table and column names plus their
// business aliases. Alias priorities: table name 1.0, table alias 0.9,
// column name 0.8, column alias 0.7.
func BuildClassifierReferenceData(tables []*models.TableDescriptor) *ClassifierReferenceData {
	ref := &ClassifierReferenceData{
		aliasIndex: make(map[string][]aliasEntry),
		maxNGram:   1,
	}

	for _, table := range tables {
		ref.add(table.Name, aliasEntry{
			EntityType: models.EntityTable,
			MappedName: table.Name,
			Priority:   1.0,
		})
		for _, alias := range table.Aliases {
			ref.add(alias, aliasEntry{
				EntityType: models.EntityTable,
				MappedName: table.Name,
				Priority:   0.9,
			})
		}
		for i := range table.Columns {
			col := &table.Columns[i]
			mapped := table.Name + "." + col.Name
			ref.add(col.Name, aliasEntry{
				EntityType: models.EntityColumn,
				MappedName: mapped,
				Priority:   0.8,
			})
			for _, alias := range col.Aliases {
				ref.add(alias, aliasEntry{
					EntityType: models.EntityColumn,
					MappedName: mapped,
					Priority:   0.7,
				})
			}
		}
	}

	return ref
}

// add registers an alias under its normalized token form. Multi-word
// aliases become n-gram keys.
func (r *ClassifierReferenceData) add(alias string, entry aliasEntry) {
	tokens := tokenize(alias)
	if len(tokens) == 0 {
		return
	}
	for i, token := range tokens {
		tokens[i] = normalizeToken(token)
	}
	key := strings.Join(tokens, " ")

	// Keep entries sorted by priority desc then mapped name so lookups
	// are deterministic.
	entries := append(r.aliasIndex[key], entry)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].MappedName < entries[j].MappedName
	})
	r.aliasIndex[key] = entries

	if len(tokens) > r.maxNGram {
		r.maxNGram = len(tokens)
	}
}

// lookup returns the best entry for a normalized n-gram key, if any.
func (r *ClassifierReferenceData) lookup(key string) (aliasEntry, bool) {
	entries, ok := r.aliasIndex[key]
	if !ok || len(entries) == 0 {
		return aliasEntry{}, false
	}
	return entries[0], true
}
