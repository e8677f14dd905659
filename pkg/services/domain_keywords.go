package services

import (
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

// Business domains recognized by the classifier. Unmatched questions fall
// back to models.DomainGeneral with zero confidence.
const (
	DomainFinancial = "Banking/Financial"
	DomainGaming    = "Gaming"
	DomainCustomer  = "Player/Customer"
	DomainMarketing = "Marketing"
)

// domainKeywordTable is the fixed keyword table for lexical domain
// scoring. Keywords are matched against singularized question tokens;
// weights reflect how strongly a keyword signals the domain.
var domainKeywordTable = map[string]map[string]float64{
	DomainFinancial: {
		"deposit":     3,
		"depositor":   3,
		"withdrawal":  3,
		"payment":     3,
		"payout":      3,
		"transaction": 3,
		"transfer":    2,
		"chargeback":  2,
		"refund":      2,
		"balance":     2,
		"invoice":     2,
		"revenue":     1,
		"amount":      1,
		"currency":    1,
	},
	DomainGaming: {
		"game":     3,
		"slot":     3,
		"casino":   3,
		"jackpot":  2,
		"bet":      2,
		"wager":    2,
		"spin":     2,
		"rtp":      2,
		"ggr":      2,
		"round":    1,
		"provider": 1,
		// Major game providers act as strong gaming signals.
		"netent":      3,
		"microgaming": 3,
		"playtech":    3,
		"evolution":   2,
		"pragmatic":   2,
	},
	DomainCustomer: {
		"player":       2,
		"customer":     2,
		"account":      2,
		"signup":       2,
		"registration": 2,
		"churn":        2,
		"vip":          2,
		"segment":      1,
		"user":         1,
	},
	DomainMarketing: {
		"campaign":   3,
		"promotion":  2,
		"bonus":      2,
		"affiliate":  2,
		"conversion": 2,
		"ctr":        2,
		"channel":    1,
	},
}

// financialTransactionVocabulary triggers the gaming-table exclusion rule:
// a question carrying any of these terms is treated as a financial
// transaction query regardless of its scored domain.
var financialTransactionVocabulary = map[string]bool{
	"deposit":     true,
	"depositor":   true,
	"withdrawal":  true,
	"payment":     true,
	"payout":      true,
	"transaction": true,
	"transfer":    true,
	"balance":     true,
}

// Intent rule vocabularies, checked in a fixed order by classifyIntent.
var (
	comparisonWords  = []string{"versus", " vs ", " vs.", "compare", "compared", "comparison", "difference between", "relative to"}
	trendWords       = []string{"trend", "over time", "growth", "trajectory", "month over month", "week over week", "by month", "by week", "by day", "per month", "per week"}
	aggregationWords = []string{"top ", "total", "sum ", "sum of", "count", "average", "avg", "max ", "min ", "highest", "lowest", "most ", "least ", "number of", "biggest"}
	analyticalWords  = []string{"why ", "correlation", "impact", "driver", "analyze", "analysis", "relationship between"}
	operationalWords = []string{"pending", "failed", "in progress", "right now", "currently", "status of", "open "}
	detailWords      = []string{"detail", "details", "show me the", "list all", "record for", "look up", "lookup"}
)

// tokenPattern splits questions into word tokens for keyword matching.
var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lowercases a question and splits it into word tokens.
func tokenize(question string) []string {
	return tokenPattern.FindAllString(strings.ToLower(question), -1)
}

// normalizeToken singularizes a token so plural forms hit singular
// keyword entries ("depositors" → "depositor").
func normalizeToken(token string) string {
	return inflection.Singular(token)
}

// containsFinancialTransactionTerm reports whether any question token
// belongs to the financial transaction vocabulary.
func containsFinancialTransactionTerm(question string) bool {
	for _, token := range tokenize(question) {
		if financialTransactionVocabulary[normalizeToken(token)] {
			return true
		}
	}
	return false
}

// timeVocabulary maps fixed relative-date phrases to their time context.
// Checked longest-phrase-first by extractTimeContext.
var timeVocabulary = []struct {
	phrase  string
	context models.TimeContext
}{
	{"yesterday", models.TimeContext{Period: "day", Relative: true, Offset: 1}},
	{"today", models.TimeContext{Period: "day", Relative: true, Offset: 0}},
	{"last week", models.TimeContext{Period: "week", Relative: true, Offset: 1}},
	{"this week", models.TimeContext{Period: "week", Relative: true, Offset: 0}},
	{"last month", models.TimeContext{Period: "month", Relative: true, Offset: 1}},
	{"this month", models.TimeContext{Period: "month", Relative: true, Offset: 0}},
	{"last quarter", models.TimeContext{Period: "quarter", Relative: true, Offset: 1}},
	{"this quarter", models.TimeContext{Period: "quarter", Relative: true, Offset: 0}},
	{"last year", models.TimeContext{Period: "year", Relative: true, Offset: 1}},
	{"this year", models.TimeContext{Period: "year", Relative: true, Offset: 0}},
}

// lastNPattern matches phrases like "last 7 days" / "past 3 months".
var lastNPattern = regexp.MustCompile(`(?:last|past)\s+(\d+)\s+(day|week|month|quarter|year)s?`)

// absoluteYearPattern matches a bare four-digit year.
var absoluteYearPattern = regexp.MustCompile(`\b(20\d{2})\b`)
