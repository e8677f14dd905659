package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

func testTables() []*models.TableDescriptor {
	return []*models.TableDescriptor{
		{
			ID:      uuid.New(),
			Schema:  "public",
			Name:    "deposits",
			Domain:  models.SchemaDomainFinancial,
			Aliases: []string{"deposit transactions"},
			Columns: []models.ColumnDescriptor{
				{Name: "player_id", DataType: "uuid", IsForeignKey: true},
				{Name: "amount", DataType: "numeric", Aliases: []string{"deposit amount"}},
				{Name: "country", DataType: "text"},
			},
			IsActive: true,
		},
		{
			ID:     uuid.New(),
			Schema: "public",
			Name:   "game_rounds",
			Domain: models.SchemaDomainGaming,
			Columns: []models.ColumnDescriptor{
				{Name: "game_id", DataType: "uuid", IsForeignKey: true},
				{Name: "wager", DataType: "numeric"},
			},
			IsActive: true,
		},
		{
			ID:       uuid.New(),
			Schema:   "public",
			Name:     "players",
			Domain:   models.SchemaDomainCustomer,
			Aliases:  []string{"customers"},
			IsActive: true,
		},
	}
}

func newTestClassifier(t *testing.T) ContextClassifier {
	t.Helper()
	ref := BuildClassifierReferenceData(testTables())
	return NewContextClassifier(ref, zap.NewNop())
}

func TestClassifyFinancialAggregation(t *testing.T) {
	c := newTestClassifier(t)

	profile := c.Classify("Which country had the most depositors last week?", nil)
	require.NotNil(t, profile)

	assert.Equal(t, DomainFinancial, profile.Domain.Name)
	assert.Greater(t, profile.Domain.Confidence, 0.0)
	assert.Equal(t, models.IntentAggregation, profile.Intent)

	require.NotNil(t, profile.TimeContext)
	assert.Equal(t, "week", profile.TimeContext.Period)
	assert.True(t, profile.TimeContext.Relative)
	assert.Equal(t, 1, profile.TimeContext.Offset)
}

func TestClassifyGamingQuestion(t *testing.T) {
	c := newTestClassifier(t)

	profile := c.Classify("What are the most played games this month?", nil)

	assert.Equal(t, DomainGaming, profile.Domain.Name)
	assert.Equal(t, models.IntentAggregation, profile.Intent)
	require.NotNil(t, profile.TimeContext)
	assert.Equal(t, "month", profile.TimeContext.Period)
	assert.Equal(t, 0, profile.TimeContext.Offset)
}

func TestClassifyNeverReturnsEmptyProfile(t *testing.T) {
	c := newTestClassifier(t)

	for _, question := range []string{
		"",
		"hello",
		"what is the meaning of life",
		"asdf qwerty zxcv",
	} {
		profile := c.Classify(question, nil)
		require.NotNil(t, profile, "question: %q", question)
		assert.NotEmpty(t, profile.Intent, "question: %q", question)
		assert.NotEmpty(t, profile.Domain.Name, "question: %q", question)
	}
}

func TestClassifyUnmatchedFallsBackToGeneral(t *testing.T) {
	c := newTestClassifier(t)

	profile := c.Classify("tell me something interesting", nil)

	assert.Equal(t, models.DomainGeneral, profile.Domain.Name)
	assert.Equal(t, 0.0, profile.Domain.Confidence)
	assert.Equal(t, models.IntentExploratory, profile.Intent)
}

func TestClassifyIntentPrecedence(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		question string
		intent   models.IntentType
	}{
		{"Compare total deposits this month versus last month", models.IntentComparison},
		{"Show the revenue trend over time", models.IntentTrend},
		{"Top 10 depositors by amount", models.IntentAggregation},
		{"Why did deposits drop in March?", models.IntentAnalytical},
		{"Which withdrawals are pending right now?", models.IntentOperational},
		{"Show me the details for player 42", models.IntentDetail},
	}
	for _, tt := range tests {
		profile := c.Classify(tt.question, nil)
		assert.Equal(t, tt.intent, profile.Intent, "question: %q", tt.question)
	}
}

func TestClassifyExtractsEntities(t *testing.T) {
	c := newTestClassifier(t)

	profile := c.Classify("total deposits by country", nil)

	require.NotEmpty(t, profile.Entities)
	assert.True(t, profile.HasEntity("deposits"))

	tables := profile.MappedTableNames()
	assert.Contains(t, tables, "deposits")
}

func TestClassifyEntityFromColumnAlias(t *testing.T) {
	c := newTestClassifier(t)

	profile := c.Classify("average deposit amount per player", nil)

	found := false
	for _, e := range profile.Entities {
		if e.MappedName == "deposits.amount" {
			found = true
			assert.Equal(t, models.EntityColumn, e.Type)
		}
	}
	assert.True(t, found, "expected a column entity mapped to deposits.amount")
}

func TestClassifyTimeContextVariants(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		question string
		period   string
		relative bool
		offset   int
	}{
		{"deposits yesterday", "day", true, 1},
		{"deposits last quarter", "quarter", true, 1},
		{"deposits in the last 7 days", "day", true, 7},
		{"deposits in the past 3 months", "month", true, 3},
		{"deposits in 2025", "year", false, 0},
	}
	for _, tt := range tests {
		profile := c.Classify(tt.question, nil)
		require.NotNil(t, profile.TimeContext, "question: %q", tt.question)
		assert.Equal(t, tt.period, profile.TimeContext.Period, "question: %q", tt.question)
		assert.Equal(t, tt.relative, profile.TimeContext.Relative, "question: %q", tt.question)
		assert.Equal(t, tt.offset, profile.TimeContext.Offset, "question: %q", tt.question)
	}
}

func TestClassifyInheritsTimeContextFromPrior(t *testing.T) {
	c := newTestClassifier(t)

	prior := c.Classify("deposits last month", nil)
	require.NotNil(t, prior.TimeContext)

	followUp := c.Classify("and what about withdrawals?", prior)
	require.NotNil(t, followUp.TimeContext)
	assert.Equal(t, "month", followUp.TimeContext.Period)
	assert.Equal(t, 1, followUp.TimeContext.Offset)
}

func TestClassifyOwnTimeContextBeatsPrior(t *testing.T) {
	c := newTestClassifier(t)

	prior := c.Classify("deposits last month", nil)
	followUp := c.Classify("withdrawals yesterday", prior)

	require.NotNil(t, followUp.TimeContext)
	assert.Equal(t, "day", followUp.TimeContext.Period)
}

func TestClassifyMetricsAndDimensions(t *testing.T) {
	c := newTestClassifier(t)

	profile := c.Classify("total revenue by country and month", nil)

	assert.Contains(t, profile.IdentifiedMetrics, "revenue")
	assert.Contains(t, profile.IdentifiedDimensions, "country")
}

func TestClassifySingularizesPlurals(t *testing.T) {
	c := newTestClassifier(t)

	plural := c.Classify("show all withdrawals", nil)
	singular := c.Classify("show all withdrawal", nil)

	assert.Equal(t, plural.Domain.Name, singular.Domain.Name)
	assert.Equal(t, DomainFinancial, plural.Domain.Name)
}
