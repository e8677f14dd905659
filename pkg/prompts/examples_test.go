package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

func TestFindRelevantExamplesPrefersIntentAndDomain(t *testing.T) {
	profile := &models.BusinessContextProfile{
		OriginalQuestion: "total deposits by country",
		Intent:           models.IntentAggregation,
		Domain:           models.DomainMatch{Name: "Banking/Financial", Confidence: 0.8},
	}

	examples := FindRelevantExamples(profile, []string{"deposits"}, 3)
	require.NotEmpty(t, examples)
	assert.LessOrEqual(t, len(examples), 3)

	for _, ex := range examples[:1] {
		assert.Equal(t, models.IntentAggregation, ex.Intent)
	}
}

func TestFindRelevantExamplesSkipsUnrelated(t *testing.T) {
	profile := &models.BusinessContextProfile{
		OriginalQuestion: "something off-catalog",
		Intent:           models.IntentExploratory,
		Domain:           models.DomainMatch{Name: models.DomainGeneral},
	}

	examples := FindRelevantExamples(profile, nil, 3)
	assert.Empty(t, examples, "no example should score for an unmatched profile")
}

func TestFindRelevantExamplesDeterministic(t *testing.T) {
	profile := &models.BusinessContextProfile{
		Intent: models.IntentTrend,
		Domain: models.DomainMatch{Name: "Banking/Financial"},
	}

	first := FindRelevantExamples(profile, []string{"deposits"}, 5)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, FindRelevantExamples(profile, []string{"deposits"}, 5))
	}
}

func TestFindRelevantExamplesHonorsMax(t *testing.T) {
	profile := &models.BusinessContextProfile{
		Intent: models.IntentAggregation,
		Domain: models.DomainMatch{Name: "Banking/Financial"},
	}

	examples := FindRelevantExamples(profile, []string{"deposits", "withdrawals"}, 1)
	assert.Len(t, examples, 1)
}
