package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipelineStageProgressIsMonotonic(t *testing.T) {
	order := []PipelineStage{
		StageReceived,
		StageCacheCheck,
		StageClassifying,
		StageSchemaRetrieval,
		StageBudgeting,
		StagePromptAssembly,
		StageGenerating,
		StageValidating,
		StageExecuting,
		StageCompleted,
	}

	prev := -1
	for _, stage := range order {
		p := stage.Progress()
		assert.Greater(t, p, prev, "stage %s", stage)
		prev = p
	}
	assert.Equal(t, 100, StageCompleted.Progress())
	assert.Equal(t, 100, StageFailed.Progress())
}

func TestPipelineStageTerminal(t *testing.T) {
	assert.True(t, StageCompleted.Terminal())
	assert.True(t, StageFailed.Terminal())
	assert.False(t, StageGenerating.Terminal())
	assert.False(t, StageReceived.Terminal())
}

func TestQueryResultFailed(t *testing.T) {
	ok := QueryResult{Stage: StageCompleted}
	failed := QueryResult{Stage: StageFailed, LastStage: StageValidating}

	assert.False(t, ok.Failed())
	assert.True(t, failed.Failed())
}

func TestNormalizeQuestion(t *testing.T) {
	assert.Equal(t, "total deposits yesterday", NormalizeQuestion("  Total   DEPOSITS\n yesterday "))
	assert.Equal(t, "", NormalizeQuestion("   \t\n"))
}

func TestQuestionHashIgnoresWhitespaceAndCase(t *testing.T) {
	a := QuestionHash("Total deposits yesterday")
	b := QuestionHash("  total   DEPOSITS  yesterday ")
	c := QuestionHash("total withdrawals yesterday")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Now()

	live := CacheEntry{ExpiresAt: now.Add(time.Minute)}
	stale := CacheEntry{ExpiresAt: now.Add(-time.Minute)}
	unbounded := CacheEntry{}

	assert.False(t, live.Expired(now))
	assert.True(t, stale.Expired(now))
	assert.False(t, unbounded.Expired(now))
}

func TestTemplateKeyForIntent(t *testing.T) {
	assert.Equal(t, TemplateKeyAggregation, TemplateKeyForIntent(IntentAggregation))
	assert.Equal(t, TemplateKeyTrend, TemplateKeyForIntent(IntentTrend))
	assert.Equal(t, TemplateKeyComparison, TemplateKeyForIntent(IntentComparison))
	assert.Equal(t, TemplateKeyDetail, TemplateKeyForIntent(IntentDetail))
	assert.Equal(t, TemplateKeyGeneral, TemplateKeyForIntent(IntentExploratory))
	assert.Equal(t, TemplateKeyGeneral, TemplateKeyForIntent(IntentType("something_new")))
}
