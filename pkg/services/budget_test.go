package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryhaven/queryhaven-engine/pkg/config"
	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

func testQueryConfig() *config.QueryConfig {
	return &config.QueryConfig{
		EnableQueryCaching:  true,
		EnableSemanticCache: true,
		SimilarityThreshold: 0.85,
		MaxTables:           5,
		MaxColumnsPerTable:  15,
		TotalTokenBudget:    6000,
		SchemaRatio:         0.60,
		RulesRatio:          0.15,
		GlossaryRatio:       0.10,
		ExamplesRatio:       0.15,
		MaxExamples:         3,
	}
}

func budgetSchema(tables, columnsPerTable int) *models.ContextualBusinessSchema {
	schema := &models.ContextualBusinessSchema{
		SelectedColumns: make(map[string][]models.ColumnDescriptor),
	}
	for i := 0; i < tables; i++ {
		name := fmt.Sprintf("table_%02d", i)
		t := &models.TableDescriptor{
			Schema:          "public",
			Name:            name,
			BusinessPurpose: "Holds business records for reporting and reconciliation",
		}
		cols := make([]models.ColumnDescriptor, 0, columnsPerTable)
		cols = append(cols, models.ColumnDescriptor{Name: "id", DataType: "uuid", IsPrimaryKey: true})
		for j := 1; j < columnsPerTable; j++ {
			cols = append(cols, models.ColumnDescriptor{
				Name:            fmt.Sprintf("col_%02d", j),
				DataType:        "text",
				BusinessPurpose: "A descriptive business attribute used in reports",
			})
		}
		schema.Tables = append(schema.Tables, t)
		schema.SelectedColumns[name] = cols
	}
	return schema
}

func TestAllocateSplitsByRatios(t *testing.T) {
	m := NewTokenBudgetManager(testQueryConfig(), zap.NewNop())

	budgeted := m.Allocate(6000, budgetSchema(2, 5), nil)

	assert.Equal(t, 6000, budgeted.Budget.Total)
	assert.Equal(t, 3600, budgeted.Budget.SchemaTokens)
	assert.Equal(t, 900, budgeted.Budget.RuleTokens)
	assert.Equal(t, 600, budgeted.Budget.GlossaryTokens)
	assert.Equal(t, 900, budgeted.Budget.ExampleTokens)
	assert.LessOrEqual(t, budgeted.Budget.Allocated(), 6000)
}

func TestAllocateSmallContextUntouched(t *testing.T) {
	m := NewTokenBudgetManager(testQueryConfig(), zap.NewNop())
	schema := budgetSchema(2, 5)

	budgeted := m.Allocate(6000, schema, nil)

	assert.False(t, budgeted.Truncated)
	assert.Len(t, budgeted.Schema.Tables, 2)
	assert.LessOrEqual(t, budgeted.EstimatedTokens, 6000)
}

func TestAllocateTrimsTablesUnderPressure(t *testing.T) {
	m := NewTokenBudgetManager(testQueryConfig(), zap.NewNop())
	schema := budgetSchema(10, 15)

	budgeted := m.Allocate(500, schema, nil)

	assert.True(t, budgeted.Truncated)
	assert.Less(t, len(budgeted.Schema.Tables), 10)
	assert.NotEmpty(t, budgeted.Schema.Tables, "at least one table must survive")
}

func TestAllocateAlwaysKeepsOneTable(t *testing.T) {
	m := NewTokenBudgetManager(testQueryConfig(), zap.NewNop())
	schema := budgetSchema(5, 20)

	budgeted := m.Allocate(10, schema, nil)

	assert.True(t, budgeted.Truncated)
	require.Len(t, budgeted.Schema.Tables, 1)
}

func TestAllocateDoesNotMutateInput(t *testing.T) {
	m := NewTokenBudgetManager(testQueryConfig(), zap.NewNop())
	schema := budgetSchema(10, 15)
	schema.Rules = []models.BusinessRule{
		{Rule: "Exclude test accounts from all reports", Priority: 1},
	}

	_ = m.Allocate(200, schema, nil)

	assert.Len(t, schema.Tables, 10)
	assert.Len(t, schema.Rules, 1)
	assert.Len(t, schema.SelectedColumns["table_00"], 15)
}

func TestAllocateTrimsExamples(t *testing.T) {
	m := NewTokenBudgetManager(testQueryConfig(), zap.NewNop())
	schema := budgetSchema(1, 3)

	examples := []models.QueryExample{
		{Question: "How many deposits were made yesterday?", SQL: "SELECT COUNT(*) FROM deposits WHERE created_at >= CURRENT_DATE - 1"},
		{Question: "Total withdrawals last month", SQL: "SELECT SUM(amount) FROM withdrawals WHERE created_at >= date_trunc('month', now()) - interval '1 month'"},
		{Question: "Top depositors", SQL: "SELECT player_id, SUM(amount) FROM deposits GROUP BY player_id ORDER BY 2 DESC LIMIT 10"},
	}

	budgeted := m.Allocate(400, schema, examples)

	assert.Less(t, len(budgeted.Examples), 3)
	// Dropped from the end: the survivors keep their order.
	for i, ex := range budgeted.Examples {
		assert.Equal(t, examples[i].Question, ex.Question)
	}
}

func TestAllocateZeroBudgetUsesDefault(t *testing.T) {
	cfg := testQueryConfig()
	m := NewTokenBudgetManager(cfg, zap.NewNop())

	budgeted := m.Allocate(0, budgetSchema(1, 3), nil)

	assert.Equal(t, cfg.TotalTokenBudget, budgeted.Budget.Total)
}

func TestAllocateColumnsFallBackToKeys(t *testing.T) {
	m := NewTokenBudgetManager(testQueryConfig(), zap.NewNop())
	schema := budgetSchema(2, 30)

	budgeted := m.Allocate(300, schema, nil)

	require.True(t, budgeted.Truncated)
	for _, tab := range budgeted.Schema.Tables {
		cols := budgeted.Schema.SelectedColumns[tab.Name]
		if len(cols) == 30 {
			continue
		}
		for _, col := range cols {
			assert.True(t, col.IsKey(), "trimmed table %s kept non-key column %s", tab.Name, col.Name)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("a"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 25, EstimateTokens(string(make([]byte, 100))))
}
