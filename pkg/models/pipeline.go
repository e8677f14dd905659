package models

import "time"

// PipelineStage identifies one state of the query pipeline state machine.
type PipelineStage string

const (
	StageReceived        PipelineStage = "received"
	StageCacheCheck      PipelineStage = "cache_check"
	StageClassifying     PipelineStage = "classifying"
	StageSchemaRetrieval PipelineStage = "schema_retrieval"
	StageBudgeting       PipelineStage = "budgeting"
	StagePromptAssembly  PipelineStage = "prompt_assembly"
	StageGenerating      PipelineStage = "generating"
	StageValidating      PipelineStage = "validating"
	StageExecuting       PipelineStage = "executing"
	StageCompleted       PipelineStage = "completed"
	StageFailed          PipelineStage = "failed"
)

// stageProgress fixes the progress percentage reported when each stage
// begins, so callers can render incremental feedback.
var stageProgress = map[PipelineStage]int{
	StageReceived:        0,
	StageCacheCheck:      5,
	StageClassifying:     10,
	StageSchemaRetrieval: 20,
	StageBudgeting:       40,
	StagePromptAssembly:  65,
	StageGenerating:      70,
	StageValidating:      90,
	StageExecuting:       95,
	StageCompleted:       100,
	StageFailed:          100,
}

// Progress returns the fixed progress percentage for the stage.
func (s PipelineStage) Progress() int {
	return stageProgress[s]
}

// Terminal reports whether the stage ends the pipeline.
func (s PipelineStage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// ProgressEvent is emitted on every stage transition. Events are transient
// UI feedback; they are never persisted.
type ProgressEvent struct {
	Stage     PipelineStage `json:"stage"`
	Message   string        `json:"message"`
	Progress  int           `json:"progress"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   any           `json:"payload,omitempty"`
}

// QueryOptions carries per-request overrides of the pipeline defaults.
// Zero values mean "use the configured default".
type QueryOptions struct {
	DisableCache       bool `json:"disable_cache,omitempty"`
	MaxTables          int  `json:"max_tables,omitempty"`
	MaxColumnsPerTable int  `json:"max_columns_per_table,omitempty"`
	TotalTokenBudget   int  `json:"total_token_budget,omitempty"`
	ExecuteSQL         bool `json:"execute_sql,omitempty"`
}

// QueryRequest is one incoming natural-language question.
type QueryRequest struct {
	Question  string       `json:"question"`
	UserID    string       `json:"user_id,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
	Options   QueryOptions `json:"options"`
}

// PromptDetails describes how the generation prompt was assembled.
type PromptDetails struct {
	TemplateKey     string          `json:"template_key"`
	Complexity      ComplexityLevel `json:"complexity"`
	Tables          []string        `json:"tables"`
	EstimatedTokens int             `json:"estimated_tokens"`
	Truncated       bool            `json:"truncated,omitempty"`
	ExampleCount    int             `json:"example_count"`
}

// QueryResult is the terminal output of the pipeline, shared by the
// synchronous and streaming entry points. On failure, LastStage carries
// the stage that was running when the pipeline failed and Error a
// human-readable message; SQL may carry a generated-so-far fragment.
type QueryResult struct {
	SQL           string           `json:"sql,omitempty"`
	Response      string           `json:"response,omitempty"`
	Rows          []map[string]any `json:"rows,omitempty"`
	Confidence    float64          `json:"confidence"`
	Cached        bool             `json:"cached"`
	PromptDetails *PromptDetails   `json:"prompt_details,omitempty"`
	Stage         PipelineStage    `json:"stage"`
	LastStage     PipelineStage    `json:"last_stage,omitempty"`
	Error         string           `json:"error,omitempty"`
}

// Failed reports whether the pipeline ended in the failure state.
func (r *QueryResult) Failed() bool {
	return r.Stage == StageFailed
}
