package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/queryhaven/queryhaven-engine/pkg/apperrors"
	"github.com/queryhaven/queryhaven-engine/pkg/config"
	"github.com/queryhaven/queryhaven-engine/pkg/llm"
	"github.com/queryhaven/queryhaven-engine/pkg/logging"
	"github.com/queryhaven/queryhaven-engine/pkg/models"
	"github.com/queryhaven/queryhaven-engine/pkg/prompts"
	"github.com/queryhaven/queryhaven-engine/pkg/retry"
	"github.com/queryhaven/queryhaven-engine/pkg/sqlcheck"
)

// SQLExecutor runs a validated read-only query against the customer
// database. Execution is optional; the orchestrator works without one.
type SQLExecutor interface {
	Execute(ctx context.Context, sql string) ([]map[string]any, error)
}

// ProgressFunc receives stage transition events. It is called from the
// pipeline goroutine and must not block for long.
type ProgressFunc func(models.ProgressEvent)

// QueryOrchestrator drives a question through the full pipeline: cache
// check, classification, schema retrieval, budgeting, prompt assembly,
// generation, validation and optional execution.
type QueryOrchestrator interface {
	// ProcessQuery runs the pipeline synchronously. The returned result
	// always carries a terminal stage; pipeline failures are reported in
	// the result, not as an error.
	ProcessQuery(ctx context.Context, req *models.QueryRequest) *models.QueryResult

	// ProcessQueryStream runs the pipeline emitting a ProgressEvent per
	// stage transition plus generation chunks, then returns the same
	// terminal result as ProcessQuery.
	ProcessQueryStream(ctx context.Context, req *models.QueryRequest, emit ProgressFunc) *models.QueryResult
}

type queryOrchestrator struct {
	classifier ContextClassifier
	relevance  SchemaRelevanceEngine
	budget     TokenBudgetManager
	assembler  PromptAssembler
	cache      QueryCache
	generator  llm.Generator
	executor   SQLExecutor
	cfg        *config.QueryConfig
	genTimeout time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[string]*models.BusinessContextProfile
}

// NewQueryOrchestrator wires the pipeline. executor may be nil to disable
// the execution stage.
func NewQueryOrchestrator(
	classifier ContextClassifier,
	relevance SchemaRelevanceEngine,
	budget TokenBudgetManager,
	assembler PromptAssembler,
	queryCache QueryCache,
	generator llm.Generator,
	executor SQLExecutor,
	cfg *config.QueryConfig,
	genTimeout time.Duration,
	logger *zap.Logger,
) QueryOrchestrator {
	return &queryOrchestrator{
		classifier: classifier,
		relevance:  relevance,
		budget:     budget,
		assembler:  assembler,
		cache:      queryCache,
		generator:  generator,
		executor:   executor,
		cfg:        cfg,
		genTimeout: genTimeout,
		logger:     logger.Named("orchestrator"),
		sessions:   make(map[string]*models.BusinessContextProfile),
	}
}

var _ QueryOrchestrator = (*queryOrchestrator)(nil)

// ProcessQuery implements QueryOrchestrator.
func (o *queryOrchestrator) ProcessQuery(ctx context.Context, req *models.QueryRequest) *models.QueryResult {
	return o.run(ctx, req, nil, false)
}

// ProcessQueryStream implements QueryOrchestrator.
func (o *queryOrchestrator) ProcessQueryStream(ctx context.Context, req *models.QueryRequest, emit ProgressFunc) *models.QueryResult {
	return o.run(ctx, req, emit, true)
}

// run is the pipeline state machine. Each stage transition emits one
// event; on any error the pipeline moves to the failed state carrying the
// stage it was in.
func (o *queryOrchestrator) run(ctx context.Context, req *models.QueryRequest, emit ProgressFunc, streaming bool) *models.QueryResult {
	stage := models.StageReceived
	notify := func(next models.PipelineStage, message string, payload any) {
		stage = next
		if emit != nil {
			emit(models.ProgressEvent{
				Stage:     next,
				Message:   message,
				Progress:  next.Progress(),
				Timestamp: time.Now().UTC(),
				Payload:   payload,
			})
		}
	}
	fail := func(err error) *models.QueryResult {
		o.logger.Warn("Pipeline failed",
			zap.String("stage", string(stage)),
			zap.String("question", logging.SanitizeQuestion(req.Question)),
			zap.Error(err))
		result := &models.QueryResult{
			Stage:     models.StageFailed,
			LastStage: stage,
			Error:     err.Error(),
		}
		notify(models.StageFailed, err.Error(), nil)
		return result
	}

	notify(models.StageReceived, "Question received", nil)

	if strings.TrimSpace(req.Question) == "" {
		return fail(apperrors.ErrEmptyQuestion)
	}

	useCache := !req.Options.DisableCache
	if useCache {
		notify(models.StageCacheCheck, "Checking cache", nil)
		if entry, err := o.cache.Lookup(ctx, req.Question); err == nil {
			result := &models.QueryResult{
				SQL:        entry.GeneratedSQL,
				Response:   entry.Response,
				Confidence: entry.Similarity,
				Cached:     true,
				Stage:      models.StageCompleted,
			}
			notify(models.StageCompleted, "Served from cache", result)
			return result
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
	}

	notify(models.StageClassifying, "Classifying question", nil)
	profile := o.classifier.Classify(req.Question, o.priorProfile(req.SessionID))
	o.rememberProfile(req.SessionID, profile)

	notify(models.StageSchemaRetrieval, "Selecting relevant schema", profile)
	maxTables := orDefault(req.Options.MaxTables, o.cfg.MaxTables)
	maxColumns := orDefault(req.Options.MaxColumnsPerTable, o.cfg.MaxColumnsPerTable)
	schema, err := o.relevance.SelectRelevantSchema(ctx, profile, maxTables, maxColumns)
	if err != nil {
		return fail(fmt.Errorf("schema retrieval: %w", err))
	}

	notify(models.StageBudgeting, "Fitting context to token budget", nil)
	examples := prompts.FindRelevantExamples(profile, schema.TableNames(), o.cfg.MaxExamples)
	budgeted := o.budget.Allocate(orDefault(req.Options.TotalTokenBudget, o.cfg.TotalTokenBudget), schema, examples)

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	notify(models.StagePromptAssembly, "Assembling prompt", nil)
	prompt, details, err := o.assembler.BuildPrompt(ctx, profile, budgeted)
	if err != nil {
		return fail(fmt.Errorf("prompt assembly: %w", err))
	}

	notify(models.StageGenerating, "Generating SQL", details)
	raw, err := o.generate(ctx, prompt, emit, streaming)
	if err != nil {
		result := fail(fmt.Errorf("generation: %w", errors.Join(apperrors.ErrGenerationFailed, err)))
		result.SQL = raw
		result.PromptDetails = details
		return result
	}

	notify(models.StageValidating, "Validating SQL", nil)
	checked := sqlcheck.Validate(raw)
	if !checked.Valid() {
		result := fail(fmt.Errorf("validation: %w", errors.Join(apperrors.ErrInvalidSQL, checked.Error)))
		result.SQL = checked.NormalizedSQL
		result.PromptDetails = details
		return result
	}

	result := &models.QueryResult{
		SQL:           checked.NormalizedSQL,
		Confidence:    confidence(profile, budgeted),
		PromptDetails: details,
		Stage:         models.StageCompleted,
	}

	if req.Options.ExecuteSQL && o.executor != nil {
		notify(models.StageExecuting, "Executing SQL", nil)
		rows, err := o.executor.Execute(ctx, checked.NormalizedSQL)
		if err != nil {
			failed := fail(fmt.Errorf("execution: %w", err))
			failed.SQL = checked.NormalizedSQL
			failed.PromptDetails = details
			return failed
		}
		result.Rows = rows
	}

	// Cancelled requests never populate the cache; a partial pipeline run
	// is not a trustworthy answer.
	if useCache && ctx.Err() == nil {
		if err := o.cache.Store(ctx, req.Question, result.SQL, result.Response); err != nil {
			o.logger.Warn("Storing cache entry failed", zap.Error(err))
		}
	}

	notify(models.StageCompleted, "Done", result)
	o.logger.Info("Pipeline completed",
		zap.String("question", logging.SanitizeQuestion(req.Question)),
		zap.String("sql", logging.SanitizeSQL(result.SQL)),
		zap.Float64("confidence", result.Confidence),
		zap.Strings("tables", details.Tables))
	return result
}

// generate calls the LLM with retry for transient failures. In streaming
// mode, chunks are forwarded to the caller as generating-stage events.
func (o *queryOrchestrator) generate(ctx context.Context, prompt string, emit ProgressFunc, streaming bool) (string, error) {
	genCtx := ctx
	if o.genTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, o.genTimeout)
		defer cancel()
	}

	if streaming && emit != nil {
		chunks := make(chan string)
		done := make(chan struct{})
		go func() {
			defer close(done)
			for chunk := range chunks {
				emit(models.ProgressEvent{
					Stage:     models.StageGenerating,
					Message:   "chunk",
					Progress:  models.StageGenerating.Progress(),
					Timestamp: time.Now().UTC(),
					Payload:   chunk,
				})
			}
		}()
		content, err := o.generator.GenerateStream(genCtx, prompt, prompts.SystemMessage, chunks)
		close(chunks)
		<-done
		return content, err
	}

	var content string
	err := retry.DoIfRetryable(genCtx, nil, func() error {
		var genErr error
		content, genErr = o.generator.Generate(genCtx, prompt, prompts.SystemMessage)
		return genErr
	})
	return content, err
}

func (o *queryOrchestrator) priorProfile(sessionID string) *models.BusinessContextProfile {
	if sessionID == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessions[sessionID]
}

func (o *queryOrchestrator) rememberProfile(sessionID string, profile *models.BusinessContextProfile) {
	if sessionID == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions[sessionID] = profile
}

// confidence blends classification strength with context quality. It is a
// heuristic ranking signal, not a calibrated probability.
func confidence(profile *models.BusinessContextProfile, budgeted *models.BudgetedContext) float64 {
	score := 0.4 + 0.4*profile.Domain.Confidence
	if len(profile.Entities) > 0 {
		score += 0.1
	}
	if !budgeted.Truncated {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func orDefault(value, fallback int) int {
	if value > 0 {
		return value
	}
	return fallback
}
