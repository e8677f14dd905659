package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrCacheMiss        = errors.New("cache miss")
	ErrNoSchemaMetadata = errors.New("schema metadata repository returned no tables")
	ErrGenerationFailed = errors.New("generation backend failed")
	ErrInvalidSQL       = errors.New("generated SQL failed validation")
	ErrEmptyQuestion    = errors.New("question is empty")
)
