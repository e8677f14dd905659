package database

import (
	"context"
	"fmt"
	"time"
)

const (
	// executorRowLimit caps result sets; NL-generated queries routinely
	// forget a LIMIT clause.
	executorRowLimit = 1000

	executorTimeout = 30 * time.Second
)

// Executor runs validated read-only SQL against the database and returns
// rows as generic maps.
type Executor struct {
	db *DB
}

// NewExecutor creates an Executor over an existing connection pool.
func NewExecutor(db *DB) *Executor {
	return &Executor{db: db}
}

// Execute runs one read-only query. Rows are decoded into maps keyed by
// column name, capped at executorRowLimit.
func (e *Executor) Execute(ctx context.Context, sql string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, executorTimeout)
	defer cancel()

	rows, err := e.db.Pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		if len(out) >= executorRowLimit {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, field := range fields {
			row[string(field.Name)] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}
