package logging

import "go.uber.org/zap"

// NewLogger builds the process logger: JSON production output for the
// production environment, console output otherwise.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
