package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Init builds the process-wide zap logger. Development mode switches to the
// human-readable console encoder.
func Init() (*zap.Logger, error) {
	if isDevelopment() {
		logg, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("init development logger: %w", err)
		}
		return logg, nil
	}

	logg, err := zap.NewProduction()
	if err != nil {
		return nil, fmt.Errorf("init production logger: %w", err)
	}
	return logg, nil
}

func isDevelopment() bool {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("CLOUDBUCKET_ENV")))
	return env == "dev" || env == "development" || env == "local"
}
