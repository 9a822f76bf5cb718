package tasks

import (
	"log/slog"

	"github.com/MrGangrene/bgg-flashcards/internal/logging"
)

const serviceName = "tasks"

// Package-level logger for task coordination
var logger *slog.Logger

func init() {
	logger = logging.ForService(serviceName)
	if logger == nil {
		logger = slog.Default().With("service", serviceName)
	}
}
