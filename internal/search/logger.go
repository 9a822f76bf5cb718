package search

import (
	"log/slog"

	"github.com/MrGangrene/bgg-flashcards/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("search")
	if logger == nil {
		logger = slog.Default().With("service", "search")
	}
}
