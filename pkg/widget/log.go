package widget

import (
	"context"
	"log/slog"
)

// LogWidget logs each batch and its operations.
type LogWidget struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogWidget creates a widget logging batches at info level and
// operations at debug level.
func NewLogWidget(logger *slog.Logger) *LogWidget {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogWidget{logger: logger, level: slog.LevelDebug}
}

// WithOpLevel sets the level used for individual operations.
func (w *LogWidget) WithOpLevel(level slog.Level) *LogWidget {
	w.level = level
	return w
}

// ApplyBatch implements Widget.
func (w *LogWidget) ApplyBatch(ctx context.Context, u *Update) error {
	w.logger.InfoContext(ctx, "apply batch",
		"seq", u.Seq,
		"generation", u.Generation,
		"ops", u.Script.Len(),
		"sections", u.Snapshot.Len())

	if u.Script == nil {
		return nil
	}
	for _, op := range u.Script.Ops {
		w.logger.Log(ctx, w.level, "op",
			"seq", u.Seq,
			"op", op.String(),
			"animation", u.AnimationFor(op.Kind).String())
	}
	return nil
}
