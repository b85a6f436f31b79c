package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawl/internal/progress"
)

// LogSink writes each progress event as a debug log line. Session boundaries
// are logged at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a logger to the sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs every event in batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("session_id", evt.SessionID),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageFetchDone:
			fields = append(fields,
				zap.String("url", evt.URL),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Int64("words", evt.Words),
				zap.Duration("dur", evt.Dur),
			)
		case progress.StageFetchFailed:
			fields = append(fields,
				zap.String("url", evt.URL),
				zap.String("kind", evt.Kind),
				zap.String("note", evt.Note),
			)
		default:
			fields = append(fields,
				zap.Int64("pages", evt.Pages),
				zap.Int64("words", evt.Words),
				zap.Duration("dur", evt.Dur),
			)
		}
		if evt.Stage == progress.StageFetchDone || evt.Stage == progress.StageFetchFailed {
			s.logger.Debug("progress", fields...)
			continue
		}
		s.logger.Info("progress", fields...)
	}
	return nil
}

// Close implements progress.Sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
