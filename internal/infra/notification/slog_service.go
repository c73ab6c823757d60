package notification

import (
	"context"
	"log/slog"

	"passport/internal/domain/service"
)

// slogNotifier writes notices to the structured log. It is the default sink
// when no push channel is configured, so notices are never silently dropped.
type slogNotifier struct {
	logger *slog.Logger
}

// NewSlogNotifier creates a log-backed notification sink.
func NewSlogNotifier(logger *slog.Logger) service.Notifier {
	return &slogNotifier{logger: logger}
}

func (s *slogNotifier) Notify(_ context.Context, notice service.Notice) error {
	level := slog.LevelInfo
	if notice.Severity == service.SeverityError {
		level = slog.LevelWarn
	}

	s.logger.Log(context.Background(), level, "User notice",
		slog.String("severity", string(notice.Severity)),
		slog.String("title", notice.Title),
		slog.String("body", notice.Body))

	return nil
}
