package service

import "context"

// NoticeSeverity classifies a user-visible notice.
type NoticeSeverity string

const (
	// SeverityInfo is a success or informational notice.
	SeverityInfo NoticeSeverity = "info"
	// SeverityError is a failure notice.
	SeverityError NoticeSeverity = "error"
)

// Notice is a user-visible message surfaced through the notification sink.
type Notice struct {
	Severity NoticeSeverity
	Title    string
	Body     string
}

// Notifier is the fire-and-forget notification sink. Callers must never let a
// notification failure affect session state; errors are logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, notice Notice) error
}
