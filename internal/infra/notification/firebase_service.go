// Package notification implements the user-facing notification sink.
package notification

import (
	"context"

	"passport/config"
	"passport/internal/domain/service"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// sessionTopic is the FCM topic the user's devices subscribe to for
// session-related notices.
const sessionTopic = "session-events"

type firebaseNotifier struct {
	client *messaging.Client
}

// NewFirebaseNotifier creates a Firebase-backed notification sink.
func NewFirebaseNotifier(ctx context.Context, cfg *config.Config) (service.Notifier, error) {
	if cfg.Firebase == nil || cfg.Firebase.CredentialsPath == "" {
		return nil, errors.New("firebase credentials path must be provided")
	}

	opt := option.WithCredentialsFile(cfg.Firebase.CredentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.Firebase.ProjectID}, opt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize Firebase app")
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messaging client")
	}

	return &firebaseNotifier{client: client}, nil
}

// Notify sends the notice to the session topic. Delivery failures surface as
// errors for the caller to log; they never block or fail a session transition.
func (s *firebaseNotifier) Notify(ctx context.Context, notice service.Notice) error {
	message := &messaging.Message{
		Topic: sessionTopic,
		Notification: &messaging.Notification{
			Title: notice.Title,
			Body:  notice.Body,
		},
		Data: map[string]string{
			"severity": string(notice.Severity),
		},
	}

	if _, err := s.client.Send(ctx, message); err != nil {
		return errors.Wrap(err, "failed to send notification")
	}

	return nil
}
