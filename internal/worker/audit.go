package worker

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/studyplanner/planner/internal/mq"
	"github.com/studyplanner/planner/internal/services"
)

// Subscriber is the consuming side of the message bus.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// ImportAuditor writes one audit log line for every completed timetable import.
type ImportAuditor struct {
	log logrus.FieldLogger
}

func NewImportAuditor(log logrus.FieldLogger) *ImportAuditor {
	return &ImportAuditor{log: log}
}

// Run consumes channel until ctx is cancelled.
func (a *ImportAuditor) Run(ctx context.Context, sub Subscriber, channel string) error {
	a.log.WithField("channel", channel).Info("import audit worker started")
	err := sub.Subscribe(ctx, channel, a.Handle)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Handle records one notification. Malformed payloads are logged and
// acknowledged so they are not redelivered.
func (a *ImportAuditor) Handle(_ context.Context, msg mq.Message) error {
	var event services.ImportedMessage
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		a.log.WithError(err).WithField("message_id", msg.ID).Error("discarding malformed import notification")
		return nil
	}
	if event.UserID == "" {
		a.log.WithField("message_id", msg.ID).Error("discarding import notification without user id")
		return nil
	}

	a.log.WithFields(logrus.Fields{
		"message_id":  msg.ID,
		"user_id":     event.UserID,
		"imported":    event.Imported,
		"candidates":  event.Candidates,
		"failed":      event.Candidates - event.Imported,
		"imported_at": event.ImportedAt,
	}).Info("timetable import recorded")
	return nil
}
