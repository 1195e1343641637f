package worker

import (
	"go.uber.org/zap"

	"github.com/campushub/helpdesk-service/internal/service"
)

// StartNotificationWorker builds the notification service and subscribes it to
// the dispatcher. Channels left nil in deps are skipped.
func StartNotificationWorker(deps service.NotificationDependencies) *service.NotificationService {
	notifications := service.NewNotificationService(deps)
	notifications.RegisterHandlers()
	if deps.Logger != nil {
		deps.Logger.Info("notification worker started",
			zap.Bool("realtime", deps.Notifier != nil),
			zap.Bool("amqp", deps.Exporter != nil),
			zap.Bool("mail", deps.Mailer != nil),
		)
	}
	return notifications
}
