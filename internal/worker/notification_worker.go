package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-chat/internal/service"
)

// StartNotificationWorker registers notification handlers and drains pending
// webhook deliveries once ctx is cancelled.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
	go func() {
		<-ctx.Done()
		notificationService.Wait()
		logger.Info("notification worker drained")
	}()
}
