package handlers

import (
	"context"
	"time"

	"github.com/portaprosoftware/fleet-compliance/internal/notify"
	log "github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// publish sends an event and logs failures. Notifications never fail the
// request that triggered them.
func publish(ctx context.Context, p notify.Publisher, eventType string, payload interface{}) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.Publish(ctx, eventType, payload); err != nil {
		log.WithError(err).WithField("event", eventType).Warn("Failed to publish event")
	}
}
