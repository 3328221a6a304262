package service

import (
	"errors"

	"bookinggate/internal/domain"

	"github.com/rs/zerolog"
)

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// publishEvent never fails the caller; publishing errors are only logged.
func publishEvent(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, payload interface{}) {
	if bus == nil {
		return
	}
	if err := bus.PublishJSON(eventType, payload); err != nil {
		logger.Error().Err(err).Str("event", eventType).Msg("Failed to publish event")
	}
}
