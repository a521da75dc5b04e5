package core

import (
	"context"

	"github.com/google/uuid"
)

// LicenseEventLogger records license lifecycle events to an external sink
// (e.g., a warehouse or audit trail). Implementations should be non-blocking
// and best-effort; failures are logged, never propagated.
type LicenseEventLogger interface {
	LogLicenseEvent(ctx context.Context, event string, licenseID, ownerID, productID uuid.UUID) error
}

// WithEventLogger attaches an audit sink to the evaluator.
func (s *Service) WithEventLogger(l LicenseEventLogger) *Service {
	s.events = l
	return s
}

func (s *Service) emit(ctx context.Context, event string, licenseID, ownerID, productID uuid.UUID) {
	if s.events == nil {
		return
	}
	if err := s.events.LogLicenseEvent(ctx, event, licenseID, ownerID, productID); err != nil {
		s.log.WithError(err).WithField("event", event).Warn("failed to record license event")
	}
}
