package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventStore appends license lifecycle events to the audit trail. It
// implements core.LicenseEventLogger; the evaluator treats failures as
// best-effort and only logs them.
type EventStore struct {
	pg     *pgxpool.Pool
	schema string
}

func NewEventStore(pg *pgxpool.Pool, schema string) *EventStore {
	if schema == "" {
		schema = "licensing"
	}
	return &EventStore{pg: pg, schema: schema}
}

func (s *EventStore) LogLicenseEvent(ctx context.Context, event string, licenseID, ownerID, productID uuid.UUID) error {
	_, err := s.pg.Exec(ctx,
		`INSERT INTO `+s.schema+`.license_events (event, license_id, user_id, product_id) VALUES ($1, $2, $3, $4)`,
		event, licenseID, ownerID, productID)
	return err
}
