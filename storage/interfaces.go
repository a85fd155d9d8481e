// Package storage provides the engine's persistence layer: three narrow
// store contracts (events, attacks, responses), interchangeable in-memory,
// SQLite, and Redis backends, and the observer mechanism the configuration
// document attaches to each store.
package storage

import (
	"context"
	"time"

	"orthrus/core"
)

// SearchCriteria narrows a store query. Zero-valued fields match anything:
// an empty ClientApplications list matches every client, a zero Earliest
// applies no time bound. Earliest is inclusive.
type SearchCriteria struct {
	DetectionPointID   string
	Username           string
	ClientApplications []string
	Earliest           time.Time
}

// matches reports whether an entity's identifying fields satisfy the
// criteria. Every backend funnels its results through this so filter
// semantics cannot drift between them.
func (c SearchCriteria) matches(detectionPointID, clientApplication, username string, ts time.Time) bool {
	if c.DetectionPointID != "" && c.DetectionPointID != detectionPointID {
		return false
	}
	if c.Username != "" && c.Username != username {
		return false
	}
	if len(c.ClientApplications) > 0 {
		found := false
		for _, app := range c.ClientApplications {
			if app == clientApplication {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !c.Earliest.IsZero() && ts.Before(c.Earliest) {
		return false
	}
	return true
}

// EventStore persists security events reported against detection points.
type EventStore interface {
	AddEvent(ctx context.Context, event *core.Event) error
	FindEvents(ctx context.Context, criteria SearchCriteria) ([]core.Event, error)
	Attach(observer Observer)
}

// AttackStore persists attacks produced when a detection point's threshold
// is exceeded.
type AttackStore interface {
	AddAttack(ctx context.Context, attack *core.Attack) error
	FindAttacks(ctx context.Context, criteria SearchCriteria) ([]core.Attack, error)
	Attach(observer Observer)
}

// ResponseStore persists the responses triggered for attacks.
type ResponseStore interface {
	AddResponse(ctx context.Context, response *core.ResponseRecord) error
	FindResponses(ctx context.Context, criteria SearchCriteria) ([]core.ResponseRecord, error)
	Attach(observer Observer)
}

// Observer is notified after a store successfully persists an entity.
// Implementations are registered on stores per the configuration document's
// observer lists and must be safe for concurrent use.
type Observer interface {
	Name() string
	EventAdded(event core.Event)
	AttackAdded(attack core.Attack)
	ResponseAdded(response core.ResponseRecord)
}
