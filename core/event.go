package core

import (
	"time"

	"github.com/google/uuid"
)

// Event is one security event reported by a monitored client application
// against a detection point.
type Event struct {
	ID                string    `json:"id"`
	DetectionPointID  string    `json:"detection_point_id"`
	ClientApplication string    `json:"client_application"`
	Username          string    `json:"username"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewEvent creates an Event with a generated UUID and the current UTC time.
func NewEvent(detectionPointID, clientApplication, username string) *Event {
	return &Event{
		ID:                uuid.New().String(),
		DetectionPointID:  detectionPointID,
		ClientApplication: clientApplication,
		Username:          username,
		Timestamp:         time.Now().UTC(),
	}
}

// Attack records a detection point whose threshold was met. It carries the
// identity of the event that tripped the threshold and a snapshot of the
// threshold as configured at detection time.
type Attack struct {
	ID                string    `json:"id"`
	EventID           string    `json:"event_id"`
	DetectionPointID  string    `json:"detection_point_id"`
	ClientApplication string    `json:"client_application"`
	Username          string    `json:"username"`
	Threshold         Threshold `json:"threshold"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewAttack creates an Attack triggered by the given event.
func NewAttack(e *Event, threshold Threshold) *Attack {
	return &Attack{
		ID:                uuid.New().String(),
		EventID:           e.ID,
		DetectionPointID:  e.DetectionPointID,
		ClientApplication: e.ClientApplication,
		Username:          e.Username,
		Threshold:         threshold,
		Timestamp:         time.Now().UTC(),
	}
}

// ResponseRecord is one response action executed (or handed off for
// execution) because of an attack.
type ResponseRecord struct {
	ID                string    `json:"id"`
	AttackID          string    `json:"attack_id"`
	DetectionPointID  string    `json:"detection_point_id"`
	ClientApplication string    `json:"client_application"`
	Username          string    `json:"username"`
	Action            string    `json:"action"`
	Interval          Interval  `json:"interval"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewResponseRecord creates a ResponseRecord for one configured response to
// the given attack.
func NewResponseRecord(a *Attack, response Response) *ResponseRecord {
	return &ResponseRecord{
		ID:                uuid.New().String(),
		AttackID:          a.ID,
		DetectionPointID:  a.DetectionPointID,
		ClientApplication: a.ClientApplication,
		Username:          a.Username,
		Action:            response.Action,
		Interval:          response.Interval,
		Timestamp:         time.Now().UTC(),
	}
}
