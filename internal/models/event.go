package models

import "time"

// EventType names a domain event published to the broker.
type EventType string

const (
	EventRegistrationCreated   EventType = "registration.created"
	EventRegistrationCancelled EventType = "registration.cancelled"
	EventRegistrationUpdated   EventType = "registration.updated"
	EventRegistrationDeleted   EventType = "registration.deleted"
	EventAttendanceCheckedIn   EventType = "attendance.checked_in"
)

// DomainEvent is the JSON body published for state changes.
type DomainEvent struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	OccurredAt time.Time              `json:"occurredAt"`
	ActorID    string                 `json:"actorId,omitempty"`
	ClassID    string                 `json:"classId"`
	SubjectID  string                 `json:"subjectId"`
	Data       map[string]interface{} `json:"data,omitempty"`
}
