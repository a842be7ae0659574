package outbox

import (
	"encoding/json"
	"time"

	"github.com/slotbook/slotbook/services/scheduling-service/internal/model"
)

// Kafka topic per event type; the topic name equals EventType.
const (
	TopicAppointmentBooked        = "scheduling.appointment.booked.v1"
	TopicAppointmentRescheduled   = "scheduling.appointment.rescheduled.v1"
	TopicAppointmentStatusChanged = "scheduling.appointment.status_changed.v1"
	TopicAppointmentCancelled     = "scheduling.appointment.cancelled.v1"
	TopicClosureCreated           = "scheduling.closure.created.v1"
	TopicClosureImpact            = "scheduling.closure.impact.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type AppointmentPayload struct {
	AppointmentID string    `json:"appointment_id"`
	BusinessID    string    `json:"business_id"`
	ServiceID     string    `json:"service_id"`
	StaffID       string    `json:"staff_id,omitempty"`
	CustomerID    string    `json:"customer_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
	PrevStatus    string    `json:"prev_status,omitempty"`
	PrevStartTime time.Time `json:"prev_start_time,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

type ClosureCreatedPayload struct {
	ClosureID  string   `json:"closure_id"`
	BusinessID string   `json:"business_id"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	Type       string   `json:"type"`
	ServiceIDs []string `json:"service_ids,omitempty"`
}

type ClosureImpactPayload struct {
	ClosureID       string   `json:"closure_id"`
	BusinessID      string   `json:"business_id"`
	RescheduledIDs  []string `json:"rescheduled_ids"`
	UnplaceableIDs  []string `json:"unplaceable_ids"`
	AffectedInTotal int      `json:"affected_in_total"`
}

// AppointmentEvent builds the envelope for an appointment-aggregate fact.
func AppointmentEvent(eventType string, a model.Appointment, p AppointmentPayload) (Event, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "appointment",
		AggregateID:   a.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// ClosureEvent builds the envelope for a closure-aggregate fact.
func ClosureEvent(eventType, closureID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "closure",
		AggregateID:   closureID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
