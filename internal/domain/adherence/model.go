package adherence

import (
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusTaken   Status = "Taken"
	StatusMissed  Status = "Missed"
	StatusPending Status = "Pending"
)

var validStatuses = map[Status]bool{
	StatusTaken: true, StatusMissed: true, StatusPending: true,
}

func (s Status) Valid() bool {
	return validStatuses[s]
}

// Terminal reports whether s is a final outcome.
func (s Status) Terminal() bool {
	return s == StatusTaken || s == StatusMissed
}

var (
	// ErrAlreadyRecorded is returned when an outcome is recorded for an event
	// that has already left Pending.
	ErrAlreadyRecorded = errors.New("adherence event already recorded")
	// ErrInvalidTransition is returned when the requested outcome is not a
	// terminal status.
	ErrInvalidTransition = errors.New("invalid adherence transition")
)

// Event is one scheduled dose and its outcome.
type Event struct {
	ID             string     `json:"id"`
	MedicationID   string     `json:"medication_id"`
	MedicationName string     `json:"medication_name"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	Status         Status     `json:"status"`
	ActualTime     *time.Time `json:"actual_time,omitempty"`
}

// Validate checks enum membership and that ActualTime is set exactly when
// the dose was taken.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("adherence event id is required")
	}
	if e.ScheduledTime.IsZero() {
		return fmt.Errorf("adherence event %s: scheduled_time is required", e.ID)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("adherence event %s: invalid status: %s", e.ID, e.Status)
	}
	if e.Status == StatusTaken && e.ActualTime == nil {
		return fmt.Errorf("adherence event %s: actual_time is required when taken", e.ID)
	}
	if e.Status != StatusTaken && e.ActualTime != nil {
		return fmt.Errorf("adherence event %s: actual_time is only allowed when taken", e.ID)
	}
	return nil
}

// Record moves a Pending event to a terminal status. at is stored as the
// actual time for Taken and ignored for Missed.
func (e *Event) Record(status Status, at time.Time) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, status)
	}
	if e.Status != StatusPending {
		return fmt.Errorf("%w: event %s is %s", ErrAlreadyRecorded, e.ID, e.Status)
	}
	e.Status = status
	e.ActualTime = nil
	if status == StatusTaken {
		t := at
		e.ActualTime = &t
	}
	return nil
}
